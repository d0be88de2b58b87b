package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-agent-go/internal/metrics"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

var tracer = otel.Tracer("processor")

// observeStage 记录单个阶段的执行计数与耗时
func observeStage(stage string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.PipelineStageTotal.WithLabelValues(stage, status).Inc()
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

var (
	// ErrJobExtractorNotInit 岗位要求提取器未初始化
	ErrJobExtractorNotInit = errors.New("岗位要求提取器未初始化")
	// ErrResumeExtractorNotInit 简历事实提取器未初始化
	ErrResumeExtractorNotInit = errors.New("简历事实提取器未初始化")
	// ErrStrategyNotInit 策略合成器未初始化
	ErrStrategyNotInit = errors.New("策略合成器未初始化")
	// ErrRendererNotInit 文档渲染器未初始化
	ErrRendererNotInit = errors.New("文档渲染器未初始化")
	// ErrArtifactsNotInit 产物存储未初始化
	ErrArtifactsNotInit = errors.New("产物存储未初始化")
)

// Components 聚合流水线的功能组件依赖，便于集中管理和测试替换
type Components struct {
	JobExtractor    JobExtractor
	ResumeExtractor ResumeExtractor
	Strategy        StrategySynthesizer
	Renderer        DocumentRenderer
	Artifacts       ArtifactStore
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger               *log.Logger
	Debug                bool
	TimeLocation         *time.Location
	ConcurrentExtraction bool
}

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			s.Logger = log.New(log.Writer(), "[NilLoggerFallback] ", log.LstdFlags)
		}
	}
}

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithsetTimelocation 设置时区
func WithsetTimelocation(loc *time.Location) SettingOpt {
	return func(s *Settings) {
		if loc != nil {
			s.TimeLocation = loc
		} else {
			s.TimeLocation = time.Local
		}
	}
}

// WithsetConcurrentextraction 设置两路提取是否并发执行
func WithsetConcurrentextraction(concurrent bool) SettingOpt {
	return func(s *Settings) {
		s.ConcurrentExtraction = concurrent
	}
}

// TailorPipeline 定制流水线编排器。
// 两路提取汇聚到策略合成，再渲染并持久化产物，不做编排级重试。
type TailorPipeline struct {
	components Components
	settings   Settings
}

// NewTailorPipeline 创建定制流水线，应用设置选项并填充必要的默认值
func NewTailorPipeline(comp *Components, set *Settings, opts ...SettingOpt) *TailorPipeline {
	if comp == nil {
		comp = &Components{}
	}
	if set == nil {
		set = &Settings{}
	}

	for _, opt := range opts {
		opt(set)
	}

	if set.Logger == nil {
		set.Logger = log.New(os.Stdout, "[Processor] ", log.LstdFlags)
	}
	if set.TimeLocation == nil {
		set.TimeLocation = time.Local
	}

	pipeline := &TailorPipeline{
		components: *comp,
		settings:   *set,
	}

	if pipeline.components.Artifacts == nil {
		pipeline.settings.Logger.Println("警告: TailorPipeline 的 Artifacts 依赖未初始化，RunFull 将不可用。")
	}

	return pipeline
}

// RunAnalysis 执行分析流水线：并行提取岗位要求与简历事实，再合成定制策略。
// 任一阶段失败即中止，错误保留阶段信息。
func (p *TailorPipeline) RunAnalysis(ctx context.Context, jobText, resumeText string) (*types.AnalysisBundle, error) {
	ctx, span := tracer.Start(ctx, "TailorPipeline.RunAnalysis")
	defer span.End()

	span.SetAttributes(
		attribute.Int("job_text_length", len(jobText)),
		attribute.Int("resume_text_length", len(resumeText)),
		attribute.String("job_text_preview", tracing.SafePrompt(jobText)),
		attribute.String("resume_text_preview", tracing.SafeResumeContent(resumeText)),
	)

	if p.components.JobExtractor == nil {
		span.RecordError(ErrJobExtractorNotInit)
		span.SetStatus(codes.Error, "组件未初始化")
		return nil, ErrJobExtractorNotInit
	}
	if p.components.ResumeExtractor == nil {
		span.RecordError(ErrResumeExtractorNotInit)
		span.SetStatus(codes.Error, "组件未初始化")
		return nil, ErrResumeExtractorNotInit
	}
	if p.components.Strategy == nil {
		span.RecordError(ErrStrategyNotInit)
		span.SetStatus(codes.Error, "组件未初始化")
		return nil, ErrStrategyNotInit
	}

	var (
		job   *types.JobRequirements
		facts *types.ResumeFacts
	)

	if p.settings.ConcurrentExtraction {
		p.logDebug("并发执行两路提取")
		var wg sync.WaitGroup
		errChan := make(chan error, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, extractSpan := tracer.Start(ctx, "ExtractJobRequirements")
			defer extractSpan.End()
			start := time.Now()
			var err error
			job, err = p.components.JobExtractor.Extract(ctx, jobText)
			observeStage("job_extraction", start, err)
			if err != nil {
				tracing.RecordStageError(extractSpan, err, "job_extraction")
				errChan <- fmt.Errorf("岗位要求提取失败: %w", err)
			}
		}()
		go func() {
			defer wg.Done()
			ctx, extractSpan := tracer.Start(ctx, "ExtractResumeFacts")
			defer extractSpan.End()
			start := time.Now()
			var err error
			facts, err = p.components.ResumeExtractor.Extract(ctx, resumeText)
			observeStage("resume_extraction", start, err)
			if err != nil {
				tracing.RecordStageError(extractSpan, err, "resume_extraction")
				errChan <- fmt.Errorf("简历事实提取失败: %w", err)
			}
		}()

		// 两路都等待结束，错误按写入顺序取第一个
		wg.Wait()
		close(errChan)
		if err := <-errChan; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "提取阶段失败")
			return nil, err
		}
	} else {
		var err error
		start := time.Now()
		job, err = p.components.JobExtractor.Extract(ctx, jobText)
		observeStage("job_extraction", start, err)
		if err != nil {
			tracing.RecordStageError(span, err, "job_extraction")
			return nil, fmt.Errorf("岗位要求提取失败: %w", err)
		}
		start = time.Now()
		facts, err = p.components.ResumeExtractor.Extract(ctx, resumeText)
		observeStage("resume_extraction", start, err)
		if err != nil {
			tracing.RecordStageError(span, err, "resume_extraction")
			return nil, fmt.Errorf("简历事实提取失败: %w", err)
		}
	}

	synthCtx, synthSpan := tracer.Start(ctx, "SynthesizeStrategy")
	synthStart := time.Now()
	strategy, err := p.components.Strategy.Synthesize(synthCtx, job, facts)
	observeStage("strategy", synthStart, err)
	if err != nil {
		tracing.RecordStageError(synthSpan, err, "strategy")
		synthSpan.End()
		span.SetStatus(codes.Error, "策略合成失败")
		return nil, fmt.Errorf("策略合成失败: %w", err)
	}
	synthSpan.End()

	p.logInfo("分析流水线完成 (匹配度 %d)", strategy.OverallMatchScore)
	return &types.AnalysisBundle{
		Job:      job,
		Resume:   facts,
		Strategy: strategy,
	}, nil
}

// RunFull 执行完整流水线：分析、渲染并持久化文档与分析快照。
// 快照名由输出名派生，任一前置阶段失败时不会写入任何产物。
func (p *TailorPipeline) RunFull(ctx context.Context, jobText, resumeText, template, outputName string) (*types.RenderedDocument, error) {
	ctx, span := tracer.Start(ctx, "TailorPipeline.RunFull")
	defer span.End()

	span.SetAttributes(attribute.String("output_name", outputName))

	if p.components.Renderer == nil {
		span.RecordError(ErrRendererNotInit)
		span.SetStatus(codes.Error, "组件未初始化")
		return nil, ErrRendererNotInit
	}
	if p.components.Artifacts == nil {
		span.RecordError(ErrArtifactsNotInit)
		span.SetStatus(codes.Error, "组件未初始化")
		return nil, ErrArtifactsNotInit
	}

	bundle, err := p.RunAnalysis(ctx, jobText, resumeText)
	if err != nil {
		return nil, err
	}

	renderCtx, renderSpan := tracer.Start(ctx, "RenderDocument")
	renderStart := time.Now()
	doc, err := p.components.Renderer.Render(renderCtx, bundle.Resume, bundle.Strategy, bundle.Job, template)
	observeStage("render", renderStart, err)
	if err != nil {
		tracing.RecordStageError(renderSpan, err, "render")
		renderSpan.End()
		span.SetStatus(codes.Error, "文档渲染失败")
		return nil, fmt.Errorf("文档渲染失败: %w", err)
	}
	renderSpan.End()

	span.AddEvent("persisting_artifacts")
	documentKey, err := p.components.Artifacts.Put(ctx, outputName, []byte(doc.Content), storage.ContentTypeForName(outputName))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "持久化文档失败")
		return nil, fmt.Errorf("持久化文档失败: %w", err)
	}

	snapshot, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "序列化分析快照失败")
		return nil, fmt.Errorf("序列化分析快照失败: %w", err)
	}
	snapshotKey, err := p.components.Artifacts.Put(ctx, SnapshotName(outputName), snapshot, "application/json")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "持久化分析快照失败")
		return nil, fmt.Errorf("持久化分析快照失败: %w", err)
	}

	doc.DocumentPath = documentKey
	doc.SnapshotPath = snapshotKey
	doc.Analysis = bundle

	finishedAt := time.Now().In(p.settings.TimeLocation)
	p.logInfo("完整流水线完成: %s (快照 %s, %s)", documentKey, snapshotKey, finishedAt.Format(time.RFC3339))
	return doc, nil
}

// logDebug 记录调试级别日志
func (p *TailorPipeline) logDebug(format string, args ...interface{}) {
	if p.settings.Debug && p.settings.Logger != nil {
		p.settings.Logger.Printf(format, args...)
	}
}

// logInfo 记录信息级别日志
func (p *TailorPipeline) logInfo(format string, args ...interface{}) {
	if p.settings.Logger != nil {
		p.settings.Logger.Printf(format, args...)
	}
}
