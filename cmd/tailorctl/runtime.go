package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"

	"github.com/cloudwego/eino/components/model"
)

// 内置样例文本，-stub 模式下未提供输入文件时使用
var (
	//go:embed testdata/job.txt
	sampleJobText string

	//go:embed testdata/resume.txt
	sampleResumeText string
)

// cliRuntime 子命令共享的运行期依赖
type cliRuntime struct {
	cfg      *config.Config
	newModel func(task string) model.ToolCallingChatModel
	embedder processor.TextEmbedder
	logger   *log.Logger
}

// buildRuntime 按 -stub 开关组装真实或离线依赖。
// 离线模式不读配置文件，全部组件在本地目录上工作。
func buildRuntime(ctx context.Context) *cliRuntime {
	componentLogger := log.New(io.Discard, "", 0)
	if *verbose {
		componentLogger = log.New(os.Stderr, "[tailorctl] ", log.LstdFlags)
	}

	if *stubMode {
		stub := processor.NewStubChatModel()
		cfg := &config.Config{}
		cfg.Vector.Backend = "local"
		cfg.Vector.StorePath = "./vector_stores"
		cfg.RAG.ChunkSize = 1000
		cfg.RAG.ChunkOverlap = 200
		cfg.RAG.RetrievalK = 5
		cfg.Artifacts.Backend = "local"
		cfg.Artifacts.OutputDir = "./output"
		cfg.Artifacts.DocumentExtension = ".tex"
		return &cliRuntime{
			cfg:      cfg,
			newModel: func(string) model.ToolCallingChatModel { return stub },
			embedder: processor.NewStubEmbedder(8),
			logger:   componentLogger,
		}
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		fmt.Printf("模型凭证校验失败: %v\n", err)
		fmt.Println("离线试运行可使用 -stub 参数。")
		os.Exit(1)
	}

	var embedder processor.TextEmbedder
	switch cfg.LLM.Provider {
	case agent.ProviderOpenAICompat:
		embedder, err = parser.NewOpenAICompatEmbedder(cfg.LLM.APIKey, cfg.LLM.Embedding)
	default:
		embedder, err = parser.NewGeminiEmbedder(ctx, cfg.LLM.APIKey, cfg.LLM.Embedding)
	}
	if err != nil {
		fmt.Printf("初始化Embedder失败: %v\n", err)
		os.Exit(1)
	}

	return &cliRuntime{
		cfg: cfg,
		newModel: func(task string) model.ToolCallingChatModel {
			m, err := agent.BuildChatModel(ctx, cfg, task)
			if err != nil {
				fmt.Printf("初始化%s任务模型失败: %v\n", task, err)
				os.Exit(1)
			}
			return m
		},
		embedder: embedder,
		logger:   componentLogger,
	}
}

// buildPipeline 组装完整定制流水线，产物写入outputDir
func (rt *cliRuntime) buildPipeline(outputDir string) *processor.TailorPipeline {
	artifacts, err := processor.NewLocalArtifactStore(outputDir, rt.logger)
	if err != nil {
		fmt.Printf("初始化产物目录失败: %v\n", err)
		os.Exit(1)
	}
	return processor.NewTailorPipeline(
		&processor.Components{
			JobExtractor:    parser.NewJobExtractor(rt.newModel(agent.TaskJobExtraction), rt.logger),
			ResumeExtractor: parser.NewResumeExtractor(rt.newModel(agent.TaskResumeExtraction), rt.logger),
			Strategy:        parser.NewStrategySynthesizer(rt.newModel(agent.TaskStrategy), rt.logger),
			Renderer:        parser.NewDocumentRenderer(rt.newModel(agent.TaskRender), rt.logger),
			Artifacts:       artifacts,
		},
		&processor.Settings{
			Logger:               rt.logger,
			ConcurrentExtraction: true,
		},
	)
}

// buildContextStore 组装RAG上下文存储
func (rt *cliRuntime) buildContextStore() *processor.ContextStore {
	newIndex, err := storage.NewIndexFactory(&rt.cfg.Vector)
	if err != nil {
		fmt.Printf("初始化向量索引工厂失败: %v\n", err)
		os.Exit(1)
	}
	chunker := parser.NewTextChunker(rt.logger,
		parser.WithChunkSize(rt.cfg.RAG.ChunkSize),
		parser.WithChunkOverlap(rt.cfg.RAG.ChunkOverlap))
	store, err := processor.NewContextStore(chunker, rt.embedder, newIndex, rt.cfg.Vector.StorePath, rt.logger)
	if err != nil {
		fmt.Printf("初始化上下文存储失败: %v\n", err)
		os.Exit(1)
	}
	return store
}

// loadInputText 读取输入文件；-stub 模式下路径留空回退到内置样例
func loadInputText(path, kind, fallback string) string {
	if path == "" {
		if *stubMode {
			return fallback
		}
		fmt.Printf("错误: 必须提供%s文件路径，或使用 -stub 以内置样例运行。\n", kind)
		flag.Usage()
		os.Exit(1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("读取%s文件失败: %v\n", kind, err)
		os.Exit(1)
	}
	return string(data)
}

// truncateForDisplay 按 -maxlen 截断长文本
func truncateForDisplay(text string) string {
	if *maxLen >= 0 && len(text) > *maxLen {
		return text[:*maxLen] + "...(已截断，使用 -maxlen 参数显示更多)"
	}
	return text
}
