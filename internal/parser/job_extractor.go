package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/schema"
	"resume-agent-go/internal/types"
)

// StageJobExtraction 职位要求抽取阶段的逻辑名称，错误与指标都用它标识
const StageJobExtraction = "job_extraction"

// JobExtractor 把职位描述文本抽取为结构化的岗位要求记录。
// 每次抽取恰好一次模型调用，响应走严格解析路径，失败即阶段失败。
type JobExtractor struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// JobExtractorOption 抽取器的配置选项
type JobExtractorOption func(*JobExtractor)

// WithJobPromptTemplate 覆盖默认提示词模板，模板需保留职位文本的 %s 占位
func WithJobPromptTemplate(template string) JobExtractorOption {
	return func(e *JobExtractor) {
		e.promptTemplate = template
	}
}

// NewJobExtractor 创建职位要求抽取器
func NewJobExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...JobExtractorOption) *JobExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	extractor := &JobExtractor{
		llmModel: llmModel,
		logger:   logger,
	}
	extractor.generatePromptTemplate()

	for _, opt := range options {
		opt(extractor)
	}
	return extractor
}

func (e *JobExtractor) generatePromptTemplate() {
	e.promptTemplate = `Analyze this job description.

Job Description:
%s

Extract and return the following in JSON format:
{
    "required_skills": ["list", "of", "skills"],
    "nice_to_have_skills": ["optional", "skills"],
    "education_required": "degrees or certifications",
    "experience_level": "e.g., 2-3 years",
    "key_responsibilities": ["main", "duties"],
    "important_keywords": ["keywords", "for", "ATS"],
    "company_culture": "brief description of culture if mentioned"
}

If any field is not mentioned, use null or an empty array.

Be thorough. Return ONLY the JSON, no other text.`
}

// Extract 抽取岗位要求。文本为空时直接拒绝，模型调用失败返回
// *types.GenerationError，解析失败返回 *types.ExtractionError。
func (e *JobExtractor) Extract(ctx context.Context, jobText string) (*types.JobRequirements, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("JobExtractor: 模型客户端未初始化")
	}
	if strings.TrimSpace(jobText) == "" {
		return nil, fmt.Errorf("JobExtractor: 职位描述文本为空")
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are a job requirement analyzer."),
		einoschema.UserMessage(fmt.Sprintf(e.promptTemplate, jobText)),
	}

	e.logger.Printf("[JobExtractor] 开始抽取岗位要求，输入 %d 字符", len(jobText))

	response, err := e.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, &types.GenerationError{Stage: StageJobExtraction, Err: err}
	}
	if response == nil || response.Content == "" {
		return nil, &types.GenerationError{Stage: StageJobExtraction, Err: fmt.Errorf("模型返回空响应")}
	}

	var result types.JobRequirements
	if err := ParseStageJSON(StageJobExtraction, schema.KindJobRequirements, response.Content, &result); err != nil {
		return nil, err
	}
	result.Normalize()

	e.logger.Printf("[JobExtractor] 抽取完成，必备技能 %d 项，核心职责 %d 项", len(result.RequiredSkills), len(result.KeyResponsibilities))
	return &result, nil
}
