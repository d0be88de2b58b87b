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

// StageResumeExtraction 简历事实抽取阶段的逻辑名称
const StageResumeExtraction = "resume_extraction"

// ResumeExtractor 把简历全文抽取为结构化的候选人事实记录。
// 只做事实抽取，不做任何润色或匹配判断。
type ResumeExtractor struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// ResumeExtractorOption 抽取器的配置选项
type ResumeExtractorOption func(*ResumeExtractor)

// WithResumePromptTemplate 覆盖默认提示词模板，模板需保留简历文本的 %s 占位
func WithResumePromptTemplate(template string) ResumeExtractorOption {
	return func(e *ResumeExtractor) {
		e.promptTemplate = template
	}
}

// NewResumeExtractor 创建简历事实抽取器
func NewResumeExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...ResumeExtractorOption) *ResumeExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	extractor := &ResumeExtractor{
		llmModel: llmModel,
		logger:   logger,
	}
	extractor.generatePromptTemplate()

	for _, opt := range options {
		opt(extractor)
	}
	return extractor
}

func (e *ResumeExtractor) generatePromptTemplate() {
	e.promptTemplate = `Extract structured information from this resume.

Resume:
%s

Extract and return the following in JSON format:
{
    "name": "candidate name",
    "contact_info": {
        "email": "",
        "phone": "",
        "location": "",
        "linkedin": "",
        "github": "",
        "portfolio": ""
    },
    "summary": "professional summary if present",
    "skills": ["all", "skills", "listed"],
    "technical_skills": ["programming", "languages", "tools"],
    "soft_skills": ["leadership", "communication"],
    "experience": [
        {
            "title": "job title",
            "company": "company name",
            "duration": "time period",
            "responsibilities": ["key", "achievements"]
        }
    ],
    "education": [
        {
            "degree": "degree name",
            "institution": "school name",
            "year": "graduation year",
            "details": "GPA, honors, relevant coursework"
        }
    ],
    "projects": ["project descriptions"],
    "achievements": ["notable accomplishments"],
    "certifications": ["certifications if any"],
    "extracurricular_activities": ["clubs", "volunteer work", "sports"]
}

If any field doesn't exist, use null or empty array.

Return ONLY the JSON, no other text.`
}

// Extract 抽取简历事实。文本为空时直接拒绝，模型调用失败返回
// *types.GenerationError，解析失败返回 *types.ExtractionError。
func (e *ResumeExtractor) Extract(ctx context.Context, resumeText string) (*types.ResumeFacts, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("ResumeExtractor: 模型客户端未初始化")
	}
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("ResumeExtractor: 简历文本为空")
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are a resume analyzer."),
		einoschema.UserMessage(fmt.Sprintf(e.promptTemplate, resumeText)),
	}

	e.logger.Printf("[ResumeExtractor] 开始抽取简历事实，输入 %d 字符", len(resumeText))

	response, err := e.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, &types.GenerationError{Stage: StageResumeExtraction, Err: err}
	}
	if response == nil || response.Content == "" {
		return nil, &types.GenerationError{Stage: StageResumeExtraction, Err: fmt.Errorf("模型返回空响应")}
	}

	var result types.ResumeFacts
	if err := ParseStageJSON(StageResumeExtraction, schema.KindResumeFacts, response.Content, &result); err != nil {
		return nil, err
	}
	result.Normalize()

	e.logger.Printf("[ResumeExtractor] 抽取完成，经历 %d 段，技能 %d 项", len(result.Experience), len(result.Skills))
	return &result, nil
}
