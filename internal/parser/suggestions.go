package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// StageSuggestions 改进建议阶段的逻辑名称
const StageSuggestions = "suggestions"

// SuggestionGenerator 针对简历生成不超过五条可执行的改进建议。
// 职位描述有效时按岗位对齐的口径提问，否则按通用质量口径提问。
type SuggestionGenerator struct {
	llmModel        model.ToolCallingChatModel
	alignedTemplate string
	generalTemplate string
	logger          *log.Logger
}

// SuggestionGeneratorOption 建议生成器的配置选项
type SuggestionGeneratorOption func(*SuggestionGenerator)

// WithAlignedSuggestionTemplate 覆盖岗位对齐口径的提示词模板，
// 需依次保留简历与职位描述两个 %s 占位
func WithAlignedSuggestionTemplate(template string) SuggestionGeneratorOption {
	return func(g *SuggestionGenerator) {
		g.alignedTemplate = template
	}
}

// WithGeneralSuggestionTemplate 覆盖通用质量口径的提示词模板，
// 需保留简历文本的 %s 占位
func WithGeneralSuggestionTemplate(template string) SuggestionGeneratorOption {
	return func(g *SuggestionGenerator) {
		g.generalTemplate = template
	}
}

// NewSuggestionGenerator 创建改进建议生成器
func NewSuggestionGenerator(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...SuggestionGeneratorOption) *SuggestionGenerator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	generator := &SuggestionGenerator{
		llmModel: llmModel,
		logger:   logger,
	}
	generator.generatePromptTemplates()

	for _, opt := range options {
		opt(generator)
	}
	return generator
}

func (g *SuggestionGenerator) generatePromptTemplates() {
	g.alignedTemplate = `Analyze this resume against the job description and provide specific, actionable improvements.

RESUME:
%s

TARGET JOB DESCRIPTION:
%s

Provide exactly 5 specific, actionable suggestions. Each suggestion should:
- Start with a clear action verb (Add, Quantify, Highlight, Reframe, Include)
- Be specific to this resume's content
- Directly improve alignment with the job requirements

Format each suggestion as a single numbered line like:
1. [Action] - [Specific recommendation]

SUGGESTIONS:`

	g.generalTemplate = `Analyze this resume and provide specific improvements to make it stronger and more impactful.

RESUME:
%s

Provide exactly 5 specific, actionable suggestions to improve this resume. Focus on:
- Adding quantifiable metrics and achievements
- Strengthening action verbs
- Improving professional impact
- Highlighting transferable skills
- Enhancing overall clarity and readability

Format each suggestion as a single numbered line like:
1. [Action] - [Specific recommendation based on actual content in the resume]

SUGGESTIONS:`
}

// Suggest 生成改进建议。职位描述去空白后超过阈值长度才按岗位对齐口径，
// 两种口径都会截断过长输入以控制提示词规模。模型调用失败返回
// *types.GenerationError，响应解析永不报错。
func (g *SuggestionGenerator) Suggest(ctx context.Context, resumeText, jobText string) (*types.SuggestionResult, error) {
	if g.llmModel == nil {
		return nil, fmt.Errorf("SuggestionGenerator: 模型客户端未初始化")
	}
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("SuggestionGenerator: 简历文本为空")
	}

	jobSpecific := len(strings.TrimSpace(jobText)) > constants.MinMeaningfulTextLength

	var userPrompt string
	if jobSpecific {
		userPrompt = fmt.Sprintf(g.alignedTemplate,
			truncateOnRuneBoundary(resumeText, constants.SuggestionResumeLimit),
			truncateOnRuneBoundary(jobText, constants.SuggestionJobLimit))
	} else {
		userPrompt = fmt.Sprintf(g.generalTemplate,
			truncateOnRuneBoundary(resumeText, constants.SuggestionResumeLimit))
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are an expert resume coach."),
		einoschema.UserMessage(userPrompt),
	}

	g.logger.Printf("[SuggestionGenerator] 开始生成建议，岗位对齐口径=%v", jobSpecific)

	response, err := g.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, &types.GenerationError{Stage: StageSuggestions, Err: err}
	}
	if response == nil || response.Content == "" {
		return nil, &types.GenerationError{Stage: StageSuggestions, Err: fmt.Errorf("模型返回空响应")}
	}

	suggestions := ParseSuggestionLines(response.Content, constants.MaxSuggestions)

	g.logger.Printf("[SuggestionGenerator] 生成完成，建议 %d 条", len(suggestions))
	return &types.SuggestionResult{
		Suggestions:       suggestions,
		HasJobDescription: jobSpecific,
	}, nil
}

// truncateOnRuneBoundary 按字节上限截断，回退到rune边界避免拆坏多字节字符
func truncateOnRuneBoundary(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
