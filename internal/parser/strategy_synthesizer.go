package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/schema"
	"resume-agent-go/internal/types"
)

// StageStrategy 策略合成阶段的逻辑名称
const StageStrategy = "strategy"

// StrategySynthesizer 对照岗位要求与简历事实生成匹配与裁剪策略。
// 输入是前两个抽取阶段的结构化产物，不接受原始文本。
type StrategySynthesizer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// StrategySynthesizerOption 合成器的配置选项
type StrategySynthesizerOption func(*StrategySynthesizer)

// WithStrategyPromptTemplate 覆盖默认提示词模板，模板需依次保留
// 岗位要求JSON与简历事实JSON的两个 %s 占位
func WithStrategyPromptTemplate(template string) StrategySynthesizerOption {
	return func(s *StrategySynthesizer) {
		s.promptTemplate = template
	}
}

// NewStrategySynthesizer 创建裁剪策略合成器
func NewStrategySynthesizer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...StrategySynthesizerOption) *StrategySynthesizer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	synthesizer := &StrategySynthesizer{
		llmModel: llmModel,
		logger:   logger,
	}
	synthesizer.generatePromptTemplate()

	for _, opt := range options {
		opt(synthesizer)
	}
	return synthesizer
}

func (s *StrategySynthesizer) generatePromptTemplate() {
	s.promptTemplate = `Create a tailoring strategy.

JOB REQUIREMENTS:
%s

CANDIDATE'S BACKGROUND:
%s

Create a strategic plan in JSON format:
{
    "overall_match_score": 85,
    "match_summary": "brief assessment of fit",
    "strong_matches": [
        {
            "skill_or_experience": "what matches",
            "evidence": "specific example from resume",
            "strategy": "how to emphasize this"
        }
    ],
    "partial_matches": [
        {
            "requirement": "what job needs",
            "candidate_has": "related experience",
            "strategy": "how to position this favorably"
        }
    ],
    "gaps": [
        {
            "missing": "what's not present",
            "severity": "critical/moderate/minor",
            "mitigation": "how to address or compensate"
        }
    ],
    "skills_to_emphasize": [
        {
            "skill": "skill name",
            "reason": "why it matters for this job",
            "how": "specific way to highlight"
        }
    ],
    "experience_to_highlight": [
        {
            "experience": "which experience",
            "why": "relevance to job",
            "key_achievements": ["achievements to emphasize"]
        }
    ],
    "keywords_to_add": ["important", "keywords", "from", "job"],
    "structural_recommendations": {
        "summary_focus": "what professional summary should emphasize",
        "skills_section": "how to organize skills",
        "experience_order": "which experiences first",
        "what_to_deemphasize": ["less relevant items"]
    },
    "enhanced_elements": {
        "github_strategy": "how to leverage GitHub if relevant",
        "portfolio_strategy": "how to use portfolio if relevant",
        "extracurriculars_strategy": "which activities to include and why"
    },
    "differentiation_strategy": "how to stand out from other candidates",
    "specific_actions": ["concrete", "changes", "to", "make"]
}

IMPORTANT:
- Be honest about match quality
- Focus on truthful positioning, not fabrication
- Prioritize impact and relevance

Return ONLY the JSON, no other text.`
}

// Synthesize 合成裁剪策略。任一输入为nil直接拒绝，模型调用失败返回
// *types.GenerationError，解析或校验失败返回 *types.ExtractionError。
func (s *StrategySynthesizer) Synthesize(ctx context.Context, job *types.JobRequirements, facts *types.ResumeFacts) (*types.TailoringStrategy, error) {
	if s.llmModel == nil {
		return nil, fmt.Errorf("StrategySynthesizer: 模型客户端未初始化")
	}
	if job == nil {
		return nil, fmt.Errorf("StrategySynthesizer: 岗位要求为空")
	}
	if facts == nil {
		return nil, fmt.Errorf("StrategySynthesizer: 简历事实为空")
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("StrategySynthesizer: 序列化岗位要求失败: %w", err)
	}
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("StrategySynthesizer: 序列化简历事实失败: %w", err)
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are an expert resume strategist."),
		einoschema.UserMessage(fmt.Sprintf(s.promptTemplate, string(jobJSON), string(factsJSON))),
	}

	s.logger.Printf("[StrategySynthesizer] 开始合成策略")

	response, err := s.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, &types.GenerationError{Stage: StageStrategy, Err: err}
	}
	if response == nil || response.Content == "" {
		return nil, &types.GenerationError{Stage: StageStrategy, Err: fmt.Errorf("模型返回空响应")}
	}

	var result types.TailoringStrategy
	if err := ParseStageJSON(StageStrategy, schema.KindTailoringStrategy, response.Content, &result); err != nil {
		return nil, err
	}
	if err := validateStrategy(&result); err != nil {
		return nil, &types.ExtractionError{Stage: StageStrategy, RawResponse: response.Content, Err: err}
	}
	result.Normalize()

	s.logger.Printf("[StrategySynthesizer] 合成完成，匹配分 %d，强匹配 %d 项，缺口 %d 项",
		result.OverallMatchScore, len(result.StrongMatches), len(result.Gaps))
	return &result, nil
}

// validateStrategy 校验策略的基本合法性，越界或缺摘要都视为模型输出损坏
func validateStrategy(strategy *types.TailoringStrategy) error {
	if strategy.OverallMatchScore < 0 || strategy.OverallMatchScore > 100 {
		return fmt.Errorf("匹配分数超出范围: %d", strategy.OverallMatchScore)
	}
	if strategy.MatchSummary == "" {
		return fmt.Errorf("匹配摘要为空")
	}
	return nil
}
