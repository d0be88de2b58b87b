package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

const validStrategyJSON = `{
    "overall_match_score": 72,
    "match_summary": "Strong Python background, missing AWS exposure.",
    "strong_matches": [
        {
            "skill_or_experience": "Python",
            "evidence": "Five years of backend Python work",
            "strategy": "Lead the skills section with Python"
        }
    ],
    "partial_matches": [
        {
            "requirement": "Cloud deployment",
            "candidate_has": "Docker and on-prem Kubernetes",
            "strategy": "Frame container work as cloud-adjacent"
        }
    ],
    "gaps": [
        {
            "missing": "AWS",
            "severity": "moderate",
            "mitigation": "Mention transferable infrastructure skills"
        }
    ],
    "skills_to_emphasize": [
        {
            "skill": "Python",
            "reason": "Core requirement of the posting",
            "how": "Quantify Python project outcomes"
        }
    ],
    "experience_to_highlight": [
        {
            "experience": "Payments team lead at Acme",
            "why": "Shows ownership the role demands",
            "key_achievements": ["Cut latency 40%"]
        }
    ],
    "keywords_to_add": ["AWS", "MLOps"],
    "structural_recommendations": {
        "summary_focus": "Backend depth plus infrastructure breadth",
        "skills_section": "Group by backend, data, infrastructure",
        "experience_order": "Acme first",
        "what_to_deemphasize": ["Early internships"]
    },
    "enhanced_elements": {
        "github_strategy": "Link the deployment tooling repo",
        "portfolio_strategy": "",
        "extracurriculars_strategy": "Keep the mentoring entry"
    },
    "differentiation_strategy": "Position as a Python specialist who ships infrastructure",
    "specific_actions": ["Add AWS coursework", "Quantify latency work"]
}`

func testJobRequirements() *types.JobRequirements {
	return &types.JobRequirements{
		RequiredSkills:      []string{"Python", "AWS"},
		NiceToHaveSkills:    []string{},
		EducationRequired:   "BS in Computer Science",
		ExperienceLevel:     "3-5 years",
		KeyResponsibilities: []string{"Build ML pipelines"},
		ImportantKeywords:   []string{"Python", "AWS"},
		CompanyCulture:      "Fast-paced startup",
	}
}

func testResumeFacts() *types.ResumeFacts {
	return &types.ResumeFacts{
		Name: "Jane Doe",
		ContactInfo: types.ContactInfo{
			Email: "jane@example.com",
		},
		Summary:         "Backend engineer with five years of Python experience.",
		Skills:          []string{"Python", "Docker"},
		TechnicalSkills: []string{"Python"},
		Experience: []types.ExperienceEntry{
			{Title: "Senior Engineer", Company: "Acme", Duration: "2021-2024"},
		},
	}
}

func TestStrategySynthesizer_Synthesize(t *testing.T) {
	t.Run("合成合法策略", func(t *testing.T) {
		mock := &mockChatModel{response: validStrategyJSON}
		synthesizer := NewStrategySynthesizer(mock, nil)

		result, err := synthesizer.Synthesize(context.Background(), testJobRequirements(), testResumeFacts())
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 72, result.OverallMatchScore)
		require.Len(t, result.Gaps, 1)
		assert.Equal(t, "AWS", result.Gaps[0].Missing)
		assert.Equal(t, 1, mock.callCount)

		// 两份结构化记录都以JSON形式进入提示词
		require.Len(t, mock.lastMessages, 2)
		userPrompt := mock.lastMessages[1].Content
		assert.Contains(t, userPrompt, "JOB REQUIREMENTS:")
		assert.Contains(t, userPrompt, `"Fast-paced startup"`)
		assert.Contains(t, userPrompt, "CANDIDATE'S BACKGROUND:")
		assert.Contains(t, userPrompt, `"Jane Doe"`)
	})

	t.Run("输入缺失直接拒绝", func(t *testing.T) {
		mock := &mockChatModel{response: validStrategyJSON}
		synthesizer := NewStrategySynthesizer(mock, nil)

		_, err := synthesizer.Synthesize(context.Background(), nil, testResumeFacts())
		require.Error(t, err)
		_, err = synthesizer.Synthesize(context.Background(), testJobRequirements(), nil)
		require.Error(t, err)
		assert.Equal(t, 0, mock.callCount)
	})

	t.Run("匹配摘要为空视为输出损坏", func(t *testing.T) {
		broken := strings.Replace(validStrategyJSON,
			`"match_summary": "Strong Python background, missing AWS exposure.",`,
			`"match_summary": "",`, 1)
		mock := &mockChatModel{response: broken}
		synthesizer := NewStrategySynthesizer(mock, nil)

		_, err := synthesizer.Synthesize(context.Background(), testJobRequirements(), testResumeFacts())
		require.Error(t, err)

		var extractionErr *types.ExtractionError
		require.True(t, errors.As(err, &extractionErr))
		assert.Equal(t, StageStrategy, extractionErr.Stage)
	})

	t.Run("匹配分数越界视为输出损坏", func(t *testing.T) {
		broken := strings.Replace(validStrategyJSON,
			`"overall_match_score": 72,`,
			`"overall_match_score": 150,`, 1)
		mock := &mockChatModel{response: broken}
		synthesizer := NewStrategySynthesizer(mock, nil)

		_, err := synthesizer.Synthesize(context.Background(), testJobRequirements(), testResumeFacts())
		require.Error(t, err)

		var extractionErr *types.ExtractionError
		require.True(t, errors.As(err, &extractionErr))
		assert.Equal(t, StageStrategy, extractionErr.Stage)
	})

	t.Run("模型调用失败返回生成错误", func(t *testing.T) {
		mock := &mockChatModel{err: fmt.Errorf("rate limited")}
		synthesizer := NewStrategySynthesizer(mock, nil)

		_, err := synthesizer.Synthesize(context.Background(), testJobRequirements(), testResumeFacts())
		require.Error(t, err)

		var genErr *types.GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, StageStrategy, genErr.Stage)
	})

	t.Run("自定义提示词模板", func(t *testing.T) {
		mock := &mockChatModel{response: validStrategyJSON}
		synthesizer := NewStrategySynthesizer(mock, nil,
			WithStrategyPromptTemplate("PLAN FOR:\n%s\nAGAINST:\n%s"))

		_, err := synthesizer.Synthesize(context.Background(), testJobRequirements(), testResumeFacts())
		require.NoError(t, err)

		userPrompt := mock.lastMessages[1].Content
		assert.True(t, strings.HasPrefix(userPrompt, "PLAN FOR:"))
		assert.Contains(t, userPrompt, `"Jane Doe"`)
	})
}
