package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/schema"
	"resume-agent-go/internal/types"
)

const validJobJSON = `{
    "required_skills": ["Python", "AWS"],
    "nice_to_have_skills": ["Terraform"],
    "education_required": "BS in Computer Science",
    "experience_level": "3-5 years",
    "key_responsibilities": ["Build ML pipelines", "Operate training infra"],
    "important_keywords": ["Python", "AWS", "MLOps"],
    "company_culture": "Fast-paced startup"
}`

func TestStripCodeFences(t *testing.T) {
	t.Run("JSON围栏", func(t *testing.T) {
		got := StripCodeFences("```json\n{\"a\": 1}\n```", "json")
		assert.Equal(t, `{"a": 1}`, got)
	})

	t.Run("LaTeX围栏", func(t *testing.T) {
		got := StripCodeFences("```latex\n\\section{Summary}\n```", "latex")
		assert.Equal(t, `\section{Summary}`, got)
	})

	t.Run("无语言标记的围栏", func(t *testing.T) {
		got := StripCodeFences("```\n{\"a\": 1}\n```", "json")
		assert.Equal(t, `{"a": 1}`, got)
	})

	t.Run("BOM前缀", func(t *testing.T) {
		got := StripCodeFences("﻿{\"a\": 1}", "json")
		assert.Equal(t, `{"a": 1}`, got)
	})

	t.Run("无围栏内容原样保留", func(t *testing.T) {
		got := StripCodeFences("  {\"a\": 1}  ", "json")
		assert.Equal(t, `{"a": 1}`, got)
	})
}

func TestExtractJSONObject(t *testing.T) {
	t.Run("截取前后有说明文字的对象", func(t *testing.T) {
		text := "Here is the result:\n{\"a\": 1}\nHope this helps!"
		assert.Equal(t, `{"a": 1}`, ExtractJSONObject(text))
	})

	t.Run("嵌套对象完整截取", func(t *testing.T) {
		text := `前缀 {"outer": {"inner": [1, 2]}} 后缀`
		assert.Equal(t, `{"outer": {"inner": [1, 2]}}`, ExtractJSONObject(text))
	})

	t.Run("没有花括号返回空串", func(t *testing.T) {
		assert.Equal(t, "", ExtractJSONObject("no json here"))
	})

	t.Run("花括号不闭合返回空串", func(t *testing.T) {
		assert.Equal(t, "", ExtractJSONObject(`{"a": {"b": 1}`))
	})
}

func TestSanitizeJSON(t *testing.T) {
	t.Run("修复字符串内部未转义引号", func(t *testing.T) {
		src := `{"summary": "He said "hello" to me", "score": 5}`
		want := `{"summary": "He said \"hello\" to me", "score": 5}`
		assert.Equal(t, want, SanitizeJSON(src))
	})

	t.Run("合法JSON保持不变", func(t *testing.T) {
		src := `{"a": "b", "c": [1, 2], "d": {"e": "f"}}`
		assert.Equal(t, src, SanitizeJSON(src))
	})

	t.Run("已转义引号不被二次处理", func(t *testing.T) {
		src := `{"a": "say \"hi\" now"}`
		assert.Equal(t, src, SanitizeJSON(src))
	})
}

func TestParseStageJSON(t *testing.T) {
	t.Run("直接返回的JSON", func(t *testing.T) {
		var out types.JobRequirements
		err := ParseStageJSON("job_extraction", schema.KindJobRequirements, validJobJSON, &out)
		require.NoError(t, err)
		assert.Equal(t, []string{"Python", "AWS"}, out.RequiredSkills)
		assert.Equal(t, "3-5 years", out.ExperienceLevel)
	})

	t.Run("围栏加说明文字包裹的JSON", func(t *testing.T) {
		raw := "Sure, here is the analysis:\n```json\n" + validJobJSON + "\n```\nLet me know if you need more."
		var out types.JobRequirements
		err := ParseStageJSON("job_extraction", schema.KindJobRequirements, raw, &out)
		require.NoError(t, err)
		assert.Equal(t, "Fast-paced startup", out.CompanyCulture)
	})

	t.Run("引号破损的JSON经修复后通过", func(t *testing.T) {
		raw := `{
    "required_skills": ["Python"],
    "nice_to_have_skills": [],
    "education_required": "BS "honors" program",
    "experience_level": "2 years",
    "key_responsibilities": ["Ship features"],
    "important_keywords": ["Python"],
    "company_culture": ""
}`
		var out types.JobRequirements
		err := ParseStageJSON("job_extraction", schema.KindJobRequirements, raw, &out)
		require.NoError(t, err)
		assert.Equal(t, `BS "honors" program`, out.EducationRequired)
	})

	t.Run("缺少必需字段返回抽取错误", func(t *testing.T) {
		raw := `{"required_skills": ["Python"]}`
		var out types.JobRequirements
		err := ParseStageJSON("job_extraction", schema.KindJobRequirements, raw, &out)
		require.Error(t, err)

		var extractionErr *types.ExtractionError
		require.True(t, errors.As(err, &extractionErr))
		assert.Equal(t, "job_extraction", extractionErr.Stage)
		assert.Equal(t, raw, extractionErr.RawResponse)
	})

	t.Run("没有JSON对象返回抽取错误", func(t *testing.T) {
		var out types.JobRequirements
		err := ParseStageJSON("job_extraction", schema.KindJobRequirements, "I could not process that.", &out)
		require.Error(t, err)

		var extractionErr *types.ExtractionError
		require.True(t, errors.As(err, &extractionErr))
		assert.Equal(t, "I could not process that.", extractionErr.RawResponse)
	})
}
