package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSuggestionLines(t *testing.T) {
	t.Run("编号列表", func(t *testing.T) {
		raw := "1. Add quantified metrics to bullets\n2. Strengthen action verbs everywhere"
		got := ParseSuggestionLines(raw, 5)
		assert.Equal(t, []string{
			"Add quantified metrics to bullets",
			"Strengthen action verbs everywhere",
		}, got)
	})

	t.Run("短横线与圆点列表", func(t *testing.T) {
		raw := "- Highlight the leadership experience\n• Include certifications near the top"
		got := ParseSuggestionLines(raw, 5)
		assert.Equal(t, []string{
			"Highlight the leadership experience",
			"Include certifications near the top",
		}, got)
	})

	t.Run("括号编号的前导标记被剥离", func(t *testing.T) {
		got := ParseSuggestionLines("3) Reframe the internship as product work", 5)
		assert.Equal(t, []string{"Reframe the internship as product work"}, got)
	})

	t.Run("剥离后过短的行被丢弃", func(t *testing.T) {
		raw := "1. Too short\n2. Add measurable outcomes to each role"
		got := ParseSuggestionLines(raw, 5)
		assert.Equal(t, []string{"Add measurable outcomes to each role"}, got)
	})

	t.Run("混有说明文字时只保留列表行", func(t *testing.T) {
		raw := "Here are my suggestions:\n1. Quantify the payments latency work\nLet me know if you need more."
		got := ParseSuggestionLines(raw, 5)
		assert.Equal(t, []string{"Quantify the payments latency work"}, got)
	})

	t.Run("没有列表行时退回全部非平凡行", func(t *testing.T) {
		raw := "Consider adding metrics everywhere.\nok\nAlso strengthen the action verbs."
		got := ParseSuggestionLines(raw, 5)
		assert.Equal(t, []string{
			"Consider adding metrics everywhere.",
			"Also strengthen the action verbs.",
		}, got)
	})

	t.Run("超过上限时截断", func(t *testing.T) {
		raw := "1. Add quantified metrics to bullets\n" +
			"2. Strengthen action verbs everywhere\n" +
			"3. Highlight the leadership experience\n" +
			"4. Include certifications near the top\n" +
			"5. Reframe the internship as product work\n" +
			"6. Quantify the payments latency work\n" +
			"7. Trim the outdated technology list"
		got := ParseSuggestionLines(raw, 5)
		assert.Len(t, got, 5)
	})

	t.Run("非法上限使用默认值", func(t *testing.T) {
		raw := "1. Add quantified metrics to bullets"
		got := ParseSuggestionLines(raw, 0)
		assert.Len(t, got, 1)
	})

	t.Run("空输入返回空结果", func(t *testing.T) {
		assert.Empty(t, ParseSuggestionLines("", 5))
		assert.Empty(t, ParseSuggestionLines("   \n  \n", 5))
	})
}
