package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"resume-agent-go/internal/schema"
	"resume-agent-go/internal/types"
)

// StripCodeFences 去掉模型响应外层的Markdown代码围栏与BOM。
// kind 是围栏语言标记（json、latex），替换采用与围栏出现方式一致的
// 纯文本替换，不做结构解析。
func StripCodeFences(raw, kind string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	if kind != "" {
		s = strings.ReplaceAll(s, "```"+kind, "")
	}
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ExtractJSONObject 用花括号配对从文本中截取第一个完整的JSON对象。
// 找不到完整对象时返回空串。
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// SanitizeJSON 修复字符串字面量内部未转义的双引号。通过检查引号后的
// 下一个非空白字符是否为 JSON 语法符号（: , ] }）来判断该引号是否为
// 字符串的真正结束，否则改写为 \"。
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}

// ParseStageJSON 流水线阶段共用的严格解析路径：围栏清洗、花括号截取、
// UTF-8 校正、schema 校验后解码到 out。首轮失败时做一次引号修复重试，
// 仍失败则返回携带原始响应的 *types.ExtractionError。
func ParseStageJSON(stage string, kind schema.Kind, raw string, out interface{}) error {
	cleaned := StripCodeFences(raw, "json")

	jsonStr := ExtractJSONObject(cleaned)
	if jsonStr == "" {
		return &types.ExtractionError{
			Stage:       stage,
			RawResponse: raw,
			Err:         fmt.Errorf("响应中没有完整的JSON对象"),
		}
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	if err := validateAndDecode(kind, jsonStr, out); err != nil {
		fixed := SanitizeJSON(jsonStr)
		if retryErr := validateAndDecode(kind, fixed, out); retryErr != nil {
			return &types.ExtractionError{
				Stage:       stage,
				RawResponse: raw,
				Err:         err,
			}
		}
	}
	return nil
}

// validateAndDecode 先做 JSON Schema 校验再解码，保证进入类型系统的
// 记录形状已经合法。
func validateAndDecode(kind schema.Kind, jsonStr string, out interface{}) error {
	if err := schema.Validate(kind, []byte(jsonStr)); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("解码JSON失败: %w", err)
	}
	return nil
}
