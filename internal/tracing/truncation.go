package tracing

import (
	"strings"
)

const (
	// MaxPromptLength 指令与岗位描述预览的最大长度
	MaxPromptLength = 300

	// MaxResumeLength 简历内容预览的最大长度
	MaxResumeLength = 150
)

// maskPIILookup 属性名中出现这些关键字时对值做掩码
var maskPIILookup = map[string]bool{
	"email":    true,
	"phone":    true,
	"password": true,
	"身份证":      true,
	"id_card":  true,
	"address":  true,
	"地址":       true,
	"name":     true,
	"姓名":       true,
	"age":      true,
	"年龄":       true,
	"secret":   true,
	"token":    true,
}

// SafeAttributeValue 按属性名决定处理方式：
// 命中掩码关键字的值整体掩码，其余值截断到maxLength
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}

	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理。
// 短值保首尾，长值保前后各两位，中间以*填充。
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// "jane@example.com" -> "ja************om"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 按rune截断字符串，超长时保留前后两段并用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}

	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafePrompt 指令或岗位描述的安全预览
func SafePrompt(prompt string) string {
	return TruncateString(prompt, MaxPromptLength)
}

// SafeResumeContent 简历内容的安全预览
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
