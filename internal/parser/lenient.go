package parser

import (
	"strings"

	"resume-agent-go/internal/constants"
)

// suggestionMarkerCutset 列表行前导标记字符，剥离后才是建议正文
const suggestionMarkerCutset = "0123456789.-•) "

// ParseSuggestionLines 从自由文本中提取列表型建议行。
// 与严格JSON解析路径相互独立，对任何畸形输入都不报错，
// 只做尽力而为的降级：没有列表行时退回全部非平凡行，上限 limit 条。
func ParseSuggestionLines(raw string, limit int) []string {
	if limit <= 0 {
		limit = constants.MaxSuggestions
	}

	rawLines := strings.Split(strings.TrimSpace(raw), "\n")
	suggestions := make([]string, 0, limit)
	for _, line := range rawLines {
		line = strings.TrimSpace(line)
		if !isListLine(line) {
			continue
		}
		cleaned := strings.TrimSpace(strings.TrimLeft(line, suggestionMarkerCutset))
		if len(cleaned) > constants.MinSuggestionLength {
			suggestions = append(suggestions, cleaned)
		}
	}

	// 模型没按列表格式回答时，保留全部有内容的行
	if len(suggestions) == 0 {
		for _, line := range rawLines {
			line = strings.TrimSpace(line)
			if len(line) > constants.MinSuggestionLength {
				suggestions = append(suggestions, line)
			}
		}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func isListLine(line string) bool {
	if line == "" {
		return false
	}
	if line[0] >= '0' && line[0] <= '9' {
		return true
	}
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•")
}
