package processor

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"resume-agent-go/internal/constants"
)

//go:embed templates/resume_template.tex
var defaultDocumentTemplate string

// DefaultTemplate 返回内置的LaTeX简历模板
func DefaultTemplate() string {
	return defaultDocumentTemplate
}

// ResolveTemplate 加载渲染模板。路径为空时使用内置模板，
// 显式配置的路径读取失败或缺少内容占位符都视为配置错误向上返回。
func ResolveTemplate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return defaultDocumentTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取模板文件失败: %w", err)
	}
	if !strings.Contains(string(data), constants.TemplatePlaceholder) {
		return "", fmt.Errorf("模板文件 %s 缺少 %s 占位符", path, constants.TemplatePlaceholder)
	}
	return string(data), nil
}
