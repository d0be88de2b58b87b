package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"resume-agent-go/internal/config"
)

// geminiLogger 组件级日志，带调用位置，便于定位模型请求问题
var geminiLogger = log.New(os.Stderr, "[GeminiChatModel] ", log.LstdFlags|log.Lshortfile)

// GeminiChatModel 基于 google.golang.org/genai 官方 SDK 的聊天模型客户端，
// 实现 eino 的 model.ToolCallingChatModel 接口。system 消息折叠进
// SystemInstruction，其余消息按角色映射为多轮对话内容。
type GeminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature *float32
	tools       []*schema.ToolInfo
}

// NewGeminiChatModel 创建 Gemini 聊天模型客户端。
// apiKey 为空或仍为示例占位值时返回 *config.ConfigurationError，
// 调用方应直接终止启动而不是重试。
func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, temperature float32) (*GeminiChatModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &config.ConfigurationError{Field: "llm.api_key", Reason: "未配置API密钥"}
	}
	if apiKey == config.PlaceholderAPIKey {
		return nil, &config.ConfigurationError{Field: "llm.api_key", Reason: "仍为示例占位值，请替换为真实密钥"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 genai 客户端失败: %w", err)
	}

	m := &GeminiChatModel{
		client:    client,
		modelName: modelName,
	}
	if temperature > 0 {
		t := temperature
		m.temperature = &t
	}
	geminiLogger.Printf("使用 Gemini 聊天模型客户端，模型: %s", modelName)
	return m, nil
}

// Generate 实现 model.ToolCallingChatModel 接口。
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("消息列表为空")
	}

	options := model.GetCommonOptions(&model.Options{
		Model:       &g.modelName,
		Temperature: g.temperature,
	}, opts...)

	contents, genCfg := g.buildRequest(messages, options)
	if len(contents) == 0 {
		return nil, fmt.Errorf("消息列表中没有可发送的对话内容")
	}

	resp, err := g.client.Models.GenerateContent(ctx, *options.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("调用 Gemini API 失败: %w", err)
	}

	text := collectResponseText(resp)
	if text == "" {
		return nil, fmt.Errorf("Gemini API 返回空响应")
	}
	return &schema.Message{Role: schema.Assistant, Content: text}, nil
}

// Stream 实现 model.ToolCallingChatModel 接口（占位，当前没有流式调用方）。
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	geminiLogger.Println("Stream 方法被调用，但尚未实现")
	return nil, fmt.Errorf("GeminiChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口，返回绑定工具后的副本，
// 原实例不受影响。
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *g
	clone.tools = make([]*schema.ToolInfo, len(tools))
	copy(clone.tools, tools)
	geminiLogger.Printf("绑定 %d 个工具", len(tools))
	return &clone, nil
}

// buildRequest 把 eino 消息序列转换为 genai 的请求内容与生成配置。
// tool 角色的观察结果没有结构化对应物，与 user 消息同侧发送。
func (g *GeminiChatModel) buildRequest(messages []*schema.Message, options *model.Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	genCfg := &genai.GenerateContentConfig{Temperature: options.Temperature}

	var system strings.Builder
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	if system.Len() > 0 {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system.String()}},
		}
	}
	if tools := buildGeminiTools(g.tools); len(tools) > 0 {
		genCfg.Tools = tools
	}
	return contents, genCfg
}

// buildGeminiTools 把 eino 工具声明转换为 genai 函数声明。
// schema.ParamsOneOf 的内部结构无法从包外导出，参数 schema 不透传，
// 只携带名称与描述。
func buildGeminiTools(bound []*schema.ToolInfo) []*genai.Tool {
	if len(bound) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(bound))
	for _, t := range bound {
		if t == nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Desc,
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// collectResponseText 汇总候选响应中的全部文本片段。
func collectResponseText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)
