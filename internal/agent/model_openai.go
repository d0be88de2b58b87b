package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var openaiLogger = log.New(os.Stderr, "[OpenAICompatChatModel] ", log.LstdFlags|log.Lshortfile)

// --- OpenAI 兼容协议的请求/响应结构 ---

type openAIParamProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type openAIFunctionParams struct {
	Type       string                         `json:"type"`
	Properties map[string]openAIParamProperty `json:"properties"`
	Required   []string                       `json:"required,omitempty"`
}

type openAIFunction struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  openAIFunctionParams `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"` // 固定为 "function"
	Function openAIFunction `json:"function"`
}

type openAIChatRequest struct {
	Model string `json:"model"`
	// eino 的 schema.Message 字段与 OpenAI 消息协议兼容，可直接序列化
	Messages    []*schema.Message `json:"messages"`
	Tools       []openAITool      `json:"tools,omitempty"`
	Temperature *float32          `json:"temperature,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponseMessage struct {
	Role string `json:"role"`
	// 有 tool_calls 时 content 可能为 null
	Content   *string          `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIChatChoice struct {
	Index        int                   `json:"index"`
	Message      openAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// OpenAICompatChatModel 通过 OpenAI 兼容的 /chat/completions 端点调用
// 自托管或第三方模型服务，实现 eino 的 model.ToolCallingChatModel 接口。
type OpenAICompatChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature *float32
	httpClient  *http.Client
	boundTools  []openAITool
}

// NewOpenAICompatChatModel 创建 OpenAI 兼容聊天模型客户端。
// baseURL 形如 https://host/v1，路径 /chat/completions 由本客户端拼接。
func NewOpenAICompatChatModel(apiKey, modelName, baseURL string, temperature float32) (*OpenAICompatChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("模型名称不能为空")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("openai_compat 模式必须配置 base_url")
	}

	m := &OpenAICompatChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{},
	}
	if temperature > 0 {
		t := temperature
		m.temperature = &t
	}
	openaiLogger.Printf("使用 OpenAI 兼容聊天模型客户端，API URL: %s, 模型: %s", m.apiURL, modelName)
	return m, nil
}

// Generate 实现 model.ToolCallingChatModel 接口。
func (m *OpenAICompatChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("消息列表为空")
	}

	options := model.GetCommonOptions(&model.Options{
		Model:       &m.modelName,
		Temperature: m.temperature,
	}, opts...)

	reqPayload := openAIChatRequest{
		Model:       *options.Model,
		Messages:    messages,
		Temperature: options.Temperature,
	}
	if len(m.boundTools) > 0 {
		reqPayload.Tools = m.boundTools
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	// 请求体包含简历与JD原文，日志只记录规模不落原文
	openaiLogger.Printf("发送请求到 %s，模型 %s，消息 %d 条，请求体 %d 字节", m.apiURL, reqPayload.Model, len(messages), len(jsonData))

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	openaiLogger.Printf("收到响应: Status=%s, Body=%d 字节", httpResp.Status, len(bodyBytes))

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var apiResp openAIChatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	return convertResponseMessage(apiResp.Choices[0].Message), nil
}

// Stream 实现 model.ToolCallingChatModel 接口（占位，当前没有流式调用方）。
func (m *OpenAICompatChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	openaiLogger.Println("Stream 方法被调用，但尚未实现")
	return nil, fmt.Errorf("OpenAICompatChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口，返回绑定工具后的副本。
func (m *OpenAICompatChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	clone.boundTools = buildOpenAITools(tools)
	openaiLogger.Printf("绑定 %d 个工具", len(clone.boundTools))
	return &clone, nil
}

// buildOpenAITools 把 eino 工具声明转换为 OpenAI 工具定义。
// schema.ParamsOneOf 的内部结构无法从包外导出，参数 schema 统一为空对象。
func buildOpenAITools(tools []*schema.ToolInfo) []openAITool {
	converted := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		converted = append(converted, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Desc,
				Parameters: openAIFunctionParams{
					Type:       "object",
					Properties: map[string]openAIParamProperty{},
				},
			},
		})
	}
	return converted
}

// convertResponseMessage 把 OpenAI 响应消息转换回 eino 消息。
func convertResponseMessage(apiMsg openAIResponseMessage) *schema.Message {
	content := ""
	if apiMsg.Content != nil {
		content = *apiMsg.Content
	}

	result := &schema.Message{
		Role:    schema.RoleType(apiMsg.Role),
		Content: content,
	}
	if result.Role == "" {
		result.Role = schema.Assistant
	}

	if len(apiMsg.ToolCalls) > 0 {
		result.ToolCalls = make([]schema.ToolCall, len(apiMsg.ToolCalls))
		for i, tc := range apiMsg.ToolCalls {
			result.ToolCalls[i] = schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}
	return result
}

var _ model.ToolCallingChatModel = (*OpenAICompatChatModel)(nil)
