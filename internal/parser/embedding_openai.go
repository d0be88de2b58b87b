package parser

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

	"github.com/cloudwego/eino/components/embedding"

	"resume-agent-go/internal/config"
)

// OpenAICompatEmbedder 走OpenAI兼容 /embeddings 接口的向量化客户端，
// 实现 eino embedding.Embedder 接口
type OpenAICompatEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewOpenAICompatEmbedder 创建OpenAI兼容端点的向量化客户端
func NewOpenAICompatEmbedder(apiKey string, embeddingCfg config.EmbeddingConfig) (*OpenAICompatEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if embeddingCfg.BaseURL == "" {
		return nil, fmt.Errorf("向量化接口地址不能为空")
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAICompatEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: embeddingCfg.Dimensions,
		apiURL:     strings.TrimSuffix(embeddingCfg.BaseURL, "/") + "/embeddings",
		httpClient: &http.Client{},
		logger:     log.New(os.Stderr, "[OpenAICompatEmbedder] ", log.LstdFlags|log.Lshortfile),
	}, nil
}

// GetDimensions 返回嵌入器配置的向量维度
func (e *OpenAICompatEmbedder) GetDimensions() int {
	return e.dimensions
}

type openAIEmbeddingRequest struct {
	Input      interface{} `json:"input"` // string 或 []string
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions,omitempty"`
}

type openAIEmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIEmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// openAIEmbeddingError 接口可能在200响应体内携带的错误
type openAIEmbeddingError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIEmbeddingResponse struct {
	Object string                `json:"object"`
	Data   []openAIEmbeddingData `json:"data"`
	Model  string                `json:"model"`
	Usage  openAIEmbeddingUsage  `json:"usage"`
	Error  *openAIEmbeddingError `json:"error,omitempty"`
}

// EmbedStrings 将文本批量转换为向量，实现 eino embedding.Embedder 接口。
// 输入为空时直接返回空切片不发起请求，结果按响应的index字段归位。
func (e *OpenAICompatEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	options := embedding.GetCommonOptions(&embedding.Options{
		Model: &e.model,
	}, opts...)

	var input interface{}
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	reqBody := openAIEmbeddingRequest{
		Input: input,
		Model: *options.Model,
	}
	if e.dimensions > 0 {
		reqBody.Dimensions = e.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 输入是简历与JD原文，日志只记录批量规模
	e.logger.Printf("向量化请求: model=%s, texts=%d, bytes=%d", reqBody.Model, len(texts), len(jsonData))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiError openAIEmbeddingError
		if json.Unmarshal(body, &apiError) == nil && apiError.Message != "" {
			return nil, fmt.Errorf("API调用失败, 状态码: %d, 类型: %s, 错误: %s, Code: %s",
				resp.StatusCode, apiError.Type, apiError.Message, apiError.Code)
		}
		return nil, fmt.Errorf("API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("API返回错误: 类型=%s, 消息='%s', Code=%s",
			parsed.Error.Type, parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("返回向量数量 %d 与输入文本数量 %d 不一致", len(parsed.Data), len(texts))
	}

	outputEmbeddings := make([][]float64, len(texts))
	for i, entry := range parsed.Data {
		pos := entry.Index
		if pos < 0 || pos >= len(outputEmbeddings) {
			pos = i
		}
		outputEmbeddings[pos] = entry.Embedding
	}

	e.logger.Printf("向量化完成: texts=%d, dim=%d, tokens=%d",
		len(texts), firstEmbeddingDim(outputEmbeddings), parsed.Usage.TotalTokens)
	return outputEmbeddings, nil
}

func firstEmbeddingDim(embeddings [][]float64) int {
	if len(embeddings) > 0 {
		return len(embeddings[0])
	}
	return 0
}

var _ embedding.Embedder = (*OpenAICompatEmbedder)(nil)
