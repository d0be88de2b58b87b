package parser

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"resume-agent-go/internal/config"
)

// GeminiEmbedder Gemini向量化客户端，实现 eino embedding.Embedder 接口
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	logger     *log.Logger
}

// NewGeminiEmbedder 创建Gemini向量化客户端。
// apiKey 为空或仍为示例占位值时返回 *config.ConfigurationError。
func NewGeminiEmbedder(ctx context.Context, apiKey string, embeddingCfg config.EmbeddingConfig) (*GeminiEmbedder, error) {
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
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "text-embedding-004"
	}

	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: embeddingCfg.Dimensions,
		logger:     log.New(os.Stderr, "[GeminiEmbedder] ", log.LstdFlags|log.Lshortfile),
	}, nil
}

// GetDimensions 返回嵌入器配置的向量维度
func (e *GeminiEmbedder) GetDimensions() int {
	return e.dimensions
}

// EmbedStrings 将文本批量转换为向量，实现 eino embedding.Embedder 接口。
// 输入为空时直接返回空切片不发起请求。
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	options := embedding.GetCommonOptions(&embedding.Options{
		Model: &e.model,
	}, opts...)

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}

	embedCfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dim := int32(e.dimensions)
		embedCfg.OutputDimensionality = &dim
	}

	// 输入是简历与JD原文，日志只记录批量规模
	e.logger.Printf("向量化请求: model=%s, texts=%d", *options.Model, len(texts))

	resp, err := e.client.Models.EmbedContent(ctx, *options.Model, contents, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini向量化调用失败: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("Gemini向量化返回空结果")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("返回向量数量 %d 与输入文本数量 %d 不一致", len(resp.Embeddings), len(texts))
	}

	outputEmbeddings := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("第 %d 条向量为空", i)
		}
		vector := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vector[j] = float64(v)
		}
		outputEmbeddings[i] = vector
	}

	e.logger.Printf("向量化完成: texts=%d, dim=%d", len(texts), firstEmbeddingDim(outputEmbeddings))
	return outputEmbeddings, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
