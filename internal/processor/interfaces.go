package processor

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"resume-agent-go/internal/types"
)

//
// 流水线阶段接口
//

// JobExtractor 职位要求抽取接口
type JobExtractor interface {
	// Extract 从职位描述文本抽取结构化岗位要求
	Extract(ctx context.Context, jobText string) (*types.JobRequirements, error)
}

// ResumeExtractor 简历事实抽取接口
type ResumeExtractor interface {
	// Extract 从简历文本抽取结构化简历事实
	Extract(ctx context.Context, resumeText string) (*types.ResumeFacts, error)
}

// StrategySynthesizer 裁剪策略合成接口
type StrategySynthesizer interface {
	// Synthesize 对照岗位要求与简历事实生成裁剪策略
	Synthesize(ctx context.Context, job *types.JobRequirements, facts *types.ResumeFacts) (*types.TailoringStrategy, error)
}

// DocumentRenderer 文档渲染接口
type DocumentRenderer interface {
	// Render 按策略生成简历内容并合并进模板
	Render(ctx context.Context, facts *types.ResumeFacts, strategy *types.TailoringStrategy, job *types.JobRequirements, template string) (*types.RenderedDocument, error)
}

//
// 向量化相关接口
//

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

// TextSplitter 文本分块接口
type TextSplitter interface {
	// Split 将文本切为带重叠的分块
	Split(text string) []string

	// SplitDocuments 分块文档集合，每个分块继承其来源文档的元数据
	SplitDocuments(documents []types.ContextChunk) []types.ContextChunk
}
