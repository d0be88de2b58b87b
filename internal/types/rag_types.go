package types

// ContextChunk 上下文存储中的一个分块，只追加不修改
type ContextChunk struct {
	Text   string `json:"text"`
	Source string `json:"source"` // resume / job_description / feedback
	UserID string `json:"user_id"`
	Type   string `json:"type"`
	Rating int    `json:"rating,omitempty"` // 仅feedback分块携带，1-5
}

// IngestResult 文档摄入结果
type IngestResult struct {
	Success           bool   `json:"success"`
	ChunksCreated     int    `json:"chunks_created"`
	HasJobDescription bool   `json:"has_job_description"`
	VectorStorePath   string `json:"vector_store_path"`
	Message           string `json:"message"`
	Error             string `json:"error,omitempty"`
}

// GenerationResult 指令驱动生成的结果，软失败时Success为false且不抛错
type GenerationResult struct {
	Success         bool     `json:"success"`
	GenerationID    string   `json:"generation_id,omitempty"`
	TailoredContent string   `json:"tailored_content,omitempty"`
	SourceDocuments []string `json:"source_documents,omitempty"` // 每个来源分块的前200字符摘录
	Instruction     string   `json:"instruction,omitempty"`
	Error           string   `json:"error,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LearnResult 反馈写入结果
type LearnResult struct {
	Success     bool   `json:"success"`
	ChunksAdded int    `json:"chunks_added"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FeedbackOutcome 反馈闭环的完整返回：写入结果与改进生成结果互不阻塞
type FeedbackOutcome struct {
	LearningStatus     *LearnResult      `json:"learning_status"`
	RefinedContent     *GenerationResult `json:"refined_content"`
	ImprovementApplied bool              `json:"improvement_applied"`
}

// SuggestionResult 建议生成结果
type SuggestionResult struct {
	Suggestions       []string `json:"suggestions"`
	HasJobDescription bool     `json:"has_job_description"`
}

// ChunkHit 检索命中的分块及其相似度得分
type ChunkHit struct {
	Chunk ContextChunk `json:"chunk"`
	Score float64      `json:"score"`
}

// ChatResult 会话式问答结果
type ChatResult struct {
	Success   bool   `json:"success"`
	Reply     string `json:"reply,omitempty"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}
