package types

import "fmt"

// ExtractionError 模型响应无法解析为符合契约的结构化记录。
// 携带原始响应便于排查，所在阶段随之终止。
type ExtractionError struct {
	Stage       string // 逻辑阶段名，如 job_extraction
	RawResponse string // 模型原始输出
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("解析 %s 阶段的模型响应失败: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationError 模型调用本身失败（网络、配额等）。流水线阶段视为致命，
// RAG操作把它折叠进软失败结果而不向上抛。
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s 阶段的模型调用失败: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
