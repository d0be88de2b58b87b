package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/ratelimit"
)

// 支持的模型提供方
const (
	ProviderGemini       = "gemini"
	ProviderOpenAICompat = "openai_compat"
)

// 任务名称，用于在 task_models 配置中路由任务专用模型
const (
	TaskJobExtraction    = "job_extraction"
	TaskResumeExtraction = "resume_extraction"
	TaskStrategy         = "strategy"
	TaskRender           = "render"
	TaskRAG              = "rag"
	TaskSuggestions      = "suggestions"
	TaskChat             = "chat"
)

// BuildChatModel 按配置的提供方构建聊天模型客户端，并在该模型配置了
// QPM 限制时包一层限流代理。task 用于查找任务专用模型，未配置时
// 回落到默认模型。
func BuildChatModel(ctx context.Context, cfg *config.Config, task string) (model.ToolCallingChatModel, error) {
	modelName := cfg.GetModelForTask(task)

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch cfg.LLM.Provider {
	case ProviderOpenAICompat:
		chatModel, err = NewOpenAICompatChatModel(cfg.LLM.APIKey, modelName, cfg.LLM.BaseURL, float32(cfg.LLM.Temperature))
	case ProviderGemini, "":
		chatModel, err = NewGeminiChatModel(ctx, cfg.LLM.APIKey, modelName, float32(cfg.LLM.Temperature))
	default:
		return nil, fmt.Errorf("不支持的模型提供方: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	// 限流代理只在显式配置了 QPM 限制时启用，
	// 未知模型不按默认 QPM 兜底节流
	if _, ok := cfg.ModelQPMLimits[modelName]; ok {
		return ratelimit.NewLLMWithRateLimit(chatModel, modelName, cfg.ModelQPMLimits, 0), nil
	}
	return chatModel, nil
}
