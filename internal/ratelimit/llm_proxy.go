package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedLLMModel 对LLM模型的调用进行限流的代理。
// 默认只做节流（Wait后恰好调用一次底层模型），重试需显式启用：
// 四阶段流水线要求每阶段恰好一次模型调用，失败即终止。
type RateLimitedLLMModel struct {
	original     model.ToolCallingChatModel
	rateLimiter  *TokenBucket
	retryEnabled bool
}

// NewRateLimitedLLMModel 创建一个新的限流LLM模型代理
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2), // 容量设为QPM的一半，允许一定的突发流量
	}
}

// WithRetryPolicy 启用重试并设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	rl.retryEnabled = true
	return rl
}

// Generate 代理Generate方法，增加限流逻辑
func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if rl.retryEnabled {
		var response *schema.Message
		err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
			var genErr error
			response, genErr = rl.original.Generate(ctx, messages, options...)
			return genErr
		})
		return response, err
	}

	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Generate(ctx, messages, options...)
}

// Stream 代理Stream方法，增加限流逻辑
func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if rl.retryEnabled {
		var stream *schema.StreamReader[*schema.Message]
		err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
			var streamErr error
			stream, streamErr = rl.original.Stream(ctx, messages, options...)
			return streamErr
		})
		return stream, err
	}

	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Stream(ctx, messages, options...)
}

// WithTools 代理WithTools方法
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}

	// 创建一个新的限流代理，保留原有的限流设置
	return &RateLimitedLLMModel{
		original:     newModel,
		rateLimiter:  rl.rateLimiter,
		retryEnabled: rl.retryEnabled,
	}, nil
}

// NewLLMWithRateLimit 直接从配置和原始LLM模型创建带限流的LLM模型。
// 限流始终开启；重试保持关闭，由调用方在需要时通过WithRetryPolicy启用。
func NewLLMWithRateLimit(original model.ToolCallingChatModel, modelName string, cfg map[string]int, customQPM int) model.ToolCallingChatModel {
	// 确定最终的QPM值
	qpm := customQPM // 默认使用自定义QPM

	// 如果配置映射不为空，尝试从中获取模型特定的QPM
	if cfg != nil && modelName != "" {
		if modelQPM, ok := cfg[modelName]; ok && modelQPM > 0 {
			// 找到了模型对应的QPM限制，使用该限制值的90%作为安全值
			safeQPM := int(float64(modelQPM) * 0.9)
			qpm = safeQPM
		}
	}

	// 如果QPM仍为0，设置默认值
	if qpm <= 0 {
		qpm = 30 // 默认QPM
	}

	return NewRateLimitedLLMModel(original, qpm)
}
