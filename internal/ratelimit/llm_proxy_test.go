package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel 前failTimes次调用返回可重试错误，之后返回固定响应
type fakeModel struct {
	calls     int
	failTimes int
	response  *schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, errors.New("429 Too Many Requests")
	}
	return f.response, nil
}

func (f *fakeModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("不支持流式输出")
}

func (f *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

var _ model.ToolCallingChatModel = (*fakeModel)(nil)

func TestRateLimitedModelGenerate(t *testing.T) {
	fake := &fakeModel{response: schema.AssistantMessage("ok", nil)}
	proxy := NewRateLimitedLLMModel(fake, 6000)

	resp, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, fake.calls)
}

func TestRateLimitedModelNoRetryByDefault(t *testing.T) {
	// 错误本身可重试，但重试未显式启用，底层模型只应被调用一次
	fake := &fakeModel{failTimes: 1, response: schema.AssistantMessage("ok", nil)}
	proxy := NewRateLimitedLLMModel(fake, 6000)

	_, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestRateLimitedModelRetryOptIn(t *testing.T) {
	fake := &fakeModel{failTimes: 2, response: schema.AssistantMessage("ok", nil)}
	proxy := NewRateLimitedLLMModel(fake, 6000).WithRetryPolicy(time.Millisecond, 3)

	resp, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, fake.calls)
}

func TestRateLimitedModelWithToolsKeepsLimiter(t *testing.T) {
	fake := &fakeModel{response: schema.AssistantMessage("ok", nil)}
	proxy := NewRateLimitedLLMModel(fake, 6000).WithRetryPolicy(time.Millisecond, 3)

	wrapped, err := proxy.WithTools(nil)
	require.NoError(t, err)

	again, ok := wrapped.(*RateLimitedLLMModel)
	require.True(t, ok)
	assert.Same(t, proxy.rateLimiter, again.rateLimiter)
	assert.True(t, again.retryEnabled)
}

func TestNewLLMWithRateLimitResolvesQPM(t *testing.T) {
	fake := &fakeModel{}

	// 配置命中时取限额的90%
	m := NewLLMWithRateLimit(fake, "gemini-2.5-flash", map[string]int{"gemini-2.5-flash": 1000}, 0)
	rl, ok := m.(*RateLimitedLLMModel)
	require.True(t, ok)
	assert.InDelta(t, 900.0/60.0, rl.rateLimiter.rate, 1e-9)

	// 未命中配置时使用调用方给定的QPM
	m = NewLLMWithRateLimit(fake, "unknown-model", nil, 120)
	rl = m.(*RateLimitedLLMModel)
	assert.InDelta(t, 2.0, rl.rateLimiter.rate, 1e-9)

	// 两者都缺省时回落内置默认值
	m = NewLLMWithRateLimit(fake, "", nil, 0)
	rl = m.(*RateLimitedLLMModel)
	assert.InDelta(t, 0.5, rl.rateLimiter.rate, 1e-9)
}
