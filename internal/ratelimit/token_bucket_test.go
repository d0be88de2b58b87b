package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	// 容量2，初始满桶，连续两次放行后第三次应被拒绝
	tb := NewTokenBucket(60, 2)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "令牌耗尽后应拒绝")
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	// 极低速率，耗尽令牌后Wait必须尊重上下文取消
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("invalid request payload")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "不可重试错误不应触发重试")
}

func TestRetryWithBackoffRetriesRetryable(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("rpc error: RESOURCE_EXHAUSTED")))
	assert.True(t, isRetryableError(errors.New("context deadline exceeded")))
	assert.False(t, isRetryableError(errors.New("schema mismatch")))
	assert.False(t, isRetryableError(nil))
}
