package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"resume-agent-go/internal/constants"
)

// RedisChatMemory 基于 Redis List 的 ChatMemory 实现。消息按 JSON 序列化
// 后 RPUSH，读取时 LRANGE 全量取回。会话历史是临时状态，到期自动清除。
type RedisChatMemory struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisChatMemory 创建 Redis 会话存储。ttl 为 0 时历史不过期。
// redisClient 由调用方负责连接与探活。
func NewRedisChatMemory(redisClient *redis.Client, ttl time.Duration) (*RedisChatMemory, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis 客户端不能为空")
	}
	return &RedisChatMemory{
		redisClient: redisClient,
		ttl:         ttl,
	}, nil
}

// GetHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	key := constants.ChatSessionKey(sessionID)
	ctx := context.Background()

	serialized, err := rcm.redisClient.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话 %s 的历史失败: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serialized))
	for _, raw := range serialized {
		var msg schema.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("反序列化会话 %s 的消息失败: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessage 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	return rcm.AddMessages(sessionID, []*schema.Message{message})
}

// AddMessages 实现 ChatMemory 接口。追加与续期放在同一事务管道中执行。
func (rcm *RedisChatMemory) AddMessages(sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := constants.ChatSessionKey(sessionID)
	ctx := context.Background()

	// 先整体序列化再进管道，任何一条失败都不写入
	serialized := make([]interface{}, 0, len(messages))
	for _, message := range messages {
		if message == nil {
			return fmt.Errorf("会话 %s 的批量消息中包含空消息", sessionID)
		}
		raw, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("序列化会话 %s 的消息失败: %w", sessionID, err)
		}
		serialized = append(serialized, raw)
	}

	pipe := rcm.redisClient.TxPipeline()
	pipe.RPush(ctx, key, serialized...)
	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("追加会话 %s 的消息失败: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) ClearHistory(sessionID string) error {
	key := constants.ChatSessionKey(sessionID)
	ctx := context.Background()

	if err := rcm.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("清除会话 %s 的历史失败: %w", sessionID, err)
	}
	return nil
}

var _ ChatMemory = (*RedisChatMemory)(nil)
