package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("resume-agent-go/storage/redis")

// Redis操作按键前缀的span采样率，高频读操作降采样
var redisKeySamplingRates = map[string]float64{
	"app:tailor:": 0.25, // 任务状态与去重
	"app:rag:":    0.5,  // 用户锁
	"app:chat:":   0.05, // 会话历史
}

// 随机数生成器
var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
}

// shouldSampleRedisOp 根据key前缀决定是否创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	// 默认采样率5%
	return randFloat() < 0.05
}

// 生成0-1之间的随机数
func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis 封装go-redis客户端。Client导出供聊天记忆等
// 直接操作原生命令的组件复用同一连接池。
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedis 创建Redis客户端连接
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回去重MD5记录的过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365 // 默认1年
	}
	return time.Duration(days) * 24 * time.Hour
}

// SetTailorTaskStatus 写入任务状态记录，JSON编码并刷新TTL
func (r *Redis) SetTailorTaskStatus(ctx context.Context, status *TailorTaskStatus, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if status == nil || status.TaskUUID == "" {
		return fmt.Errorf("任务状态记录缺少task_uuid")
	}

	key := constants.TailorTaskStatusKey(status.TaskUUID)

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.SetTailorTaskStatus", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", key),
			attribute.String("task.status", status.Status),
		)
	}

	data, err := json.Marshal(status)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("序列化任务状态失败: %w", err)
	}

	if err := r.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("写入任务状态失败: %w", err)
	}

	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
	return nil
}

// GetTailorTaskStatus 读取任务状态记录，不存在时返回包装了ErrNotFound的错误
func (r *Redis) GetTailorTaskStatus(ctx context.Context, taskUUID string) (*TailorTaskStatus, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis客户端未初始化")
	}

	key := constants.TailorTaskStatusKey(taskUUID)

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.GetTailorTaskStatus", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", key),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if span != nil {
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
				span.SetStatus(codes.Ok, "key not found")
			}
			return nil, fmt.Errorf("任务 %s 不存在: %w", taskUUID, ErrNotFound)
		}
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("读取任务状态失败: %w", err)
	}

	var status TailorTaskStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("解析任务状态失败: %w", err)
	}

	if span != nil {
		span.SetAttributes(attribute.String("task.status", status.Status))
		span.SetStatus(codes.Ok, "")
	}
	return &status, nil
}

// CheckAndSetTaskMD5 检查任务输入MD5是否已提交过，未出现过则原子登记到taskUUID。
// 返回(是否重复, 已有任务UUID)。重复提交拿到首次提交的任务，实现幂等。
func (r *Redis) CheckAndSetTaskMD5(ctx context.Context, md5Hex string, taskUUID string) (bool, string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetTaskMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.redis.key", constants.KeyTailorDedupSet),
		attribute.String("db.redis.member", md5Hex),
	)

	if r.Client == nil {
		err := fmt.Errorf("redis客户端未初始化")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", err
	}

	mapKey := constants.TailorInputMD5Key(md5Hex)

	// 先查是否已登记
	exists, err := r.Client.SIsMember(ctx, constants.KeyTailorDedupSet, md5Hex).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("检查MD5是否存在失败: %w", err)
	}
	if exists {
		existingUUID, err := r.Client.Get(ctx, mapKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return true, "", fmt.Errorf("获取已登记任务UUID失败: %w", err)
		}
		span.SetAttributes(attribute.Bool("already_exists", true))
		span.SetStatus(codes.Ok, "")
		return true, existingUUID, nil
	}

	// 未登记，原子地加入集合并写映射
	expiry := r.GetMD5ExpireDuration()
	pipe := r.Client.Pipeline()
	addCmd := pipe.SAdd(ctx, constants.KeyTailorDedupSet, md5Hex)
	setNXCmd := pipe.SetNX(ctx, mapKey, taskUUID, expiry)
	pipe.ExpireNX(ctx, constants.KeyTailorDedupSet, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "", fmt.Errorf("登记MD5失败: %w", err)
	}

	if addCmd.Val() > 0 && setNXCmd.Val() {
		span.SetAttributes(attribute.Bool("already_exists", false))
		span.SetStatus(codes.Ok, "")
		return false, "", nil
	}

	// 极小的并发窗口中被其他进程抢先登记，重新读取归属
	existingUUID, err := r.Client.Get(ctx, mapKey).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, "", fmt.Errorf("获取已登记任务UUID失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("already_exists", true))
	span.SetStatus(codes.Ok, "")
	return true, existingUUID, nil
}

// AcquireLock 尝试获取分布式锁，成功返回持有者标识，未获取到返回空串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	// 随机值作为锁的持有者标识
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseLock 释放分布式锁，Lua脚本保证只有持有者能释放
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	return false, nil
}

// AcquireUserLock 获取单用户RAG写操作锁，同一用户的摄入与反馈串行执行
func (r *Redis) AcquireUserLock(ctx context.Context, userID string) (string, error) {
	return r.AcquireLock(ctx, constants.RAGUserLockKey(userID), constants.UserLockTTL)
}

// ReleaseUserLock 释放单用户RAG写操作锁
func (r *Redis) ReleaseUserLock(ctx context.Context, userID string, lockValue string) (bool, error) {
	return r.ReleaseLock(ctx, constants.RAGUserLockKey(userID), lockValue)
}
