package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"resume-agent-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖。
// 各组件按配置初始化，未配置或初始化失败的组件为nil，
// 调用方在使用前需判空（/health据此上报降级状态）。
type Storage struct {
	// 对象存储（渲染产物与快照）
	MinIO *MinIO

	// 消息队列（异步裁剪任务）
	RabbitMQ *RabbitMQ

	// 键值存储（任务状态、去重、用户锁、会话）
	Redis *Redis

	// NewIndex 按配置选择的向量索引工厂，始终可用
	NewIndex IndexFactory
}

// NewStorage 创建存储管理器。远端组件初始化失败不阻塞启动，
// 只有全部已配置组件都失败时才返回错误。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string
	attempted := 0

	// 向量索引工厂，local后端无外部依赖
	storage.NewIndex, err = NewIndexFactory(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("创建向量索引工厂失败: %w", err)
	}

	// 根据配置决定 MinIO 的 logger
	var minioLogger *log.Logger
	if cfg.Logger.Level == "debug" || cfg.MinIO.EnableTestLogging {
		minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags|log.Lshortfile)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	// 初始化MinIO（如果配置了）
	if cfg.MinIO.Endpoint != "" {
		attempted++
		storage.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
		if err != nil {
			log.Printf("警告: 初始化MinIO失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		} else {
			log.Println("MinIO客户端初始化成功")
		}
	}

	// 初始化RabbitMQ（如果配置了）
	if cfg.RabbitMQ.URL != "" {
		attempted++
		log.Printf("初始化RabbitMQ...")
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("警告: 初始化RabbitMQ失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	// 初始化Redis（如果配置了）
	if cfg.Redis.Address != "" {
		attempted++
		log.Printf("初始化Redis at %s...", cfg.Redis.Address)
		storage.Redis, err = NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Printf("Redis未配置, 跳过初始化.")
	}

	// 全部已配置组件都失败才算启动失败，部分失败以降级状态继续
	if attempted > 0 && len(initErrors) == attempted {
		return nil, fmt.Errorf("所有已配置的存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		log.Printf("警告: 以下存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	return storage, nil
}

// ComponentStatus 返回各远端组件的可用状态，用于健康检查上报
func (s *Storage) ComponentStatus() map[string]bool {
	return map[string]bool{
		"minio":    s.MinIO != nil,
		"rabbitmq": s.RabbitMQ != nil,
		"redis":    s.Redis != nil,
	}
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	// MinIO客户端无需显式关闭
}
