package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/types"
)

// 存储层通用错误，调用方通过errors.Is分支
var (
	// ErrIndexNotFound 用户既没有驻留索引也没有可加载的持久化索引
	ErrIndexNotFound = errors.New("vector index not found")
	// ErrNotFound 请求的对象不存在
	ErrNotFound = errors.New("object not found")
)

// IsNotFoundErr 判断错误是否为对象不存在
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// VectorIndex 单用户向量索引。一个实例只服务一个用户，
// 用户到实例的归属关系由上层的驻留注册表维护。
type VectorIndex interface {
	// Build 用给定分块与向量整体重建索引，丢弃已有内容
	Build(ctx context.Context, chunks []types.ContextChunk, vectors [][]float64) error

	// Add 增量追加分块与向量
	Add(ctx context.Context, chunks []types.ContextChunk, vectors [][]float64) error

	// Search 返回与查询向量最相似的k个分块，按得分降序
	Search(ctx context.Context, vector []float64, k int) ([]types.ChunkHit, error)

	// Count 返回索引中的分块数量
	Count(ctx context.Context) (int, error)

	// Save 将索引持久化到path。持久化在服务端的后端实现为空操作
	Save(path string) error

	// Load 从path恢复索引。trusted为false时拒绝反序列化，
	// 索引不存在时返回包装了ErrIndexNotFound的错误
	Load(path string, trusted bool) error
}

// UserIndexPath 返回用户本地索引的持久化路径
func UserIndexPath(root, userID string) string {
	return filepath.Join(root, fmt.Sprintf("user_%s", userID), "index.json")
}

// IndexFactory 为指定用户创建向量索引实例
type IndexFactory func(userID string) (VectorIndex, error)

// NewIndexFactory 根据配置选择索引后端。
// backend为空时默认local，qdrant后端每个用户对应一个独立集合。
func NewIndexFactory(cfg *config.VectorConfig) (IndexFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("向量索引配置不能为空")
	}

	backend := cfg.Backend
	if backend == "" {
		backend = "local"
	}

	switch backend {
	case "local":
		return func(userID string) (VectorIndex, error) {
			if userID == "" {
				return nil, fmt.Errorf("用户ID不能为空")
			}
			return NewLocalVectorIndex(), nil
		}, nil
	case "qdrant":
		// 复制一份配置，避免工厂闭包共享调用方可能修改的指针
		qdrantCfg := cfg.Qdrant
		return func(userID string) (VectorIndex, error) {
			return NewQdrantIndex(&qdrantCfg, userID)
		}, nil
	default:
		return nil, fmt.Errorf("未知的向量索引后端: %s", backend)
	}
}
