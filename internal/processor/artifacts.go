package processor

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/storage"
)

// ArtifactStore 渲染产物与分析快照的存储接口。
// Put返回的键原样交给Get即可取回，键的内部结构由各后端自行定义。
type ArtifactStore interface {
	// Put 写入产物，返回可用于取回的存储键
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)

	// Get 按存储键取回产物，不存在时返回包装了storage.ErrNotFound的错误
	Get(ctx context.Context, key string) ([]byte, error)
}

// 确保两个后端都实现了ArtifactStore接口
var (
	_ ArtifactStore = (*LocalArtifactStore)(nil)
	_ ArtifactStore = (*MinIOArtifactStore)(nil)
)

// LocalArtifactStore 本地文件系统产物存储，键为文件路径
type LocalArtifactStore struct {
	outputDir string
	logger    *log.Logger
}

// NewLocalArtifactStore 创建本地产物存储，输出目录不存在时创建
func NewLocalArtifactStore(outputDir string, logger *log.Logger) (*LocalArtifactStore, error) {
	if outputDir == "" {
		outputDir = "./output"
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建产物输出目录失败: %w", err)
	}
	return &LocalArtifactStore{outputDir: outputDir, logger: logger}, nil
}

// Put 将产物写入输出目录。产物名可以带子目录，但不允许逃逸出输出目录
func (s *LocalArtifactStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	cleaned := filepath.Clean(name)
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("非法的产物名: %s", name)
	}

	target := filepath.Join(s.outputDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("创建产物目录失败: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("写入产物 %s 失败: %w", target, err)
	}

	s.logger.Printf("产物已写入: %s (%d 字节)", target, len(data))
	return target, nil
}

// Get 按文件路径读取产物
func (s *LocalArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("产物 %s 不存在: %w", key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("读取产物 %s 失败: %w", key, err)
	}
	return data, nil
}

// MinIOArtifactStore 对象存储后端的产物存储，快照与文档分桶存放
type MinIOArtifactStore struct {
	store storage.ObjectStorage
}

// NewMinIOArtifactStore 创建对象存储后端的产物存储
func NewMinIOArtifactStore(store storage.ObjectStorage) (*MinIOArtifactStore, error) {
	if store == nil {
		return nil, fmt.Errorf("minio存储未初始化")
	}
	return &MinIOArtifactStore{store: store}, nil
}

// Put 按产物名后缀路由到对应存储桶：分析快照进快照桶，其余进文档桶
func (s *MinIOArtifactStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if strings.HasSuffix(name, constants.SnapshotSuffix) {
		return s.store.UploadSnapshot(ctx, name, data)
	}
	return s.store.UploadDocument(ctx, name, data, contentType)
}

// Get 按复合键(桶/对象名)下载产物
func (s *MinIOArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.DownloadFile(ctx, key)
}

// NewArtifactStoreFromConfig 根据配置选择产物存储后端，backend为空时默认local
func NewArtifactStoreFromConfig(cfg *config.ArtifactsConfig, minioStore *storage.MinIO, logger *log.Logger) (ArtifactStore, error) {
	backend := "local"
	outputDir := ""
	if cfg != nil {
		if cfg.Backend != "" {
			backend = cfg.Backend
		}
		outputDir = cfg.OutputDir
	}

	switch backend {
	case "local":
		return NewLocalArtifactStore(outputDir, logger)
	case "minio":
		// 先判空再包装，nil具体类型装入接口后不再等于nil
		if minioStore == nil {
			return nil, fmt.Errorf("minio存储未初始化")
		}
		return NewMinIOArtifactStore(minioStore)
	default:
		return nil, fmt.Errorf("未知的产物存储后端: %s", backend)
	}
}

// SnapshotName 由渲染产物名派生分析快照名，扩展名替换为快照后缀
func SnapshotName(outputName string) string {
	ext := filepath.Ext(outputName)
	return strings.TrimSuffix(outputName, ext) + constants.SnapshotSuffix
}
