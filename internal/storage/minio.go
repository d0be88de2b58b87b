package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"resume-agent-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadDocument 上传渲染文档，返回含桶前缀的对象键
	UploadDocument(ctx context.Context, objectName string, data []byte, contentType string) (string, error)

	// UploadSnapshot 上传分析快照JSON，返回含桶前缀的对象键
	UploadSnapshot(ctx context.Context, objectName string, data []byte) (string, error)

	// DownloadFile 按"桶/对象键"格式的键下载对象
	DownloadFile(ctx context.Context, objectKey string) ([]byte, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供渲染产物与分析快照的对象存储
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	documentsBucket string
	snapshotsBucket string
	logger          *log.Logger
}

// NewMinIO 创建MinIO客户端并确保产物存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	documentsBucket := cfg.DocumentsBucket
	if documentsBucket == "" {
		documentsBucket = "tailored-documents" // 默认值
	}
	snapshotsBucket := cfg.SnapshotsBucket
	if snapshotsBucket == "" {
		snapshotsBucket = "analysis-snapshots" // 默认值
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		documentsBucket: documentsBucket,
		snapshotsBucket: snapshotsBucket,
		logger:          logger,
	}

	if err := m.ensureBucketExists(documentsBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure documents bucket %s exists: %v", documentsBucket, err)
		return nil, fmt.Errorf("确保文档存储桶 %s 存在失败: %w", documentsBucket, err)
	}
	if err := m.ensureBucketExists(snapshotsBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure snapshots bucket %s exists: %v", snapshotsBucket, err)
		return nil, fmt.Errorf("确保快照存储桶 %s 存在失败: %w", snapshotsBucket, err)
	}

	// 按配置设置对象过期规则
	if cfg.DocumentExpireDays > 0 || cfg.SnapshotExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created successfully.", bucketName)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.DocumentExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.documentsBucket, "expire-documents", m.cfg.DocumentExpireDays); err != nil {
			return fmt.Errorf("为文档存储桶 %s 设置生命周期失败: %w", m.documentsBucket, err)
		}
	}
	if m.cfg.SnapshotExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.snapshotsBucket, "expire-snapshots", m.cfg.SnapshotExpireDays); err != nil {
			return fmt.Errorf("为快照存储桶 %s 设置生命周期失败: %w", m.snapshotsBucket, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lifecycleCfg := lifecycle.NewConfiguration()
	lifecycleCfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}

	if err := m.client.SetBucketLifecycle(ctx, bucketName, lifecycleCfg); err != nil {
		return err
	}
	m.logger.Printf("[MinIO] Successfully set lifecycle for bucket %s (expire after %d days).", bucketName, expiryDays)
	return nil
}

// UploadDocument 上传渲染文档到文档存储桶，返回"桶/对象键"格式的键
func (m *MinIO) UploadDocument(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeForName(objectName)
	}

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-UploadDocument] Uploading: ObjectName='%s', Size=%d, ContentType='%s', Bucket='%s'",
			objectName, len(data), contentType, m.documentsBucket)
	}

	info, err := m.client.PutObject(ctx, m.documentsBucket, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传文档 %s 到存储桶 %s 失败: %w", objectName, m.documentsBucket, err)
	}

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-UploadDocument] Successfully uploaded %s, ETag: %s, Size: %d", objectName, info.ETag, info.Size)
	}
	return fmt.Sprintf("%s/%s", m.documentsBucket, objectName), nil
}

// UploadSnapshot 上传分析快照到快照存储桶，返回"桶/对象键"格式的键
func (m *MinIO) UploadSnapshot(ctx context.Context, objectName string, data []byte) (string, error) {
	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-UploadSnapshot] Uploading: ObjectName='%s', Size=%d, Bucket='%s'",
			objectName, len(data), m.snapshotsBucket)
	}

	_, err := m.client.PutObject(ctx, m.snapshotsBucket, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("上传快照 %s 到存储桶 %s 失败: %w", objectName, m.snapshotsBucket, err)
	}
	return fmt.Sprintf("%s/%s", m.snapshotsBucket, objectName), nil
}

// DownloadFile 下载对象。objectKey为"桶/对象键"格式时按键中的桶解析，
// 否则默认文档存储桶。对象不存在时返回包装了ErrNotFound的错误。
func (m *MinIO) DownloadFile(ctx context.Context, objectKey string) ([]byte, error) {
	bucketName, actualObjectName := m.splitObjectKey(objectKey)

	obj, err := m.client.GetObject(ctx, bucketName, actualObjectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, actualObjectName, err)
	}
	defer obj.Close()

	// GetObject是懒加载的，Stat确认对象确实存在
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("对象 %s/%s 不存在: %w", bucketName, actualObjectName, ErrNotFound)
		}
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucketName, actualObjectName, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucketName, actualObjectName, err)
	}
	return data, nil
}

// splitObjectKey 从"桶/对象键"格式的键中解析桶名。
// 只有前缀是已配置的桶才按桶解析，避免把路径层级误当桶名。
func (m *MinIO) splitObjectKey(objectKey string) (string, string) {
	if strings.Contains(objectKey, "/") {
		parts := strings.SplitN(objectKey, "/", 2)
		if len(parts) == 2 && (parts[0] == m.documentsBucket || parts[0] == m.snapshotsBucket) {
			return parts[0], parts[1]
		}
	}
	return m.documentsBucket, objectKey
}

// ContentTypeForName 按文件名扩展推断内容类型
func ContentTypeForName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tex"):
		return "application/x-tex"
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	case strings.HasSuffix(lower, ".md"):
		return "text/markdown"
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return "text/html"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
