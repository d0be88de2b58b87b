package processor

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// ContextStore 按用户维护RAG上下文索引。
// 摄入整体重建该用户的索引并落盘，检索在驻留索引缺失时尝试从磁盘恢复。
// 注册表只保证内存安全，同一用户操作间的先后顺序由调用方串行化。
type ContextStore struct {
	chunker  TextSplitter
	embedder TextEmbedder
	newIndex storage.IndexFactory
	root     string
	logger   *log.Logger

	mu      sync.RWMutex
	indexes map[string]storage.VectorIndex
}

// NewContextStore 创建上下文存储，root为本地索引的持久化根目录
func NewContextStore(chunker TextSplitter, embedder TextEmbedder, newIndex storage.IndexFactory, root string, logger *log.Logger) (*ContextStore, error) {
	if chunker == nil {
		return nil, fmt.Errorf("chunker不能为空")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder不能为空")
	}
	if newIndex == nil {
		return nil, fmt.Errorf("索引工厂不能为空")
	}
	if root == "" {
		root = "./vector_stores"
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &ContextStore{
		chunker:  chunker,
		embedder: embedder,
		newIndex: newIndex,
		root:     root,
		logger:   logger,
		indexes:  make(map[string]storage.VectorIndex),
	}, nil
}

// Chunker 返回摄入使用的分块器，反馈写入必须用同一个分块器
func (s *ContextStore) Chunker() TextSplitter {
	return s.chunker
}

// Ingest 摄入用户的简历与职位描述。简历始终摄入，职位描述去空白后
// 超过阈值长度才摄入。每次摄入都整体重建该用户的索引并持久化，
// 从不与旧内容合并。所有错误以软失败结果返回。
func (s *ContextStore) Ingest(ctx context.Context, userID, resumeText, jobText string) *types.IngestResult {
	ctx, span := tracer.Start(ctx, "ContextStore.Ingest")
	defer span.End()

	span.SetAttributes(
		attribute.String("rag.user_id", tracing.MaskPII(userID)),
		attribute.String("rag.resume_preview", tracing.SafeAttributeValue("rag.resume_preview", resumeText, tracing.MaxResumeLength)),
		attribute.Int("rag.job_text_length", len(jobText)),
	)

	if strings.TrimSpace(userID) == "" {
		return &types.IngestResult{Success: false, Error: "用户ID为空"}
	}
	if strings.TrimSpace(resumeText) == "" {
		return &types.IngestResult{Success: false, Error: "简历文本为空"}
	}

	documents := []types.ContextChunk{
		{
			Text:   resumeText,
			Source: constants.ChunkSourceResume,
			UserID: userID,
			Type:   constants.ChunkTypeResume,
		},
	}

	hasJob := len(strings.TrimSpace(jobText)) > constants.MinMeaningfulTextLength
	if hasJob {
		documents = append(documents, types.ContextChunk{
			Text:   jobText,
			Source: constants.ChunkSourceJobDescription,
			UserID: userID,
			Type:   constants.ChunkTypeJD,
		})
	}

	chunks := s.chunker.SplitDocuments(documents)
	if len(chunks) == 0 {
		return s.ingestFailure("分块结果为空")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return s.ingestFailure(fmt.Sprintf("向量化失败: %v", err))
	}
	if len(vectors) != len(chunks) {
		return s.ingestFailure(fmt.Sprintf("向量数量(%d)与分块数量(%d)不匹配", len(vectors), len(chunks)))
	}

	index, err := s.newIndex(userID)
	if err != nil {
		return s.ingestFailure(fmt.Sprintf("创建索引失败: %v", err))
	}
	if err := index.Build(ctx, chunks, vectors); err != nil {
		return s.ingestFailure(fmt.Sprintf("构建索引失败: %v", err))
	}

	path := storage.UserIndexPath(s.root, userID)
	if err := index.Save(path); err != nil {
		return s.ingestFailure(fmt.Sprintf("持久化索引失败: %v", err))
	}

	// 整体替换该用户的驻留索引
	s.mu.Lock()
	s.indexes[userID] = index
	s.mu.Unlock()

	message := "Resume ingested successfully! Add a job description for better tailoring."
	if hasJob {
		message = "Resume ingested successfully! Job description also added."
	}

	span.SetAttributes(
		attribute.Int("rag.chunks_created", len(chunks)),
		attribute.Bool("rag.has_job_description", hasJob),
	)
	s.logger.Printf("[ContextStore] 用户 %s 摄入完成，%d 个分块，含职位描述=%v", userID, len(chunks), hasJob)
	return &types.IngestResult{
		Success:           true,
		ChunksCreated:     len(chunks),
		HasJobDescription: hasJob,
		VectorStorePath:   path,
		Message:           message,
	}
}

func (s *ContextStore) ingestFailure(errMsg string) *types.IngestResult {
	return &types.IngestResult{
		Success: false,
		Error:   errMsg,
		Message: "Failed to ingest documents",
	}
}

// Retrieve 为查询返回最多k个最相关分块。用户既没有驻留索引也没有
// 可加载的持久化索引时返回storage.ErrIndexNotFound，与空命中列表区分。
func (s *ContextStore) Retrieve(ctx context.Context, userID, query string, k int) ([]types.ChunkHit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("用户ID为空")
	}
	if k <= 0 {
		k = constants.DefaultRetrievalK
	}

	index, err := s.loadIndex(userID)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("查询向量化返回空结果")
	}

	return index.Search(ctx, vectors[0], k)
}

// AddFeedbackChunks 将反馈分块追加到用户的驻留索引。
// 只写驻留索引，不做磁盘回退也不持久化：重新摄入即重开会话。
func (s *ContextStore) AddFeedbackChunks(ctx context.Context, userID string, chunks []types.ContextChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.RLock()
	index, ok := s.indexes[userID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("用户 %s 没有驻留索引: %w", userID, storage.ErrIndexNotFound)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("反馈向量化失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("向量数量(%d)与分块数量(%d)不匹配", len(vectors), len(chunks))
	}

	if err := index.Add(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("追加反馈分块失败: %w", err)
	}

	s.logger.Printf("[ContextStore] 用户 %s 追加 %d 个反馈分块", userID, len(chunks))
	return len(chunks), nil
}

// loadIndex 返回用户的驻留索引，未驻留时尝试从磁盘恢复。
// 自有根目录下按用户派生的路径视为可信来源。
func (s *ContextStore) loadIndex(userID string) (storage.VectorIndex, error) {
	s.mu.RLock()
	index, ok := s.indexes[userID]
	s.mu.RUnlock()
	if ok {
		return index, nil
	}

	index, err := s.newIndex(userID)
	if err != nil {
		return nil, fmt.Errorf("创建索引失败: %w", err)
	}
	if err := index.Load(storage.UserIndexPath(s.root, userID), true); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 并发加载时保留先注册的索引实例
	if existing, ok := s.indexes[userID]; ok {
		return existing, nil
	}
	s.indexes[userID] = index
	s.logger.Printf("[ContextStore] 用户 %s 的索引已从磁盘恢复", userID)
	return index, nil
}
