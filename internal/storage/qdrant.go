package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("resume-agent-go/storage/qdrant")

// QdrantPointIDNamespace 生成确定性Qdrant点ID的专用命名空间。
// 同一用户的同一分块总是得到相同的点ID，重复写入幂等。
// UUID经 `uuidgen` 生成
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("8e41b9d3-2c75-4f1a-b6e8-53a9d0c47f12"))

// 确保QdrantIndex实现了VectorIndex接口
var _ VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex 基于Qdrant REST API的单用户向量索引。
// 每个用户对应一个独立集合，持久化在服务端完成，
// Save为空操作，Load只探测集合是否存在。
type QdrantIndex struct {
	endpoint       string
	apiKey         string
	userID         string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// qdrantAPIError 携带状态码的Qdrant API错误，便于按404分支
type qdrantAPIError struct {
	StatusCode int
	Body       string
}

func (e *qdrantAPIError) Error() string {
	return fmt.Sprintf("qdrant API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// QdrantIndexOption 定义QdrantIndex构造函数选项
type QdrantIndexOption func(*QdrantIndex)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantIndexOption {
	return func(q *QdrantIndex) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantIndexOption {
	return func(q *QdrantIndex) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// UserCollectionName 按用户派生Qdrant集合名
func UserCollectionName(prefix, userID string) string {
	if prefix == "" {
		prefix = "tailor"
	}
	return fmt.Sprintf("%s_user_%s", prefix, userID)
}

// NewQdrantIndex 创建指定用户的Qdrant索引客户端。
// 集合不在此处创建：Build与Add按需创建，Retrieve路径上
// 集合缺失要映射为ErrIndexNotFound而不是凭空建出空集合。
func NewQdrantIndex(cfg *config.QdrantConfig, userID string, opts ...QdrantIndexOption) (*QdrantIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}
	if userID == "" {
		return nil, fmt.Errorf("用户ID不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333" // 默认端点
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 768 // 默认向量维度，与Gemini text-embedding-004一致
	}

	q := &QdrantIndex{
		endpoint:       endpoint,
		apiKey:         cfg.APIKey,
		userID:         userID,
		collectionName: UserCollectionName(cfg.CollectionPrefix, userID),
		vectorSize:     vectorSize,
		distanceMetric: "Cosine", // 使用余弦相似度
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}

	// 应用选项
	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// CollectionName 返回该索引使用的集合名
func (q *QdrantIndex) CollectionName() string {
	return q.collectionName
}

// Build 整体重建用户集合：删除旧集合后重建并写入全部点。
// 重新摄入从不与旧内容合并。
func (q *QdrantIndex) Build(ctx context.Context, chunks []types.ContextChunk, vectors [][]float64) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Build",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "rebuild_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("vectors.count", len(vectors)),
	)

	if len(chunks) != len(vectors) {
		err := fmt.Errorf("chunks数量(%d)与vectors数量(%d)不匹配", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	if err := q.deleteCollection(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("删除旧集合失败: %w", err)
	}
	if err := q.createCollection(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合失败: %w", err)
	}

	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "empty rebuild")
		return nil
	}

	if err := q.upsertPoints(ctx, chunks, vectors, 0); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Add 增量追加分块，集合不存在时先创建。
// 点序号以现有点数为基准，避免与已写入的点ID冲突。
func (q *QdrantIndex) Add(ctx context.Context, chunks []types.ContextChunk, vectors [][]float64) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Add",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "append_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("vectors.count", len(vectors)),
	)

	if len(chunks) != len(vectors) {
		err := fmt.Errorf("chunks数量(%d)与vectors数量(%d)不匹配", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}
	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "no points to append")
		return nil
	}

	if err := q.ensureCollection(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("确保集合存在失败: %w", err)
	}

	base, err := q.Count(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("获取现有点数失败: %w", err)
	}

	if err := q.upsertPoints(ctx, chunks, vectors, base); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetAttributes(attribute.Int("points.base_ordinal", base))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Search 在用户集合中检索最相似的k个分块，
// 集合不存在时返回包装了ErrIndexNotFound的错误
func (q *QdrantIndex) Search(ctx context.Context, vector []float64, k int) ([]types.ChunkHit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Search",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_vectors"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", k),
		attribute.Int("query_vector.size", len(vector)),
	)

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if k <= 0 {
		k = 10 // 默认限制为10
	}

	searchReq := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), searchReq, &result)
	if err != nil {
		if isCollectionMissing(err) {
			span.AddEvent("collection_not_found")
			span.SetStatus(codes.Ok, "collection not found")
			return nil, fmt.Errorf("集合 %s 不存在: %w", q.collectionName, ErrIndexNotFound)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	hits := make([]types.ChunkHit, 0, len(result.Result))
	for _, point := range result.Result {
		hits = append(hits, types.ChunkHit{
			Chunk: chunkFromPayload(point.Payload),
			Score: point.Score,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(hits)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)

	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// Count 返回用户集合中的点数量，集合不存在时映射为ErrIndexNotFound
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Count",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "count_points"),
		attribute.String("db.collection", q.collectionName),
	)

	countReq := map[string]interface{}{
		"exact": true, // 精确计数
	}

	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collectionName), countReq, &result)
	if err != nil {
		if isCollectionMissing(err) {
			span.SetStatus(codes.Ok, "collection not found")
			return 0, fmt.Errorf("集合 %s 不存在: %w", q.collectionName, ErrIndexNotFound)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, err
	}

	span.SetAttributes(attribute.Int("points.count", result.Result.Count))
	span.SetStatus(codes.Ok, "")
	return result.Result.Count, nil
}

// Save 空操作，Qdrant在服务端持久化
func (q *QdrantIndex) Save(_ string) error {
	return nil
}

// Load 探测用户集合是否存在，不存在时返回包装了ErrIndexNotFound的错误。
// path参数仅本地后端使用，此处忽略。
func (q *QdrantIndex) Load(_ string, _ bool) error {
	ctx, span := qdrantTracer.Start(context.Background(), "QdrantIndex.Load",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
	)

	err := q.doRequest(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collectionName), nil, nil)
	if err != nil {
		if isCollectionMissing(err) {
			span.SetStatus(codes.Ok, "collection not found")
			return fmt.Errorf("集合 %s 不存在: %w", q.collectionName, ErrIndexNotFound)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ensureCollection 确保用户集合存在，不存在时创建
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.EnsureCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	err := q.doRequest(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collectionName), nil, &collectionInfo)
	if err != nil {
		if isCollectionMissing(err) {
			span.AddEvent("collection_not_found", trace.WithAttributes(
				attribute.String("action", "create_collection"),
			))
			return q.createCollection(ctx)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		log.Printf("警告: 集合 %s 配置与当前配置不匹配。现有: 维度=%d, 距离=%s; 当前: 维度=%d, 距离=%s",
			q.collectionName, existingSize, existingDistance, q.vectorSize, q.distanceMetric)
		span.AddEvent("collection_config_mismatch", trace.WithAttributes(
			attribute.Int("expected_vector_size", q.vectorSize),
			attribute.String("expected_distance", q.distanceMetric),
		))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建用户向量集合
func (q *QdrantIndex) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReq := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}

	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collectionName), createReq, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	log.Printf("已创建Qdrant集合: %s，维度: %d", q.collectionName, q.vectorSize)
	return nil
}

// deleteCollection 删除用户集合，集合不存在视为成功
func (q *QdrantIndex) deleteCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.DeleteCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete_collection"),
		attribute.String("db.collection", q.collectionName),
	)

	err := q.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", q.collectionName), nil, nil)
	if err != nil && !isCollectionMissing(err) {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// upsertPoints 将分块与向量写入集合，点序号从base开始
func (q *QdrantIndex) upsertPoints(ctx context.Context, chunks []types.ContextChunk, vectors [][]float64, base int) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.UpsertPoints",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("points.count", len(chunks)),
	)

	points := make([]interface{}, 0, len(chunks))
	for i, vec := range vectors {
		if len(vec) != q.vectorSize {
			err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(vec), q.vectorSize)
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return err
		}

		chunk := chunks[i]
		// 基于(user_id, source, 点序号)生成确定性点ID保证幂等
		idSource := fmt.Sprintf("user_id:%s_source:%s_chunk:%d", q.userID, chunk.Source, base+i)
		pointID := uuid.NewV5(QdrantPointIDNamespace, idSource).String()

		payload := map[string]interface{}{
			"text":    chunk.Text,
			"source":  chunk.Source,
			"type":    chunk.Type,
			"user_id": chunk.UserID,
		}
		if chunk.Rating > 0 {
			payload["rating"] = chunk.Rating
		}

		points = append(points, map[string]interface{}{
			"id":      pointID,
			"vector":  vec,
			"payload": payload,
		})
	}

	upsertReq := map[string]interface{}{
		"points": points,
	}

	var result struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName), upsertReq, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("写入向量点失败: %w", err)
	}

	span.SetAttributes(
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// doRequest 发送Qdrant REST请求并解析JSON响应
func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}

		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	// 注入trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	span.SetAttributes(attribute.Int("http.response.body.size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &qdrantAPIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		tracing.RecordHTTPError(span, apiErr, resp.StatusCode)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// isCollectionMissing 判断错误是否为集合不存在的404响应
func isCollectionMissing(err error) bool {
	var apiErr *qdrantAPIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// chunkFromPayload 从Qdrant点载荷还原分块
func chunkFromPayload(payload map[string]interface{}) types.ContextChunk {
	chunk := types.ContextChunk{}
	if v, ok := payload["text"].(string); ok {
		chunk.Text = v
	}
	if v, ok := payload["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := payload["type"].(string); ok {
		chunk.Type = v
	}
	if v, ok := payload["user_id"].(string); ok {
		chunk.UserID = v
	}
	if v, ok := payload["rating"].(float64); ok {
		chunk.Rating = int(v)
	}
	return chunk
}
