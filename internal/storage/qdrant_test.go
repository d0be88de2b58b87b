package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upsertRequest Qdrant点写入请求体，测试中用于还原捕获的请求
type upsertRequest struct {
	Points []struct {
		ID      string                 `json:"id"`
		Vector  []float64              `json:"vector"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"points"`
}

// TestUserCollectionName 测试按用户派生集合名
func TestUserCollectionName(t *testing.T) {
	assert.Equal(t, "tailor_user_alice", storage.UserCollectionName("tailor", "alice"))
	assert.Equal(t, "tailor_user_bob", storage.UserCollectionName("", "bob"), "前缀为空时使用默认前缀")
	assert.Equal(t, "custom_user_alice", storage.UserCollectionName("custom", "alice"))
}

// TestQdrantIndex_New 测试客户端初始化与参数校验
func TestQdrantIndex_New(t *testing.T) {
	cfg := &config.QdrantConfig{
		Endpoint:         "http://localhost:6333",
		CollectionPrefix: "tailor",
		Dimension:        768,
	}

	idx, err := storage.NewQdrantIndex(cfg, "user-1",
		storage.WithDistanceMetric("Cosine"),
		storage.WithHTTPTimeout(5*time.Second))
	require.NoError(t, err, "应该成功创建Qdrant索引客户端")
	require.NotNil(t, idx)
	assert.Equal(t, "tailor_user_user-1", idx.CollectionName())

	_, err = storage.NewQdrantIndex(cfg, "")
	assert.Error(t, err, "用户ID为空时应报错")

	_, err = storage.NewQdrantIndex(nil, "user-1")
	assert.Error(t, err, "配置为空时应报错")
}

// TestQdrantIndex_BuildRecreatesCollection 测试Build先删除再重建集合并写入全部点
func TestQdrantIndex_BuildRecreatesCollection(t *testing.T) {
	var deleted, created bool
	var upsertBody []byte

	collectionPath := "/collections/tailor_user_user-1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == collectionPath && r.Method == http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": true, "status": "ok"}`))
		case r.URL.Path == collectionPath && r.Method == http.MethodPut:
			created = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": true, "status": "ok"}`))
		case r.URL.Path == collectionPath+"/points" && r.Method == http.MethodPut:
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			upsertBody = body
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"operation_id": 1, "status": "completed"}, "status": "ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:         server.URL,
		CollectionPrefix: "tailor",
		Dimension:        4,
	}
	idx, err := storage.NewQdrantIndex(cfg, "user-1")
	require.NoError(t, err)

	chunks := []types.ContextChunk{
		{Text: "Go服务端开发", Source: "resume", UserID: "user-1", Type: "resume"},
		{Text: "岗位要求熟悉Kubernetes", Source: "job_description", UserID: "user-1", Type: "jd"},
	}
	vectors := [][]float64{
		{0.1, 0.2, 0.3, 0.4},
		{0.4, 0.3, 0.2, 0.1},
	}

	require.NoError(t, idx.Build(context.Background(), chunks, vectors))
	assert.True(t, deleted, "应先删除旧集合")
	assert.True(t, created, "应重新创建集合")
	require.NotEmpty(t, upsertBody, "应写入向量点")

	var req upsertRequest
	require.NoError(t, json.Unmarshal(upsertBody, &req))
	require.Len(t, req.Points, 2)

	// 点ID基于(user_id, source, 序号)确定生成，重复Build结果幂等
	wantID := uuid.NewV5(storage.QdrantPointIDNamespace, "user_id:user-1_source:resume_chunk:0").String()
	assert.Equal(t, wantID, req.Points[0].ID)
	assert.Equal(t, "Go服务端开发", req.Points[0].Payload["text"])
	assert.Equal(t, "job_description", req.Points[1].Payload["source"])
}

// TestQdrantIndex_AddOffsetsPointIDs 测试Add以现有点数为序号基准追加
func TestQdrantIndex_AddOffsetsPointIDs(t *testing.T) {
	var upsertBody []byte

	collectionPath := "/collections/tailor_user_user-1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == collectionPath && r.Method == http.MethodGet:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Cosine"}}}}}`))
		case r.URL.Path == collectionPath+"/points/count" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"count": 3}, "status": "ok"}`))
		case r.URL.Path == collectionPath+"/points" && r.Method == http.MethodPut:
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			upsertBody = body
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"operation_id": 2, "status": "completed"}, "status": "ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:         server.URL,
		CollectionPrefix: "tailor",
		Dimension:        4,
	}
	idx, err := storage.NewQdrantIndex(cfg, "user-1")
	require.NoError(t, err)

	chunks := []types.ContextChunk{
		{Text: "反馈内容", Source: "feedback", UserID: "user-1", Type: "feedback", Rating: 5},
	}
	require.NoError(t, idx.Add(context.Background(), chunks, [][]float64{{0.5, 0.5, 0.5, 0.5}}))

	var req upsertRequest
	require.NoError(t, json.Unmarshal(upsertBody, &req))
	require.Len(t, req.Points, 1)

	// 集合已有3个点，新点序号从3开始，不与已有点ID冲突
	wantID := uuid.NewV5(storage.QdrantPointIDNamespace, "user_id:user-1_source:feedback_chunk:3").String()
	assert.Equal(t, wantID, req.Points[0].ID)
	assert.Equal(t, float64(5), req.Points[0].Payload["rating"], "评分应写入载荷")
}

// TestQdrantIndex_Search 测试检索结果从载荷还原分块
func TestQdrantIndex_Search(t *testing.T) {
	collectionPath := "/collections/tailor_user_user-1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == collectionPath+"/points/search" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"result": [
					{
						"id": "11111111-1111-5111-8111-111111111111",
						"score": 0.92,
						"payload": {
							"text": "五年Go后端开发经验",
							"source": "resume",
							"type": "resume",
							"user_id": "user-1"
						}
					},
					{
						"id": "22222222-2222-5222-8222-222222222222",
						"score": 0.81,
						"payload": {
							"text": "用户反馈要求突出项目管理",
							"source": "feedback",
							"type": "feedback",
							"user_id": "user-1",
							"rating": 4
						}
					}
				],
				"status": "ok",
				"time": 0.001
			}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:         server.URL,
		CollectionPrefix: "tailor",
		Dimension:        4,
	}
	idx, err := storage.NewQdrantIndex(cfg, "user-1")
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float64{0.1, 0.2, 0.3, 0.4}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "五年Go后端开发经验", hits[0].Chunk.Text)
	assert.Equal(t, "resume", hits[0].Chunk.Source)
	assert.InDelta(t, 0.92, hits[0].Score, 1e-9)
	assert.Equal(t, 4, hits[1].Chunk.Rating)

	// 维度不匹配的查询向量应直接报错
	_, err = idx.Search(context.Background(), []float64{0.1, 0.2}, 2)
	assert.Error(t, err)
}

// TestQdrantIndex_MissingCollection 测试集合不存在时映射为ErrIndexNotFound
func TestQdrantIndex_MissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(fmt.Sprintf(`{"status": {"error": "Not found: Collection doesn't exist"}, "path": %q}`, r.URL.Path)))
	}))
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:         server.URL,
		CollectionPrefix: "tailor",
		Dimension:        4,
	}
	idx, err := storage.NewQdrantIndex(cfg, "user-1")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = idx.Search(ctx, []float64{0.1, 0.2, 0.3, 0.4}, 5)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)

	_, err = idx.Count(ctx)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)

	err = idx.Load("", true)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

// TestQdrantIndex_LoadExistingCollection 测试Load探测到集合存在时不报错
func TestQdrantIndex_LoadExistingCollection(t *testing.T) {
	collectionPath := "/collections/tailor_user_user-1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == collectionPath && r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 4, "distance": "Cosine"}}}}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := &config.QdrantConfig{
		Endpoint:         server.URL,
		CollectionPrefix: "tailor",
		Dimension:        4,
	}
	idx, err := storage.NewQdrantIndex(cfg, "user-1")
	require.NoError(t, err)

	assert.NoError(t, idx.Load("", true))
	assert.NoError(t, idx.Save(""), "Qdrant后端的Save是空操作")
}
