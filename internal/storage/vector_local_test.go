package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks(texts ...string) []types.ContextChunk {
	chunks := make([]types.ContextChunk, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, types.ContextChunk{
			Text:   text,
			Source: "resume",
			UserID: "user-1",
			Type:   "resume",
		})
	}
	return chunks
}

// TestLocalVectorIndex_BuildAndSearch 测试构建索引后按余弦相似度检索
func TestLocalVectorIndex_BuildAndSearch(t *testing.T) {
	idx := storage.NewLocalVectorIndex()
	ctx := context.Background()

	chunks := testChunks("Go后端开发经验", "Python数据分析", "前端React项目")
	vectors := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	require.NoError(t, idx.Build(ctx, chunks, vectors))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// 查询向量偏向第二个分块，第二个分块应排第一
	hits, err := idx.Search(ctx, []float64{0.1, 0.9, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "Python数据分析", hits[0].Chunk.Text)

	// 得分单调递减
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score, "得分应按降序排列")
	}
}

// TestLocalVectorIndex_BuildReplacesExisting 测试重建索引丢弃旧内容
func TestLocalVectorIndex_BuildReplacesExisting(t *testing.T) {
	idx := storage.NewLocalVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, testChunks("旧内容A", "旧内容B"), [][]float64{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Build(ctx, testChunks("新内容"), [][]float64{{1, 1}}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "重建后应只剩新内容")

	hits, err := idx.Search(ctx, []float64{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "新内容", hits[0].Chunk.Text)
}

// TestLocalVectorIndex_AddAppends 测试增量追加不影响已有分块
func TestLocalVectorIndex_AddAppends(t *testing.T) {
	idx := storage.NewLocalVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, testChunks("原始分块"), [][]float64{{1, 0}}))
	require.NoError(t, idx.Add(ctx, testChunks("追加分块一", "追加分块二"), [][]float64{{0, 1}, {1, 1}}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// 追加维度不匹配的向量应报错
	err = idx.Add(ctx, testChunks("坏分块"), [][]float64{{1, 0, 0}})
	assert.Error(t, err)
}

// TestLocalVectorIndex_ChunksVectorsMismatch 测试分块与向量数量不一致时报错
func TestLocalVectorIndex_ChunksVectorsMismatch(t *testing.T) {
	idx := storage.NewLocalVectorIndex()
	ctx := context.Background()

	err := idx.Build(ctx, testChunks("一个分块"), [][]float64{{1, 0}, {0, 1}})
	assert.Error(t, err)
}

// TestLocalVectorIndex_SearchEmptyIndex 测试空索引检索返回空结果而非错误
func TestLocalVectorIndex_SearchEmptyIndex(t *testing.T) {
	idx := storage.NewLocalVectorIndex()

	hits, err := idx.Search(context.Background(), []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// TestLocalVectorIndex_TopKTruncation 测试结果数量不超过k
func TestLocalVectorIndex_TopKTruncation(t *testing.T) {
	idx := storage.NewLocalVectorIndex()
	ctx := context.Background()

	chunks := testChunks("分块1", "分块2", "分块3", "分块4", "分块5")
	vectors := [][]float64{
		{1, 0}, {0.9, 0.1}, {0.8, 0.2}, {0.1, 0.9}, {0, 1},
	}
	require.NoError(t, idx.Build(ctx, chunks, vectors))

	hits, err := idx.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "分块1", hits[0].Chunk.Text)
}

// TestLocalVectorIndex_SaveLoadRoundTrip 测试保存后重新加载内容一致
func TestLocalVectorIndex_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := storage.UserIndexPath(t.TempDir(), "user-1")

	idx := storage.NewLocalVectorIndex()
	chunks := testChunks("保存的分块A", "保存的分块B")
	chunks[1].Rating = 4
	require.NoError(t, idx.Build(ctx, chunks, [][]float64{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))

	// 文件应真实存在
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded := storage.NewLocalVectorIndex()
	require.NoError(t, loaded.Load(path, true))

	count, err := loaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := loaded.Search(ctx, []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "保存的分块B", hits[0].Chunk.Text)
	assert.Equal(t, 4, hits[0].Chunk.Rating)
}

// TestLocalVectorIndex_LoadUntrustedRefused 测试拒绝加载未受信任的索引文件
func TestLocalVectorIndex_LoadUntrustedRefused(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.json")

	idx := storage.NewLocalVectorIndex()
	require.NoError(t, idx.Build(ctx, testChunks("分块"), [][]float64{{1}}))
	require.NoError(t, idx.Save(path))

	loaded := storage.NewLocalVectorIndex()
	err := loaded.Load(path, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrIndexNotFound, "拒绝加载与索引缺失是不同的错误")
}

// TestLocalVectorIndex_LoadMissingFile 测试加载不存在的索引文件返回ErrIndexNotFound
func TestLocalVectorIndex_LoadMissingFile(t *testing.T) {
	loaded := storage.NewLocalVectorIndex()
	err := loaded.Load(filepath.Join(t.TempDir(), "no-such-index.json"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

// TestUserIndexPath 测试用户索引路径的派生规则
func TestUserIndexPath(t *testing.T) {
	path := storage.UserIndexPath("/data/vectors", "alice")
	assert.Equal(t, filepath.Join("/data/vectors", "user_alice", "index.json"), path)
}
