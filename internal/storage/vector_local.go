package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"resume-agent-go/internal/types"
)

// 确保LocalVectorIndex实现了VectorIndex接口
var _ VectorIndex = (*LocalVectorIndex)(nil)

// LocalVectorIndex 进程内平坦索引，余弦相似度全量扫描。
// 向量在写入时归一化，检索时内积即余弦相似度。
// 互斥锁只保证内存安全，摄入与反馈追加的先后顺序由调用方串行化。
type LocalVectorIndex struct {
	mu      sync.RWMutex
	chunks  []types.ContextChunk
	vectors [][]float64
}

// NewLocalVectorIndex 创建空的本地向量索引
func NewLocalVectorIndex() *LocalVectorIndex {
	return &LocalVectorIndex{}
}

// localIndexFile 本地索引的磁盘格式
type localIndexFile struct {
	Chunks  []types.ContextChunk `json:"chunks"`
	Vectors [][]float64          `json:"vectors"`
}

// Build 整体重建索引，丢弃已有内容
func (idx *LocalVectorIndex) Build(_ context.Context, chunks []types.ContextChunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks数量(%d)与vectors数量(%d)不匹配", len(chunks), len(vectors))
	}

	normalized := make([][]float64, len(vectors))
	for i, vec := range vectors {
		normalized[i] = normalizeVector(vec)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = append([]types.ContextChunk(nil), chunks...)
	idx.vectors = normalized
	return nil
}

// Add 追加分块与向量，维度必须与已有向量一致
func (idx *LocalVectorIndex) Add(_ context.Context, chunks []types.ContextChunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks数量(%d)与vectors数量(%d)不匹配", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	normalized := make([][]float64, len(vectors))
	for i, vec := range vectors {
		normalized[i] = normalizeVector(vec)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.vectors) > 0 && len(normalized[0]) != len(idx.vectors[0]) {
		return fmt.Errorf("追加向量维度(%d)与索引维度(%d)不匹配", len(normalized[0]), len(idx.vectors[0]))
	}
	idx.chunks = append(idx.chunks, chunks...)
	idx.vectors = append(idx.vectors, normalized...)
	return nil
}

// Search 返回与查询向量最相似的k个分块，空索引返回空列表而非错误
func (idx *LocalVectorIndex) Search(_ context.Context, vector []float64, k int) ([]types.ChunkHit, error) {
	if k <= 0 {
		k = 10
	}
	query := normalizeVector(vector)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []types.ChunkHit{}, nil
	}
	if len(query) != len(idx.vectors[0]) {
		return nil, fmt.Errorf("查询向量维度(%d)与索引维度(%d)不匹配", len(query), len(idx.vectors[0]))
	}

	hits := make([]types.ChunkHit, 0, len(idx.vectors))
	for i, vec := range idx.vectors {
		hits = append(hits, types.ChunkHit{
			Chunk: idx.chunks[i],
			Score: dotProduct(query, vec),
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count 返回索引中的分块数量
func (idx *LocalVectorIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks), nil
}

// Save 将索引序列化为JSON写入path，父目录不存在时自动创建
func (idx *LocalVectorIndex) Save(path string) error {
	idx.mu.RLock()
	data, err := json.Marshal(localIndexFile{
		Chunks:  idx.chunks,
		Vectors: idx.vectors,
	})
	idx.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入索引文件失败: %w", err)
	}
	return nil
}

// Load 从path恢复索引。索引文件是反序列化入口，
// 只有调用方确认文件来源可信时才允许加载
func (idx *LocalVectorIndex) Load(path string, trusted bool) error {
	if !trusted {
		return fmt.Errorf("拒绝加载未受信任的索引文件: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("索引文件 %s 不存在: %w", path, ErrIndexNotFound)
		}
		return fmt.Errorf("读取索引文件失败: %w", err)
	}

	var file localIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("解析索引文件失败: %w", err)
	}
	if len(file.Chunks) != len(file.Vectors) {
		return fmt.Errorf("索引文件损坏: chunks数量(%d)与vectors数量(%d)不匹配", len(file.Chunks), len(file.Vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = file.Chunks
	idx.vectors = file.Vectors
	return nil
}

// normalizeVector 归一化为单位向量，零向量原样拷贝返回
func normalizeVector(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return append([]float64(nil), vec...)
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// dotProduct 内积，两侧均已归一化时等于余弦相似度
func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
