package parser

import (
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// TextChunker 递归字符分块器。按分隔符优先级逐级细分，
// 直到每块长度低于上限，再带重叠合并回目标大小。
// 长度一律按rune计数，不会拆坏多字节字符。
type TextChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	logger       *log.Logger
}

// TextChunkerOption 分块器的配置选项
type TextChunkerOption func(*TextChunker)

// WithChunkSize 设置单块的最大rune数
func WithChunkSize(size int) TextChunkerOption {
	return func(c *TextChunker) {
		c.chunkSize = size
	}
}

// WithChunkOverlap 设置相邻块之间的重叠rune数
func WithChunkOverlap(overlap int) TextChunkerOption {
	return func(c *TextChunker) {
		c.chunkOverlap = overlap
	}
}

// WithSeparators 设置分隔符优先级，末尾的空串表示逐字符兜底
func WithSeparators(separators []string) TextChunkerOption {
	return func(c *TextChunker) {
		c.separators = separators
	}
}

// NewTextChunker 创建递归字符分块器，默认配置为 1000/200 与段落优先的分隔符
func NewTextChunker(logger *log.Logger, options ...TextChunkerOption) *TextChunker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	chunker := &TextChunker{
		chunkSize:    constants.DefaultChunkSize,
		chunkOverlap: constants.DefaultChunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
		logger:       logger,
	}

	for _, opt := range options {
		opt(chunker)
	}

	if chunker.chunkSize <= 0 {
		chunker.logger.Printf("[TextChunker] 非法块大小 %d，回退默认值", chunker.chunkSize)
		chunker.chunkSize = constants.DefaultChunkSize
	}
	if chunker.chunkOverlap < 0 || chunker.chunkOverlap >= chunker.chunkSize {
		chunker.logger.Printf("[TextChunker] 非法重叠量 %d，回退默认值", chunker.chunkOverlap)
		chunker.chunkOverlap = chunker.chunkSize / 5
	}
	if len(chunker.separators) == 0 {
		chunker.separators = []string{"\n\n", "\n", " ", ""}
	}
	return chunker
}

// Split 把整段文本切为不超过块大小的片段，保持原文顺序
func (c *TextChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.splitRecursive(text, c.separators)
}

// SplitDocuments 切分一组带元数据的文档，每个产物块继承来源文档的元数据
func (c *TextChunker) SplitDocuments(documents []types.ContextChunk) []types.ContextChunk {
	var out []types.ContextChunk
	for _, doc := range documents {
		for _, piece := range c.Split(doc.Text) {
			chunk := doc
			chunk.Text = piece
			out = append(out, chunk)
		}
	}
	return out
}

func (c *TextChunker) splitRecursive(text string, separators []string) []string {
	// 选用第一个在文本中出现的分隔符，层层退到逐字符兜底
	separator := separators[len(separators)-1]
	var nextSeparators []string
	for i, s := range separators {
		if s == "" {
			separator = ""
			nextSeparators = nil
			break
		}
		if strings.Contains(text, s) {
			separator = s
			nextSeparators = separators[i+1:]
			break
		}
	}

	splits := splitAndFilter(text, separator)

	var final []string
	var pending []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			final = append(final, c.mergeSplits(pending, separator)...)
			pending = nil
		}
		if len(nextSeparators) == 0 {
			// 已无更细的分隔符，超限片段原样放行
			final = append(final, piece)
		} else {
			final = append(final, c.splitRecursive(piece, nextSeparators)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, c.mergeSplits(pending, separator)...)
	}
	return final
}

// mergeSplits 把细粒度片段合并回目标大小，块间保留配置的重叠量。
// 窗口超限时从队首弹出片段，弹到重叠量回到阈值以内为止。
func (c *TextChunker) mergeSplits(splits []string, separator string) []string {
	separatorLen := utf8.RuneCountInString(separator)

	var docs []string
	var window []string
	total := 0
	for _, piece := range splits {
		pieceLen := utf8.RuneCountInString(piece)
		joinLen := 0
		if len(window) > 0 {
			joinLen = separatorLen
		}
		if total+pieceLen+joinLen > c.chunkSize && len(window) > 0 {
			if doc := joinPieces(window, separator); doc != "" {
				docs = append(docs, doc)
			}
			for len(window) > 0 {
				overflow := total > c.chunkOverlap
				if !overflow && total > 0 {
					overflow = total+pieceLen+separatorLen > c.chunkSize
				}
				if !overflow {
					break
				}
				headLen := utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= headLen + separatorLen
				} else {
					total -= headLen
				}
				window = window[1:]
			}
		}
		window = append(window, piece)
		if len(window) > 1 {
			total += pieceLen + separatorLen
		} else {
			total += pieceLen
		}
	}
	if doc := joinPieces(window, separator); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitAndFilter(text, separator string) []string {
	if separator == "" {
		runes := []rune(text)
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPieces(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}
