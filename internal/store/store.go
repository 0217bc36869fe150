// Package store 定义文档库的契约以及内存和 Elasticsearch 两种实现。
package store

import (
	"context"
	"strings"
	"unicode"

	"doc-rag-go/internal/model"
)

// Store 是一个分块集合，维护关键词索引以及可选的向量索引。
// 语义库中每个分块都带固定维度的向量；关键词库中的分块从不带向量。
type Store interface {
	Name() string
	// Semantic 表示该库是否维护向量索引。
	Semantic() bool
	// Write 写入 source 文档的全部分块，并替换该文档之前的分块。
	Write(ctx context.Context, source string, chunks []model.Chunk) error
	DeleteSource(ctx context.Context, source string) error
	// KeywordSearch 按 BM25 得分降序返回最多 topK 个分块。
	KeywordSearch(ctx context.Context, query string, topK int) ([]model.Chunk, error)
	// VectorSearch 按余弦相似度降序返回最多 topK 个分块。
	VectorSearch(ctx context.Context, vector []float32, topK int) ([]model.Chunk, error)
	Count(ctx context.Context) (int, error)
	// HasSource 判断库中是否还有 source 文档的分块。
	HasSource(ctx context.Context, source string) (bool, error)
}

// tokenize 小写化后按非字母数字切词。
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
