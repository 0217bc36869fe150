package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"doc-rag-go/internal/model"
	"doc-rag-go/internal/store"
	"doc-rag-go/pkg/embedding"
	"doc-rag-go/pkg/log"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTopK 是混合检索的默认返回数量。
	DefaultTopK = 4
	// DefaultKeywordTopK 是纯关键词搜索的默认返回数量。
	DefaultKeywordTopK = 5
	snippetChars       = 200
)

// RetrievalService 接口定义了检索操作。
type RetrievalService interface {
	// HybridRetrieve 在语义库上并行执行关键词检索和向量检索，并用 RRF 融合。
	HybridRetrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error)
	// KeywordSearch 在关键词库上执行 BM25 检索，返回截断后的片段。
	KeywordSearch(ctx context.Context, query string, topK int) ([]model.SearchResponseDTO, error)
}

type retrievalService struct {
	semantic store.Store
	keyword  store.Store
	embedder embedding.Client
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(semantic, keyword store.Store, embedder embedding.Client) RetrievalService {
	return &retrievalService{semantic: semantic, keyword: keyword, embedder: embedder}
}

func (s *retrievalService) HybridRetrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()
	log.Infof("[RetrievalService] 开始混合检索, query: '%s', topK: %d", query, topK)

	var keywordHits, vectorHits []model.Chunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.semantic.KeywordSearch(gctx, query, topK)
		if err != nil {
			return fmt.Errorf("关键词检索失败: %w", err)
		}
		keywordHits = hits
		return nil
	})
	g.Go(func() error {
		vector, err := s.embedder.EmbedQuery(gctx, query)
		if err != nil {
			return err
		}
		hits, err := s.semantic.VectorSearch(gctx, vector, topK)
		if err != nil {
			return fmt.Errorf("向量检索失败: %w", err)
		}
		vectorHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("[RetrievalService] 混合检索失败: %v", err)
		return nil, err
	}

	results := FuseRRF(topK, keywordHits, vectorHits)
	log.Infof("[RetrievalService] 混合检索完成, 关键词命中: %d, 向量命中: %d, 融合后: %d, 耗时: %s",
		len(keywordHits), len(vectorHits), len(results), time.Since(start))
	return results, nil
}

func (s *retrievalService) KeywordSearch(ctx context.Context, query string, topK int) ([]model.SearchResponseDTO, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.WrapError(model.ErrInvalidInput, "service.KeywordSearch", fmt.Errorf("query is empty"))
	}
	if topK <= 0 {
		topK = DefaultKeywordTopK
	}
	hits, err := s.keyword.KeywordSearch(ctx, query, topK)
	if err != nil {
		log.Errorf("[RetrievalService] 关键词搜索失败, query: '%s', error: %v", query, err)
		return nil, err
	}
	out := make([]model.SearchResponseDTO, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.SearchResponseDTO{
			ID:       h.ID,
			FileName: h.Source,
			Snippet:  snippet(h.Text),
			Score:    h.Score,
		})
	}
	log.Infof("[RetrievalService] 关键词搜索完成, query: '%s', 命中: %d", query, len(out))
	return out, nil
}

// snippet 取前 200 个字符并追加省略号。
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetChars {
		return text + "..."
	}
	return string([]rune(text)[:snippetChars]) + "..."
}
