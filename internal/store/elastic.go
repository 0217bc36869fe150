package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Elastic 把一个集合保存在单独的 Elasticsearch 索引中。
// 关键词检索使用 match（BM25），向量检索使用 dense_vector 上的 knn。
type Elastic struct {
	client   *elasticsearch.Client
	index    string
	semantic bool
	dims     int

	mu      sync.Mutex
	lastSeq uint64
}

// NewElastic 创建基于 Elasticsearch 的文档库，索引应已通过 es.EnsureIndex 创建。
func NewElastic(client *elasticsearch.Client, index string, semantic bool, dims int) *Elastic {
	return &Elastic{client: client, index: index, semantic: semantic, dims: dims}
}

func (e *Elastic) Name() string { return e.index }

func (e *Elastic) Semantic() bool { return e.semantic }

// nextSeqs 分配单调递增的写入序号，跨进程重启仍然递增。
func (e *Elastic) nextSeqs(n int) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	base := uint64(time.Now().UnixNano())
	if base <= e.lastSeq {
		base = e.lastSeq + 1
	}
	e.lastSeq = base + uint64(n)
	return base
}

func (e *Elastic) Write(ctx context.Context, source string, chunks []model.Chunk) error {
	if source == "" {
		return model.WrapError(model.ErrInvalidInput, "store.Write", errors.New("source is empty"))
	}
	for _, c := range chunks {
		if e.semantic && len(c.Embedding) != e.dims {
			return model.WrapError(model.ErrInvalidInput, "store.Write",
				fmt.Errorf("chunk %q has %d dimensions, index expects %d", c.ID, len(c.Embedding), e.dims))
		}
		if !e.semantic && len(c.Embedding) > 0 {
			return model.WrapError(model.ErrInvalidInput, "store.Write",
				fmt.Errorf("keyword index %q does not accept embeddings", e.index))
		}
	}

	if err := e.DeleteSource(ctx, source); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	seq := e.nextSeqs(len(chunks))
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i, c := range chunks {
		meta := map[string]any{"index": map[string]any{"_index": e.index, "_id": c.ID}}
		doc := model.EsChunk{ChunkID: c.ID, Source: source, Text: c.Text, Vector: c.Embedding, Seq: seq + uint64(i)}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	res, err := e.client.Bulk(&body,
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk 写入 Elasticsearch 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk 写入 Elasticsearch 返回错误: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		// 部分失败时清掉本次写入，避免留下不完整的文档
		_ = e.DeleteSource(ctx, source)
		return fmt.Errorf("bulk 写入 %s 时部分分块失败", source)
	}
	log.Infof("[ElasticStore] 写入 %d 个分块到索引 %s, source: %s", len(chunks), e.index, source)
	return nil
}

func (e *Elastic) DeleteSource(ctx context.Context, source string) error {
	query := map[string]any{"query": map[string]any{"term": map[string]any{"source": source}}}
	body, _ := json.Marshal(query)

	res, err := e.client.DeleteByQuery([]string{e.index}, bytes.NewReader(body),
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("删除 %s 的旧分块失败: %w", source, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("删除 %s 的旧分块时 Elasticsearch 返回错误: %s", source, res.String())
	}
	return nil
}

func (e *Elastic) KeywordSearch(ctx context.Context, query string, topK int) ([]model.Chunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	return e.search(ctx, map[string]any{
		"size":         topK,
		"track_scores": true,
		"query":        map[string]any{"match": map[string]any{"text": query}},
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"seq": "asc"},
		},
	})
}

func (e *Elastic) VectorSearch(ctx context.Context, vector []float32, topK int) ([]model.Chunk, error) {
	if !e.semantic {
		return nil, model.WrapError(model.ErrInvalidInput, "store.VectorSearch", fmt.Errorf("index %q has no vector field", e.index))
	}
	if topK <= 0 {
		return nil, nil
	}
	numCandidates := topK * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	return e.search(ctx, map[string]any{
		"size": topK,
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": numCandidates,
		},
	})
}

func (e *Elastic) search(ctx context.Context, query map[string]any) ([]model.Chunk, error) {
	query["_source"] = map[string]any{"excludes": []string{"vector"}}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("向 Elasticsearch 发送搜索请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析 Elasticsearch 响应失败: %w", err)
	}

	out := make([]model.Chunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		out = append(out, model.Chunk{
			ID:     hit.Source.ChunkID,
			Text:   hit.Source.Text,
			Source: hit.Source.Source,
			Score:  hit.Score,
			Seq:    hit.Source.Seq,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (e *Elastic) Count(ctx context.Context) (int, error) {
	return e.count(ctx, nil)
}

func (e *Elastic) HasSource(ctx context.Context, source string) (bool, error) {
	query := map[string]any{"query": map[string]any{"term": map[string]any{"source": source}}}
	body, _ := json.Marshal(query)
	n, err := e.count(ctx, bytes.NewReader(body))
	return n > 0, err
}

func (e *Elastic) count(ctx context.Context, body io.Reader) (int, error) {
	opts := []func(*esapi.CountRequest){
		e.client.Count.WithContext(ctx),
		e.client.Count.WithIndex(e.index),
	}
	if body != nil {
		opts = append(opts, e.client.Count.WithBody(body))
	}
	res, err := e.client.Count(opts...)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("count 返回错误: %s", res.String())
	}
	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, err
	}
	return countResp.Count, nil
}
