package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"doc-rag-go/internal/model"
)

// Okapi BM25 参数
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Memory 是进程内的文档库。读写由同一把读写锁保护，单个文档的替换是原子的。
type Memory struct {
	name     string
	semantic bool

	mu       sync.RWMutex
	dims     int
	nextSeq  uint64
	chunks   map[string]model.Chunk
	bySource map[string][]string
	postings map[string]map[string]int // term -> chunk id -> tf
	lengths  map[string]int
	totalLen int
}

// NewMemory 创建内存文档库。semantic 为 true 时要求每个分块都带向量。
func NewMemory(name string, semantic bool) *Memory {
	return &Memory{
		name:     name,
		semantic: semantic,
		chunks:   make(map[string]model.Chunk),
		bySource: make(map[string][]string),
		postings: make(map[string]map[string]int),
		lengths:  make(map[string]int),
	}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Semantic() bool { return m.semantic }

func (m *Memory) Write(_ context.Context, source string, chunks []model.Chunk) error {
	if source == "" {
		return model.WrapError(model.ErrInvalidInput, "store.Write", errors.New("source is empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dims, err := m.validate(source, chunks)
	if err != nil {
		return model.WrapError(model.ErrInvalidInput, "store.Write", err)
	}
	m.dims = dims

	m.removeLocked(source)
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		m.nextSeq++
		c.Seq = m.nextSeq
		c.Source = source
		c.Score = 0
		if c.Embedding != nil {
			c.Embedding = append([]float32(nil), c.Embedding...)
		}
		m.chunks[c.ID] = c
		ids = append(ids, c.ID)

		terms := tokenize(c.Text)
		m.lengths[c.ID] = len(terms)
		m.totalLen += len(terms)
		for _, term := range terms {
			posting, ok := m.postings[term]
			if !ok {
				posting = make(map[string]int)
				m.postings[term] = posting
			}
			posting[c.ID]++
		}
	}
	m.bySource[source] = ids
	return nil
}

// validate 在修改任何状态之前检查整批分块，返回写入后的向量维度。
func (m *Memory) validate(source string, chunks []model.Chunk) (int, error) {
	dims := m.dims
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return 0, errors.New("chunk id is empty")
		}
		if _, dup := seen[c.ID]; dup {
			return 0, fmt.Errorf("duplicate chunk id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if existing, ok := m.chunks[c.ID]; ok && existing.Source != source {
			return 0, fmt.Errorf("chunk id %q already belongs to %q", c.ID, existing.Source)
		}

		if !m.semantic {
			if len(c.Embedding) > 0 {
				return 0, fmt.Errorf("keyword store %q does not accept embeddings", m.name)
			}
			continue
		}
		if len(c.Embedding) == 0 {
			return 0, fmt.Errorf("chunk %q has no embedding", c.ID)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) != dims {
			return 0, fmt.Errorf("chunk %q has %d dimensions, store expects %d", c.ID, len(c.Embedding), dims)
		}
	}
	return dims, nil
}

func (m *Memory) DeleteSource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(source)
	return nil
}

func (m *Memory) removeLocked(source string) {
	for _, id := range m.bySource[source] {
		c, ok := m.chunks[id]
		if !ok {
			continue
		}
		for _, term := range tokenize(c.Text) {
			posting := m.postings[term]
			delete(posting, id)
			if len(posting) == 0 {
				delete(m.postings, term)
			}
		}
		m.totalLen -= m.lengths[id]
		delete(m.lengths, id)
		delete(m.chunks, id)
	}
	delete(m.bySource, source)
}

func (m *Memory) KeywordSearch(_ context.Context, query string, topK int) ([]model.Chunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	terms := uniqueTerms(tokenize(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.chunks)
	if n == 0 || len(terms) == 0 {
		return nil, nil
	}
	avgLen := float64(m.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		posting := m.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for id, tf := range posting {
			f := float64(tf)
			norm := f + bm25K1*(1-bm25B+bm25B*float64(m.lengths[id])/avgLen)
			scores[id] += idf * f * (bm25K1 + 1) / norm
		}
	}
	return m.rank(scores, topK), nil
}

func (m *Memory) VectorSearch(_ context.Context, vector []float32, topK int) ([]model.Chunk, error) {
	if !m.semantic {
		return nil, model.WrapError(model.ErrInvalidInput, "store.VectorSearch", fmt.Errorf("store %q has no vector index", m.name))
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != m.dims {
		return nil, model.WrapError(model.ErrInvalidInput, "store.VectorSearch",
			fmt.Errorf("query has %d dimensions, store expects %d", len(vector), m.dims))
	}

	scores := make(map[string]float64, len(m.chunks))
	for id, c := range m.chunks {
		scores[id] = cosine(vector, c.Embedding)
	}
	return m.rank(scores, topK), nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *Memory) HasSource(_ context.Context, source string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySource[source]) > 0, nil
}

// rank 按得分降序、写入顺序升序取前 topK 个分块。
func (m *Memory) rank(scores map[string]float64, topK int) []model.Chunk {
	out := make([]model.Chunk, 0, len(scores))
	for id, score := range scores {
		c := m.chunks[id]
		c.Score = score
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
