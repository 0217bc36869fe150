package store

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	mu       sync.Mutex
	calls    []string
	bulk     []string
	searches []map[string]any
	counts   []map[string]any
	hits     string
	count    int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
		_, _ = w.Write([]byte(`{"deleted":0}`))
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		sc := bufio.NewScanner(strings.NewReader(string(body)))
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				f.bulk = append(f.bulk, line)
			}
		}
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var q map[string]any
		_ = json.Unmarshal(body, &q)
		f.searches = append(f.searches, q)
		_, _ = w.Write([]byte(f.hits))
	case strings.HasSuffix(r.URL.Path, "/_count"):
		var q map[string]any
		_ = json.Unmarshal(body, &q)
		f.counts = append(f.counts, q)
		_ = json.NewEncoder(w).Encode(map[string]int{"count": f.count})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newFakeElastic(t *testing.T, semantic bool, dims int) (*Elastic, *fakeES) {
	t.Helper()
	fake := &fakeES{hits: `{"hits":{"hits":[]}}`}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := es.NewClient(config.ElasticsearchConfig{Addresses: srv.URL})
	require.NoError(t, err)
	return NewElastic(client, "chunks", semantic, dims), fake
}

func TestElasticWriteReplacesSource(t *testing.T) {
	s, fake := newFakeElastic(t, true, 2)

	err := s.Write(context.Background(), "a.pdf", []model.Chunk{
		{ID: "a-0", Text: "one", Embedding: []float32{1, 0}},
		{ID: "a-1", Text: "two", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, "POST /chunks/_delete_by_query", fake.calls[0])
	require.Len(t, fake.bulk, 4)

	var doc model.EsChunk
	require.NoError(t, json.Unmarshal([]byte(fake.bulk[3]), &doc))
	assert.Equal(t, "a-1", doc.ChunkID)
	assert.Equal(t, "a.pdf", doc.Source)
	assert.Equal(t, []float32{0, 1}, doc.Vector)

	var first model.EsChunk
	require.NoError(t, json.Unmarshal([]byte(fake.bulk[1]), &first))
	assert.Less(t, first.Seq, doc.Seq)
}

func TestElasticWriteRejectsWrongDimensions(t *testing.T) {
	s, fake := newFakeElastic(t, true, 3)
	err := s.Write(context.Background(), "a.pdf", []model.Chunk{{ID: "a-0", Text: "one", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, fake.calls)
}

func TestElasticKeywordSearchOrdersTiesBySeq(t *testing.T) {
	s, fake := newFakeElastic(t, false, 0)
	fake.hits = `{"hits":{"hits":[
		{"_score":1.5,"_source":{"chunk_id":"late","source":"b","text":"x","seq":9}},
		{"_score":2.0,"_source":{"chunk_id":"top","source":"a","text":"x","seq":5}},
		{"_score":1.5,"_source":{"chunk_id":"early","source":"a","text":"x","seq":1}}
	]}}`

	got, err := s.KeywordSearch(context.Background(), "x", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"top", "early", "late"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, 2.0, got[0].Score)

	require.Len(t, fake.searches, 1)
	assert.Contains(t, fake.searches[0], "query")
}

func TestElasticVectorSearchUsesKNN(t *testing.T) {
	s, fake := newFakeElastic(t, true, 2)
	_, err := s.VectorSearch(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)

	require.Len(t, fake.searches, 1)
	knn, ok := fake.searches[0]["knn"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vector", knn["field"])
	assert.EqualValues(t, 4, knn["k"])

	keywordOnly, _ := newFakeElastic(t, false, 0)
	_, err = keywordOnly.VectorSearch(context.Background(), []float32{1}, 4)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestElasticCount(t *testing.T) {
	s, fake := newFakeElastic(t, false, 0)
	fake.count = 3
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestElasticHasSourceCountsBySource(t *testing.T) {
	s, fake := newFakeElastic(t, false, 0)

	ok, err := s.HasSource(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.mu.Lock()
	fake.count = 2
	fake.mu.Unlock()
	ok, err = s.HasSource(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, fake.counts, 2)
	term := fake.counts[0]["query"].(map[string]any)["term"].(map[string]any)
	assert.Equal(t, "a.txt", term["source"])
}
