package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbeddingServer(t *testing.T, calls *int32, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"too long"}}`)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 逆序返回，客户端需要按 index 还原顺序
		var items []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,1]}`, i, len(req.Input[i])))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"m","data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`, strings.Join(items, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string, batch int, llmKey string) Client {
	cfg := config.EmbeddingConfig{BaseURL: baseURL, Model: "m", BatchSize: batch}
	return NewClient(cfg, config.NewModelSettings(llmKey, "gpt"), resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}), nil)
}

func TestEmbedBatchesAndKeepsOrder(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls, false)

	vectors, err := newTestClient(srv.URL, 2, "sk").Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 1}, vectors[1])
	assert.Equal(t, []float32{3, 1}, vectors[2])
	assert.EqualValues(t, 2, calls)
}

func TestEmbedFailureIsRemoteCallError(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls, true)

	_, err := newTestClient(srv.URL, 8, "sk").EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, model.ErrRemoteCall)
}

func TestEmbedWithoutCredential(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls, false)

	_, err := newTestClient(srv.URL, 8, "").Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.EqualValues(t, 0, calls)
}
