package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}

func TestObservationsAreExposed(t *testing.T) {
	m := New()
	m.ObserveIntent("summary")
	m.ObserveChat("summary", "PERSISTED", time.Second)
	m.ObserveRemoteCall("chat.completions", errors.New("boom"), 10*time.Millisecond)
	m.ObserveIndexing("rag", nil)
	m.ObserveMapPhase(5)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `rag_router_intents_total{intent="summary"} 1`)
	assert.Contains(t, body, `rag_chat_requests_total{intent="summary",state="PERSISTED"} 1`)
	assert.Contains(t, body, `rag_remote_call_duration_seconds_count{operation="chat.completions",status="error"} 1`)
	assert.Contains(t, body, `rag_indexed_documents_total{collection="rag",status="ok"} 1`)
	assert.Contains(t, body, `rag_summary_map_chunks_sum 5`)
	assert.Contains(t, body, `rag_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIntent("simple")
		m.ObserveChat("simple", "FAILED", time.Second)
		m.ObserveRemoteCall("embeddings", nil, time.Second)
		m.ObserveIndexing("bm25", errors.New("x"))
		m.ObserveMapPhase(0)
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
