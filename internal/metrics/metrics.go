// Package metrics 定义服务的 Prometheus 指标。
// 所有方法对 nil 接收者安全，测试中可以直接传 nil。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	intents         *prometheus.CounterVec
	chatOutcomes    *prometheus.CounterVec
	chatDuration    *prometheus.HistogramVec
	remoteCalls     *prometheus.HistogramVec
	indexedDocs     *prometheus.CounterVec
	mapPhaseChunks  prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDurationSec *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_router_intents_total",
			Help: "Total routed queries by intent.",
		}, []string{"intent"}),
		chatOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_chat_requests_total",
			Help: "Total chat requests by intent and terminal state.",
		}, []string{"intent", "state"}),
		chatDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_chat_duration_seconds",
			Help:    "Chat request duration from routing to terminal state.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"intent"}),
		remoteCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_remote_call_duration_seconds",
			Help:    "Remote model call duration by operation and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		indexedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_indexed_documents_total",
			Help: "Total indexing attempts by collection and status.",
		}, []string{"collection", "status"}),
		mapPhaseChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_summary_map_chunks",
			Help:    "Number of chunks dispatched per summarization map phase.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.intents,
		m.chatOutcomes,
		m.chatDuration,
		m.remoteCalls,
		m.indexedDocs,
		m.mapPhaseChunks,
		m.httpRequests,
		m.httpDurationSec,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveChat(intent, state string, duration time.Duration) {
	if m == nil {
		return
	}
	m.chatOutcomes.WithLabelValues(intent, state).Inc()
	m.chatDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRemoteCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.remoteCalls.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func (m *Metrics) ObserveIndexing(collection string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.indexedDocs.WithLabelValues(collection, status).Inc()
}

func (m *Metrics) ObserveMapPhase(chunks int) {
	if m == nil {
		return
	}
	m.mapPhaseChunks.Observe(float64(chunks))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurationSec.WithLabelValues(method, route).Observe(duration.Seconds())
}
