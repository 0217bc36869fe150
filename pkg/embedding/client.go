// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/resilience"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client defines the interface for an embedding client.
type Client interface {
	// Embed 为每段文本返回一个向量，顺序与输入一致；任何一批失败则整体失败。
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type openAICompatibleClient struct {
	cfg        config.EmbeddingConfig
	settings   *config.ModelSettings
	httpClient *http.Client
	executor   *resilience.Executor
	metrics    *metrics.Metrics
}

// NewClient creates a new embedding client. 未配置独立 api_key 时复用 LLM 的凭证。
func NewClient(cfg config.EmbeddingConfig, settings *config.ModelSettings, executor *resilience.Executor, m *metrics.Metrics) Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &openAICompatibleClient{
		cfg:        cfg,
		settings:   settings,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		metrics:    m,
	}
}

func (c *openAICompatibleClient) apiKey() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	key, _ := c.settings.Snapshot()
	return key
}

func (c *openAICompatibleClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	apiKey := c.apiKey()
	if apiKey == "" {
		return nil, model.WrapError(model.ErrConfiguration, "embedding.Embed", errors.New("no api key configured"))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, texts: %d", c.cfg.Model, len(texts))
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, client, texts[start:end])
		if err != nil {
			log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, batch: [%d, %d), error: %v", start, end, err)
			return nil, model.WrapError(model.ErrRemoteCall, "embedding.Embed", err)
		}
		vectors = append(vectors, batch...)
	}
	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取向量, 数量: %d, 维度: %d", len(vectors), len(vectors[0]))
	return vectors, nil
}

func (c *openAICompatibleClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *openAICompatibleClient) embedBatch(ctx context.Context, client openai.Client, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.cfg.Model),
	}
	if c.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.Dimensions))
	}

	begin := time.Now()
	var out [][]float32
	err := c.executor.Execute(ctx, "embedding", func(ctx context.Context) error {
		resp, err := client.Embeddings.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return resilience.NonRetryable(fmt.Errorf("embedding api returned %d vectors for %d inputs", len(resp.Data), len(texts)))
		}
		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

		out = make([][]float32, len(data))
		for i, item := range data {
			if len(item.Embedding) == 0 {
				return resilience.NonRetryable(errors.New("received empty embedding from api"))
			}
			vec := make([]float32, len(item.Embedding))
			for j, v := range item.Embedding {
				vec[j] = float32(v)
			}
			out[i] = vec
		}
		return nil
	})
	c.metrics.ObserveRemoteCall("embedding", err, time.Since(begin))
	return out, err
}
