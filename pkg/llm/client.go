// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/resilience"
	"doc-rag-go/pkg/stream"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 发起一次非流式调用，返回完整回复。
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteStream 发起一次流式调用，按生成顺序返回文本片段。
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string) *stream.Stream
}

type openAIClient struct {
	cfg        config.LLMConfig
	settings   *config.ModelSettings
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	metrics    *metrics.Metrics
}

// NewClient 创建一个兼容 OpenAI 协议的客户端。凭证和模型名在每次调用时从 settings 读取。
func NewClient(cfg config.LLMConfig, settings *config.ModelSettings, executor *resilience.Executor, m *metrics.Metrics) Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &openAIClient{
		cfg:        cfg,
		settings:   settings,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 4),
		executor:   executor,
		metrics:    m,
	}
}

func (c *openAIClient) sdk(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

func (c *openAIClient) params(modelName, systemPrompt, userPrompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	// 从全局配置注入生成参数（若非零值）
	gen := c.cfg.Generation
	if gen.Temperature != 0 {
		params.Temperature = openai.Float(gen.Temperature)
	}
	if gen.TopP != 0 {
		params.TopP = openai.Float(gen.TopP)
	}
	if gen.MaxTokens != 0 {
		params.MaxCompletionTokens = openai.Int(int64(gen.MaxTokens))
	}
	return params
}

func (c *openAIClient) credentials(op string) (string, string, error) {
	apiKey, modelName := c.settings.Snapshot()
	if apiKey == "" {
		return "", "", model.WrapError(model.ErrConfiguration, op, errors.New("no api key configured"))
	}
	return apiKey, modelName, nil
}

func (c *openAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	apiKey, modelName, err := c.credentials("llm.Complete")
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", model.WrapError(model.ErrRemoteCall, "llm.Complete", err)
	}

	client := c.sdk(apiKey)
	params := c.params(modelName, systemPrompt, userPrompt)
	start := time.Now()
	var content string
	err = c.executor.Execute(ctx, "llm.complete", func(ctx context.Context) error {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return resilience.NonRetryable(errors.New("completion returned no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	c.metrics.ObserveRemoteCall("llm.complete", err, time.Since(start))
	if err != nil {
		log.Errorf("[LLMClient] 调用 chat completion 失败, model: %s, error: %v", modelName, err)
		return "", model.WrapError(model.ErrRemoteCall, "llm.Complete", err)
	}
	log.Debugf("[LLMClient] chat completion 完成, model: %s, reply_len: %d", modelName, len(content))
	return content, nil
}

func (c *openAIClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string) *stream.Stream {
	return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) error {
		apiKey, modelName, err := c.credentials("llm.CompleteStream")
		if err != nil {
			return err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return model.WrapError(model.ErrRemoteCall, "llm.CompleteStream", err)
		}

		start := time.Now()
		client := c.sdk(apiKey)
		params := c.params(modelName, systemPrompt, userPrompt)

		// 建立连接并读到首个分片的过程受熔断器保护，此时尚未向调用方输出，可以安全重试。
		var (
			s       chunkStream
			hasNext bool
		)
		err = c.executor.Execute(ctx, "llm.stream", func(ctx context.Context) error {
			opened := client.Chat.Completions.NewStreaming(ctx, params)
			if opened.Next() {
				s, hasNext = opened, true
				return nil
			}
			if err := opened.Err(); err != nil {
				_ = opened.Close()
				return classify(err)
			}
			s = opened
			return nil
		})
		if err != nil {
			c.metrics.ObserveRemoteCall("llm.stream", err, time.Since(start))
			log.Errorf("[LLMClient] 建立流式调用失败, model: %s, error: %v", modelName, err)
			return model.WrapError(model.ErrRemoteCall, "llm.CompleteStream", err)
		}
		defer s.Close()

		for ok := hasNext; ok; ok = s.Next() {
			chunk := s.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if err := emit(chunk.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
		err = s.Err()
		c.metrics.ObserveRemoteCall("llm.stream", err, time.Since(start))
		if err != nil {
			log.Errorf("[LLMClient] 流式调用失败, model: %s, error: %v", modelName, err)
			return model.WrapError(model.ErrRemoteCall, "llm.CompleteStream", err)
		}
		return nil
	})
}

// chunkStream 是 SDK 流式响应中用到的部分。
type chunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// classify 把 4xx 响应（429 除外）标记为不可重试。
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return resilience.NonRetryable(err)
		}
	}
	return err
}
