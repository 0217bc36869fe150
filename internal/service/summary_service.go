package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/pipeline"
	"doc-rag-go/pkg/llm"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/stream"

	"golang.org/x/sync/errgroup"
)

// DefaultMapWorkers 是 map 阶段的默认并发上限。
const DefaultMapWorkers = 8

// DocumentLoader 按文件名读取已上传文档的文本。
type DocumentLoader interface {
	Load(ctx context.Context, fileName string) (string, error)
}

// SummaryService 对指定文档执行 map-reduce 摘要。
type SummaryService interface {
	Summarize(ctx context.Context, query string, documentNames []string) *stream.Stream
}

type summaryService struct {
	llm        llm.Client
	loader     DocumentLoader
	chunkWords int
	workers    int
	metrics    *metrics.Metrics
}

// NewSummaryService 创建一个新的 SummaryService 实例。
func NewSummaryService(llmClient llm.Client, loader DocumentLoader, chunkWords, workers int, m *metrics.Metrics) SummaryService {
	if chunkWords <= 0 {
		chunkWords = pipeline.SummaryChunkWords
	}
	if workers <= 0 {
		workers = DefaultMapWorkers
	}
	return &summaryService{llm: llmClient, loader: loader, chunkWords: chunkWords, workers: workers, metrics: m}
}

func (s *summaryService) Summarize(ctx context.Context, query string, documentNames []string) *stream.Stream {
	return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) error {
		chunks, err := s.loadChunks(ctx, documentNames)
		if err != nil {
			return err
		}
		s.metrics.ObserveMapPhase(len(chunks))

		analyses, err := s.mapChunks(ctx, query, chunks)
		if err != nil {
			log.Errorf("[SummaryService] map 阶段失败, 整个摘要请求失败: %v", err)
			return err
		}

		log.Infof("[SummaryService] reduce 阶段开始, 共 %d 份分块摘要", len(analyses))
		emitted := 0
		reduced := s.llm.CompleteStream(ctx, reduceSystemPrompt, reducePrompt(query, analyses))
		err = stream.Drain(reduced, func(text string) error {
			emitted++
			return emit(text)
		})
		if err != nil {
			return err
		}
		if emitted == 0 && len(analyses) == 0 {
			return emit(noDocumentsAnswer)
		}
		return nil
	})
}

// loadChunks 依次读取文档并切成大分块。不存在的文档被跳过，其余错误使请求失败。
func (s *summaryService) loadChunks(ctx context.Context, documentNames []string) ([]string, error) {
	var chunks []string
	for _, name := range documentNames {
		text, err := s.loader.Load(ctx, name)
		if errors.Is(err, model.ErrNotFound) {
			log.Warnf("[SummaryService] 文档不存在, 已跳过: %s", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("读取文档 %s 失败: %w", name, err)
		}
		parts := pipeline.Split(text, s.chunkWords)
		log.Infof("[SummaryService] 文档 %s 切分为 %d 个分块", name, len(parts))
		chunks = append(chunks, parts...)
	}
	return chunks, nil
}

// mapChunks 并发摘要每个分块，结果按完成顺序收集。任何一个分块失败则整体失败。
func (s *summaryService) mapChunks(ctx context.Context, query string, chunks []string) ([]string, error) {
	start := time.Now()
	analyses := make([]string, 0, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := s.llm.Complete(gctx, mapSystemPrompt, mapPrompt(query, chunk))
			if err != nil {
				return fmt.Errorf("分块 %d 摘要失败: %w", i, err)
			}
			mu.Lock()
			analyses = append(analyses, out)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Infof("[SummaryService] map 阶段完成, 分块数: %d, 并发上限: %d, 耗时: %s", len(chunks), s.workers, time.Since(start))
	return analyses, nil
}
