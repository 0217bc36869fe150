package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/llm"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/stream"
)

// DefaultContextMaxChars 是上下文块的默认字符上限。
const DefaultContextMaxChars = 12000

// AnswerService 提供基于上下文回答和直接回答两条流式路径。
type AnswerService interface {
	// AnswerWithContext 检索 top_k 个分块后只依据这些内容回答。
	AnswerWithContext(ctx context.Context, query string) *stream.Stream
	// AnswerDirectly 不做检索，直接生成回复。
	AnswerDirectly(ctx context.Context, query string) *stream.Stream
}

type answerService struct {
	llm             llm.Client
	retriever       RetrievalService
	topK            int
	contextMaxChars int
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client, retriever RetrievalService, topK, contextMaxChars int) AnswerService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if contextMaxChars <= 0 {
		contextMaxChars = DefaultContextMaxChars
	}
	return &answerService{llm: llmClient, retriever: retriever, topK: topK, contextMaxChars: contextMaxChars}
}

func (s *answerService) AnswerWithContext(ctx context.Context, query string) *stream.Stream {
	return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) error {
		results, err := s.retriever.HybridRetrieve(ctx, query, s.topK)
		if err != nil {
			return err
		}
		contextText := buildContextText(results, s.contextMaxChars)
		log.Infof("[AnswerService] 上下文构建完成, 分块数: %d, 长度: %d", len(results), utf8.RuneCountInString(contextText))
		return stream.Drain(s.llm.CompleteStream(ctx, contextSystemPrompt, contextPrompt(query, contextText)), emit)
	})
}

func (s *answerService) AnswerDirectly(ctx context.Context, query string) *stream.Stream {
	return s.llm.CompleteStream(ctx, simpleSystemPrompt, simplePrompt(query))
}

// buildContextText 按检索顺序拼接分块，总长度不超过 maxChars 个字符。
func buildContextText(results []model.ScoredChunk, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	remaining := maxChars
	for i, r := range results {
		entry := fmt.Sprintf("[%d] (%s) %s\n", i+1, r.Chunk.Source, r.Chunk.Text)
		n := utf8.RuneCountInString(entry)
		if n > remaining {
			if remaining > 0 {
				b.WriteString(string([]rune(entry)[:remaining]))
			}
			break
		}
		b.WriteString(entry)
		remaining -= n
	}
	return b.String()
}
