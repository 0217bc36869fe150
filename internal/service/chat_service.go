// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doc-rag-go/internal/config"
	"doc-rag-go/internal/metrics"
	"doc-rag-go/internal/model"
	"doc-rag-go/internal/repository"
	"doc-rag-go/pkg/log"
	"doc-rag-go/pkg/stream"
)

// ChatService 负责一次查询的完整生命周期：路由、执行、聚合、持久化。
type ChatService interface {
	// RouteAndExecute 返回只能消费一次的回复流。
	// 流被完整消费后才持久化本轮问答，然后发送 Done；任何失败都以 Error 事件结束且不持久化。
	RouteAndExecute(ctx context.Context, chatID uint, query string, documentNames []string) (*stream.Stream, error)
	// Run 消费整个流并返回最终回复。
	Run(ctx context.Context, chatID uint, query string, documentNames []string) (string, error)
}

type chatService struct {
	router    RouterService
	summaries SummaryService
	answers   AnswerService
	chats     repository.ChatRepository
	settings  *config.ModelSettings
	metrics   *metrics.Metrics
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	router RouterService,
	summaries SummaryService,
	answers AnswerService,
	chats repository.ChatRepository,
	settings *config.ModelSettings,
	m *metrics.Metrics,
) ChatService {
	return &chatService{
		router:    router,
		summaries: summaries,
		answers:   answers,
		chats:     chats,
		settings:  settings,
		metrics:   m,
	}
}

func (s *chatService) RouteAndExecute(ctx context.Context, chatID uint, query string, documentNames []string) (*stream.Stream, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.WrapError(model.ErrInvalidInput, "chat", errors.New("query is empty"))
	}
	if !s.settings.HasCredential() {
		return nil, model.WrapError(model.ErrConfiguration, "chat", errors.New("no API key configured"))
	}
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	qc := &model.QueryContext{
		ChatID:        chatID,
		Query:         query,
		DocumentNames: documentNames,
		State:         model.StateRouting,
	}
	log.Infof("[ChatService] 收到查询, chatID: %d, query: '%s', 文档数: %d", chatID, query, len(documentNames))

	return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) error {
		start := time.Now()
		err := s.execute(ctx, qc, emit)
		if err != nil {
			s.transition(qc, model.StateFailed)
			log.Errorf("[ChatService] 查询失败, chatID: %d, intent: %s, error: %v", chatID, qc.Intent, err)
		}
		s.metrics.ObserveChat(qc.Intent.String(), qc.State.String(), time.Since(start))
		return err
	}), nil
}

func (s *chatService) execute(ctx context.Context, qc *model.QueryContext, emit stream.EmitFunc) error {
	intent, err := s.router.Classify(ctx, qc.Query)
	if err != nil {
		return err
	}
	qc.Intent = intent
	s.metrics.ObserveIntent(intent.String())

	s.transition(qc, model.StateExecuting)
	var out *stream.Stream
	switch intent {
	case model.IntentSummary:
		out = s.summaries.Summarize(ctx, qc.Query, qc.DocumentNames)
	case model.IntentContextual:
		out = s.answers.AnswerWithContext(ctx, qc.Query)
	case model.IntentSimple:
		out = s.answers.AnswerDirectly(ctx, qc.Query)
	default:
		out = stream.FromText(ctx, model.FallbackAnswer)
	}

	s.transition(qc, model.StateAggregating)
	var answer strings.Builder
	err = stream.Drain(out, func(text string) error {
		answer.WriteString(text)
		return emit(text)
	})
	if err != nil {
		return err
	}

	if err := s.chats.AppendExchange(ctx, qc.ChatID, qc.Query, answer.String()); err != nil {
		return fmt.Errorf("保存对话失败: %w", err)
	}
	s.transition(qc, model.StatePersisted)
	log.Infof("[ChatService] 对话已保存, chatID: %d, 回复长度: %d", qc.ChatID, answer.Len())
	return nil
}

func (s *chatService) transition(qc *model.QueryContext, next model.ExecutionState) {
	if qc.State.Terminal() {
		return
	}
	log.Debugf("[ChatService] chatID: %d, 状态 %s -> %s", qc.ChatID, qc.State, next)
	qc.State = next
}

func (s *chatService) Run(ctx context.Context, chatID uint, query string, documentNames []string) (string, error) {
	out, err := s.RouteAndExecute(ctx, chatID, query, documentNames)
	if err != nil {
		return "", err
	}
	return stream.Collect(out)
}
