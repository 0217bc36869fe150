package service

import (
	"context"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/llm"
	"doc-rag-go/pkg/log"
)

// RouterService 把查询分类到某一条执行路径。
type RouterService interface {
	// Classify 只发起一次非流式调用。无法识别的回复返回 IntentUnrecognized 而不是错误。
	Classify(ctx context.Context, query string) (model.Intent, error)
}

type routerService struct {
	llm llm.Client
}

// NewRouterService 创建一个新的 RouterService 实例。
func NewRouterService(llmClient llm.Client) RouterService {
	return &routerService{llm: llmClient}
}

func (s *routerService) Classify(ctx context.Context, query string) (model.Intent, error) {
	reply, err := s.llm.Complete(ctx, routerSystemPrompt, routerPrompt(query))
	if err != nil {
		return model.IntentUnrecognized, err
	}
	intent := model.ParseIntent(reply)
	if intent == model.IntentUnrecognized {
		log.Warnw("[RouterService] 无法识别的路由回复", "reply", reply, "error", model.ErrUnrecognizedIntent)
	} else {
		log.Infof("[RouterService] 查询被路由到 %s", intent)
	}
	return intent, nil
}
