package service

import (
	"context"

	"doc-rag-go/internal/model"
	"doc-rag-go/internal/repository"
	"doc-rag-go/pkg/log"
)

// ConversationService 定义了会话管理的接口。
type ConversationService interface {
	CreateChat(ctx context.Context) (*model.ChatSummary, error)
	ListChats(ctx context.Context) ([]model.ChatSummary, error)
	GetMessages(ctx context.Context, chatID uint) ([]model.ChatMessage, error)
	DeleteChat(ctx context.Context, chatID uint) error
}

type conversationService struct {
	repo repository.ChatRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ChatRepository) ConversationService {
	return &conversationService{repo: repo}
}

func (s *conversationService) CreateChat(ctx context.Context) (*model.ChatSummary, error) {
	chat, err := s.repo.CreateChat(ctx)
	if err != nil {
		log.Errorf("[ConversationService] 创建会话失败: %v", err)
		return nil, err
	}
	log.Infof("[ConversationService] 会话已创建, id: %d, name: %s", chat.ID, chat.Name)
	summary := toSummary(*chat)
	return &summary, nil
}

// ListChats 按创建时间倒序返回所有会话。
func (s *conversationService) ListChats(ctx context.Context) ([]model.ChatSummary, error) {
	chats, err := s.repo.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, toSummary(c))
	}
	return out, nil
}

// GetMessages 按时间正序返回会话消息，会话不存在时返回 ErrNotFound。
func (s *conversationService) GetMessages(ctx context.Context, chatID uint) ([]model.ChatMessage, error) {
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, model.ChatMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: model.LocalTime(m.CreatedAt),
		})
	}
	return out, nil
}

func (s *conversationService) DeleteChat(ctx context.Context, chatID uint) error {
	if err := s.repo.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	log.Infof("[ConversationService] 会话已删除, id: %d", chatID)
	return nil
}

func toSummary(c model.Chat) model.ChatSummary {
	return model.ChatSummary{ID: c.ID, Name: c.Name, Timestamp: model.LocalTime(c.CreatedAt)}
}
