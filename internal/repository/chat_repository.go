// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-rag-go/internal/model"

	"gorm.io/gorm"
)

// ChatRepository 定义了会话与消息的持久化操作。
type ChatRepository interface {
	// CreateChat 创建名为 "Chat N" 的会话，N 为已有会话数加一。
	CreateChat(ctx context.Context) (*model.Chat, error)
	GetChat(ctx context.Context, chatID uint) (*model.Chat, error)
	// ListChats 按创建时间倒序返回所有会话。
	ListChats(ctx context.Context) ([]model.Chat, error)
	// GetMessages 按创建时间正序返回会话的消息。
	GetMessages(ctx context.Context, chatID uint) ([]model.Message, error)
	// AppendExchange 在同一事务中写入一条 user 消息和一条 assistant 消息。
	AppendExchange(ctx context.Context, chatID uint, userText, assistantText string) error
	// DeleteChat 在同一事务中删除会话及其全部消息。
	DeleteChat(ctx context.Context, chatID uint) error
}

type chatRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db, now: time.Now}
}

func (r *chatRepository) CreateChat(ctx context.Context) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Chat{}).Count(&count).Error; err != nil {
			return err
		}
		chat = model.Chat{Name: fmt.Sprintf("Chat %d", count+1), CreatedAt: r.now()}
		return tx.Create(&chat).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &chat, nil
}

func (r *chatRepository) GetChat(ctx context.Context, chatID uint) (*model.Chat, error) {
	return findChat(r.db.WithContext(ctx), chatID)
}

func findChat(db *gorm.DB, chatID uint) (*model.Chat, error) {
	var chat model.Chat
	err := db.First(&chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.WrapError(model.ErrNotFound, "chat", fmt.Errorf("id %d", chatID))
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) ListChats(ctx context.Context) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&chats).Error
	return chats, err
}

func (r *chatRepository) GetMessages(ctx context.Context, chatID uint) ([]model.Message, error) {
	db := r.db.WithContext(ctx)
	if _, err := findChat(db, chatID); err != nil {
		return nil, err
	}
	var messages []model.Message
	err := db.Where("chat_id = ?", chatID).Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

func (r *chatRepository) AppendExchange(ctx context.Context, chatID uint, userText, assistantText string) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findChat(tx, chatID); err != nil {
			return err
		}
		user := model.Message{ChatID: chatID, Role: model.RoleUser, Content: userText, CreatedAt: now}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}
		assistant := model.Message{ChatID: chatID, Role: model.RoleAssistant, Content: assistantText, CreatedAt: now}
		if err := tx.Create(&assistant).Error; err != nil {
			return fmt.Errorf("failed to save assistant message: %w", err)
		}
		return nil
	})
}

func (r *chatRepository) DeleteChat(ctx context.Context, chatID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Chat{}, chatID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.WrapError(model.ErrNotFound, "chat", fmt.Errorf("id %d", chatID))
		}
		return tx.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error
	})
}
