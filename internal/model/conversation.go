// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat 代表一个会话，创建后除删除外不再修改。
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message 代表会话中的一条消息，总是以 (user, assistant) 成对写入。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"index;not null" json:"chatId"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"` // "user" 或 "assistant"
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// ChatMessage 是返回给调用方以及缓存在 Redis 中的消息视图。
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp LocalTime `json:"timestamp"`
}

// ChatSummary 是会话列表中的单项。
type ChatSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Timestamp LocalTime `json:"timestamp"`
}
