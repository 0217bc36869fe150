package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

var (
	errCacheMiss    = errors.New("cache miss")
	errStaleVersion = errors.New("cache version changed")
)

// messageCache 按会话缓存消息列表。每个会话带一个版本号，写入消息时递增，
// 只有版本号与读库前一致时才回填缓存，避免把写入前读到的旧列表放回缓存。
type messageCache interface {
	Load(ctx context.Context, chatID uint) ([]byte, error)
	Version(ctx context.Context, chatID uint) (int64, error)
	StoreIfVersion(ctx context.Context, chatID uint, version int64, data []byte) error
	Invalidate(ctx context.Context, chatID uint) error
}

// cachedChatRepository 在 Redis 中缓存会话消息列表，写入和删除时失效。
// Redis 不可用时直接回退到底层仓储。
type cachedChatRepository struct {
	ChatRepository
	cache messageCache
}

// NewCachedChatRepository 为 inner 加上 Redis 读缓存。redisClient 为 nil 时返回 inner。
func NewCachedChatRepository(inner ChatRepository, redisClient *redis.Client, ttl time.Duration) ChatRepository {
	if redisClient == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	versionTTL := 24 * time.Hour
	if versionTTL < 2*ttl {
		versionTTL = 2 * ttl
	}
	return &cachedChatRepository{
		ChatRepository: inner,
		cache:          &redisMessageCache{client: redisClient, ttl: ttl, versionTTL: versionTTL},
	}
}

func (r *cachedChatRepository) GetMessages(ctx context.Context, chatID uint) ([]model.Message, error) {
	data, err := r.cache.Load(ctx, chatID)
	if err == nil {
		var messages []model.Message
		if err := json.Unmarshal(data, &messages); err == nil {
			return messages, nil
		}
		log.Warnf("[ChatCache] 缓存内容无法解析, chat: %d", chatID)
	} else if !errors.Is(err, errCacheMiss) {
		log.Warnf("[ChatCache] 读取缓存失败, chat: %d, error: %v", chatID, err)
	}

	// 版本号必须在读库之前取得
	version, versionErr := r.cache.Version(ctx, chatID)
	messages, err := r.ChatRepository.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if versionErr != nil {
		return messages, nil
	}
	if data, err := json.Marshal(messages); err == nil {
		err = r.cache.StoreIfVersion(ctx, chatID, version, data)
		switch {
		case errors.Is(err, errStaleVersion):
			log.Debugf("[ChatCache] 读库期间会话有写入，跳过回填, chat: %d", chatID)
		case err != nil:
			log.Warnf("[ChatCache] 写入缓存失败, chat: %d, error: %v", chatID, err)
		}
	}
	return messages, nil
}

func (r *cachedChatRepository) AppendExchange(ctx context.Context, chatID uint, userText, assistantText string) error {
	if err := r.ChatRepository.AppendExchange(ctx, chatID, userText, assistantText); err != nil {
		return err
	}
	r.invalidate(ctx, chatID)
	return nil
}

func (r *cachedChatRepository) DeleteChat(ctx context.Context, chatID uint) error {
	if err := r.ChatRepository.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	r.invalidate(ctx, chatID)
	return nil
}

func (r *cachedChatRepository) invalidate(ctx context.Context, chatID uint) {
	if err := r.cache.Invalidate(ctx, chatID); err != nil {
		log.Warnf("[ChatCache] 清理缓存失败, chat: %d, error: %v", chatID, err)
	}
}

type redisMessageCache struct {
	client *redis.Client
	ttl    time.Duration
	// versionTTL 长于 ttl，否则版本号过期归零后旧的回填可能通过校验。
	versionTTL time.Duration
}

func messagesKey(chatID uint) string {
	return fmt.Sprintf("chat:%d:messages", chatID)
}

func versionKey(chatID uint) string {
	return fmt.Sprintf("chat:%d:version", chatID)
}

func (c *redisMessageCache) Load(ctx context.Context, chatID uint) ([]byte, error) {
	data, err := c.client.Get(ctx, messagesKey(chatID)).Bytes()
	if err == redis.Nil {
		return nil, errCacheMiss
	}
	return data, err
}

func (c *redisMessageCache) Version(ctx context.Context, chatID uint) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(chatID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// StoreIfVersion 用 WATCH 事务保证校验版本号与写入缓存之间没有并发的失效。
func (c *redisMessageCache) StoreIfVersion(ctx context.Context, chatID uint, version int64, data []byte) error {
	vk := versionKey(chatID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vk).Int64()
		if err == redis.Nil {
			current = 0
		} else if err != nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, messagesKey(chatID), data, c.ttl)
			return nil
		})
		return err
	}, vk)
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleVersion
	}
	return err
}

func (c *redisMessageCache) Invalidate(ctx context.Context, chatID uint) error {
	vk := versionKey(chatID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vk)
		pipe.Expire(ctx, vk, c.versionTTL)
		pipe.Del(ctx, messagesKey(chatID))
		return nil
	})
	return err
}
