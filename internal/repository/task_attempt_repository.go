package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TaskAttemptRepository 在 Redis 中记录异步任务的失败次数。
type TaskAttemptRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewTaskAttemptRepository(redisClient *redis.Client) *TaskAttemptRepository {
	return &TaskAttemptRepository{redisClient: redisClient, ttl: 24 * time.Hour}
}

func (r *TaskAttemptRepository) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = r.redisClient.Expire(ctx, key, r.ttl).Err()
	return n, nil
}

func (r *TaskAttemptRepository) Reset(ctx context.Context, key string) error {
	return r.redisClient.Del(ctx, key).Err()
}
