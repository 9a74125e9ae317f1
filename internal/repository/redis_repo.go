package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTaskRepository keeps the task list under a single Redis key.
type RedisTaskRepository struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger
}

func NewRedisTaskRepository(rdb *redis.Client, key string, logger *zap.Logger) *RedisTaskRepository {
	return &RedisTaskRepository{
		rdb:    rdb,
		key:    key,
		logger: logger,
	}
}

func (r *RedisTaskRepository) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		r.logger.Error("Failed to load task blob from redis",
			zap.String("key", r.key),
			zap.Error(err),
		)
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisTaskRepository) Save(ctx context.Context, data []byte) error {
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		r.logger.Error("Failed to save task blob to redis",
			zap.String("key", r.key),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *RedisTaskRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
