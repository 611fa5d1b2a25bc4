package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store on Redis strings using WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix (default: "ledger:")
	Logger   *zap.Logger
}

// NewRedisStore connects to Redis.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ledger:"
	}

	cfg.Logger.Info("redis-state-store-connected",
		zap.String("addr", cfg.Addr),
		zap.String("prefix", prefix))

	return &RedisStore{client: client, prefix: prefix, logger: cfg.Logger}, nil
}

// Get returns the committed value of key.
func (r *RedisStore) Get(ctx context.Context, key string) (*big.Int, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return parseValue(raw)
}

// Commit watches every key of the write set, verifies the expected values and
// applies the changed ones in a MULTI block. A concurrent modification of any
// watched key aborts the block and yields ErrConflict.
func (r *RedisStore) Commit(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = r.prefix + w.Key
	}

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("mget ledger entries: %w", err)
		}

		for i, w := range writes {
			current := new(big.Int)
			if s, ok := values[i].(string); ok {
				current, err = parseValue(s)
				if err != nil {
					return err
				}
			}
			if current.Cmp(valueOf(w.Prev)) != 0 {
				return ErrConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range writes {
				if !w.Changed() {
					continue
				}
				next := valueOf(w.Next)
				if next.Sign() == 0 {
					pipe.Del(ctx, keys[i])
					continue
				}
				pipe.Set(ctx, keys[i], next.String(), 0)
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		r.logger.Debug("ledger-commit-conflict", zap.Int("keys", len(keys)))
		return ErrConflict
	}
	return err
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	r.logger.Info("closing-redis-state-store")
	return r.client.Close()
}
