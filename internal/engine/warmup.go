package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WarmupCaches прогревает read-through кэши (L1 и L2) при старте.
// Распределенная блокировка (SetNX) гарантирует, что базу ради прогрева
// нагружает только один инстанс; остальные заполнят L1 из Redis лениво.
func WarmupCaches(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	lockKey string,
	keys []string,
	warm func(ctx context.Context, key string) error, // обычно cache.Get
) error {
	if rdb != nil {
		ok, err := rdb.SetNX(ctx, lockKey, "processing", 30*time.Second).Result()
		if err != nil || !ok {
			logger.Info("cache warm-up skipped", zap.String("lock", lockKey), zap.Bool("lock_busy", err == nil))
			return nil
		}
	}

	logger.Info("warming up caches", zap.String("lock", lockKey), zap.Int("count", len(keys)))

	failed := 0
	for _, key := range keys {
		if err := warm(ctx, key); err != nil {
			failed++
			logger.Warn("cache warm-up failed for key", zap.String("key", key), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("cache warm-up: %d of %d keys failed", failed, len(keys))
	}
	return nil
}
