package cache

/*
ReadThrough: явно передаваемый кэш со сроком жизни записей.

- L1: память процесса, проверка TTL по инжектируемым часам.
- L2 (опционально): Redis, значения в JSON с тем же TTL.
- Single-flight: одновременные промахи по одному ключу вызывают загрузчик один раз.
- Ошибки Redis не блокируют чтение: логируем и идем в загрузчик.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader: источник истины для промаха.
type Loader[T any] func(ctx context.Context, key string) (T, error)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type ReadThrough[T any] struct {
	name   string
	ttl    time.Duration
	load   Loader[T]
	rdb    redis.UniversalClient
	now    func() time.Time
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry[T]
	group   singleflight.Group
}

type config struct {
	rdb    redis.UniversalClient
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*config)

// WithRedis включает L2-уровень.
func WithRedis(rdb redis.UniversalClient) Option {
	return func(c *config) { c.rdb = rdb }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func New[T any](name string, ttl time.Duration, load Loader[T], opts ...Option) *ReadThrough[T] {
	cfg := config{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ReadThrough[T]{
		name:    name,
		ttl:     ttl,
		load:    load,
		rdb:     cfg.rdb,
		now:     cfg.now,
		logger:  cfg.logger.Named("cache").With(zap.String("cache", name)),
		entries: make(map[string]entry[T]),
	}
}

func (c *ReadThrough[T]) Name() string {
	return c.name
}

func (c *ReadThrough[T]) Get(ctx context.Context, key string) (T, error) {
	if v, ok := c.fromL1(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Повторная проверка: пока ждали, значение мог положить другой вызов
		if v, ok := c.fromL1(key); ok {
			return v, nil
		}
		if v, ok := c.fromL2(ctx, key); ok {
			c.storeL1(key, v)
			return v, nil
		}

		v, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.storeL1(key, v)
		c.storeL2(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("cache %s: load %q: %w", c.name, key, err)
	}
	return res.(T), nil
}

// Invalidate удаляет ключ из обоих уровней.
func (c *ReadThrough[T]) Invalidate(ctx context.Context, key string) {
	c.InvalidateLocal(key)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.redisKey(key)).Err(); err != nil {
		c.logger.Warn("failed to invalidate L2 entry", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateLocal: только L1; используется по сигналу от другого инстанса.
// Пустой ключ очищает весь L1.
func (c *ReadThrough[T]) InvalidateLocal(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		c.entries = make(map[string]entry[T])
		return
	}
	delete(c.entries, key)
}

func (c *ReadThrough[T]) fromL1(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *ReadThrough[T]) storeL1(key string, v T) {
	c.mu.Lock()
	c.entries[key] = entry[T]{value: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *ReadThrough[T]) fromL2(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.rdb == nil {
		return zero, false
	}

	raw, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("L2 read failed, falling back to loader", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("L2 entry is corrupted", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (c *ReadThrough[T]) storeL2(ctx context.Context, key string, v T) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("L2 encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("L2 write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *ReadThrough[T]) redisKey(key string) string {
	return fmt.Sprintf("review:cache:%s:%s", c.name, key)
}
