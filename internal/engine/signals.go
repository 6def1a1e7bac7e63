package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/infra"
)

// StatusPublisher транслирует смену статуса заявки другим сервисам.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, requestID string, status domain.RequestStatus) error
}

// IdempotencyGuard обеспечивает "не более одного раза" для действия с ключом клиента.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisStatusPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisStatusPublisher(rdb *redis.Client) *RedisStatusPublisher {
	return &RedisStatusPublisher{rdb: rdb, channel: infra.RedisChanRequestStatus}
}

func (p *RedisStatusPublisher) PublishStatus(ctx context.Context, requestID string, status domain.RequestStatus) error {
	payload := fmt.Sprintf("%s:%s", requestID, status)
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish status signal: %w", err)
	}
	return nil
}

// RedisIdempotencyGuard: SETNX с TTL: ключ занят — действие уже выполнялось.
type RedisIdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyGuard(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisIdempotencyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency acquire: %w", err)
	}
	return ok, nil
}

// Release освобождает ключ, если действие не дошло до записи.
func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, key).Err()
}
