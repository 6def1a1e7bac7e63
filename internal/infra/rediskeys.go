package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "review"
)

// Ключи состояния
const (
	RedisKeyIdempotencyPrefix = RedisNamespace + ":idempotency:"
	RedisKeyLockCacheWarmup   = RedisNamespace + ":lock:warmup:cache"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRequestStatus: трансляция смены статуса заявки ("request_id:status").
	RedisChanRequestStatus = RedisNamespace + ":requests:status"
	// RedisChanCacheInvalidate: сброс read-through кэшей ("cache_name:key").
	RedisChanCacheInvalidate = RedisNamespace + ":cache:invalidate"
)

// IdempotencyKey Генератор ключа идемпотентности действия
func IdempotencyKey(action, requestID, clientKey string) string {
	return fmt.Sprintf("%s%s:%s:%s", RedisKeyIdempotencyPrefix, requestID, action, clientKey)
}

// GetWarmupLockKey Генератор ключей для блокировок прогрева
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
