package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/review-workflow/internal/connectors"
	"github.com/xela07ax/review-workflow/internal/domain"
)

// RetryPolicy: комбинатор повторов: число попыток, функция задержки,
// предикат "повторяемой" ошибки и таймаут на одну попытку.
type RetryPolicy struct {
	Attempts       uint
	Backoff        func(attempt uint) time.Duration
	Retryable      func(err error) bool
	AttemptTimeout time.Duration
}

// ExponentialBackoff: initial, 2*initial, 4*initial ... не больше max.
func ExponentialBackoff(initial, max time.Duration) func(uint) time.Duration {
	return func(attempt uint) time.Duration {
		d := initial
		for i := uint(0); i < attempt && d < max; i++ {
			d *= 2
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// DefaultRetryPolicy: 3 попытки, 200мс..2с, повтор только сетевых ошибок, 5xx и 429.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		Backoff:        ExponentialBackoff(200*time.Millisecond, 2*time.Second),
		Retryable:      connectors.IsRetryable,
		AttemptTimeout: 5 * time.Second,
	}
}

// Do выполняет fn с повторами. Таймаут действует на каждую попытку отдельно.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = connectors.IsRetryable
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = func(uint) time.Duration { return 0 }
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
			// Сервис сам сказал, когда приходить (Retry-After)
			var tErr *connectors.ThrottleError
			if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
				return tErr.RetryAfter
			}
			return backoff(n)
		}),
	)

	return r.Do(func() error {
		if p.AttemptTimeout <= 0 {
			return fn(ctx)
		}
		aCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
		return fn(aCtx)
	})
}

// PermissionSyncer: контракт синхронизации прав на заявку с внешним сервисом.
type PermissionSyncer interface {
	SyncPermissions(ctx context.Context, requestID string, status domain.RequestStatus) (connectors.SyncResult, error)
}

// ReliabilityConfig: настройки обвязки вызова синхронизации прав.
type ReliabilityConfig struct {
	Retry RetryPolicy

	RateLimit float64 // запросов в секунду; 0 — без ограничения
	RateBurst int

	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32
}

// ReliablePermissionSyncer оборачивает синхронизацию: Rate Limit -> Circuit Breaker -> Retry.
type ReliablePermissionSyncer struct {
	next    PermissionSyncer
	policy  RetryPolicy
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliablePermissionSyncer(next PermissionSyncer, cfg ReliabilityConfig, metrics *Metrics) *ReliablePermissionSyncer {
	if cfg.CBFailureThreshold == 0 {
		cfg.CBFailureThreshold = 5
	}
	if cfg.CBMaxRequests == 0 {
		cfg.CBMaxRequests = 3
	}
	if cfg.CBTimeout == 0 {
		cfg.CBTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "permission-sync",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CBFailureThreshold
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if metrics == nil {
				return
			}
			v := 0.0
			if to != gobreaker.StateClosed {
				v = 1
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &ReliablePermissionSyncer{
		next:    next,
		policy:  cfg.Retry,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (s *ReliablePermissionSyncer) SyncPermissions(ctx context.Context, requestID string, status domain.RequestStatus) (connectors.SyncResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return connectors.SyncResult{}, fmt.Errorf("rate limit exceeded: %w", err)
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		var result connectors.SyncResult
		err := s.policy.Do(ctx, func(aCtx context.Context) error {
			var callErr error
			result, callErr = s.next.SyncPermissions(aCtx, requestID, status)
			return callErr
		})
		return result, err
	})
	if err != nil {
		return connectors.SyncResult{}, err
	}
	return res.(connectors.SyncResult), nil
}
