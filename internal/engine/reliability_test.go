package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/review-workflow/internal/connectors"
	"github.com/xela07ax/review-workflow/internal/domain"
)

// scriptedSyncer возвращает ошибки из очереди, затем успех.
type scriptedSyncer struct {
	errs  []error
	calls int
}

func (s *scriptedSyncer) SyncPermissions(_ context.Context, _ string, _ domain.RequestStatus) (connectors.SyncResult, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return connectors.SyncResult{}, err
	}
	return connectors.SyncResult{Success: true}, nil
}

func fastPolicy(attempts uint) RetryPolicy {
	return RetryPolicy{
		Attempts:  attempts,
		Backoff:   func(uint) time.Duration { return time.Millisecond },
		Retryable: connectors.IsRetryable,
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "client error is not retried",
			errs:      []error{&connectors.StatusError{Code: 400}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "server error is retried until attempts run out",
			errs:      []error{&connectors.StatusError{Code: 502}, &connectors.StatusError{Code: 503}, &connectors.StatusError{Code: 500}},
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name:      "throttle then success",
			errs:      []error{&connectors.ThrottleError{RetryAfter: time.Millisecond}},
			wantCalls: 2,
		},
		{
			name:      "deadline exceeded is retried",
			errs:      []error{context.DeadlineExceeded},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSyncer{errs: tt.errs}
			err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
				_, err := s.SyncPermissions(ctx, "r-1", domain.StatusInReview)
				return err
			})

			require.Equal(t, tt.wantCalls, s.calls)
			if tt.wantErr {
				require.Error(t, err)
				var se *connectors.StatusError
				require.True(t, errors.As(err, &se))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReliablePermissionSyncer_BreakerOpens(t *testing.T) {
	s := &scriptedSyncer{errs: []error{
		&connectors.StatusError{Code: 500},
		&connectors.StatusError{Code: 500},
	}}
	metrics := NewMetrics(nil)
	rs := NewReliablePermissionSyncer(s, ReliabilityConfig{
		Retry:              fastPolicy(1),
		CBFailureThreshold: 2,
		CBTimeout:          time.Minute,
	}, metrics)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := rs.SyncPermissions(ctx, "r-1", domain.StatusInReview)
		require.Error(t, err)
	}

	_, err := rs.SyncPermissions(ctx, "r-1", domain.StatusInReview)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 2, s.calls, "open breaker must not reach the service")
}

func TestReliablePermissionSyncer_Success(t *testing.T) {
	s := &scriptedSyncer{errs: []error{&connectors.StatusError{Code: 503}}}
	rs := NewReliablePermissionSyncer(s, ReliabilityConfig{Retry: fastPolicy(3), RateLimit: 100, RateBurst: 10}, nil)

	res, err := rs.SyncPermissions(context.Background(), "r-1", domain.StatusCloseout)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, s.calls)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, time.Second)
	require.Equal(t, 100*time.Millisecond, b(0))
	require.Equal(t, 200*time.Millisecond, b(1))
	require.Equal(t, 800*time.Millisecond, b(3))
	require.Equal(t, time.Second, b(10))
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		payload   string
		wantKey   string
		wantValue string
		wantOK    bool
	}{
		{"req-1:InReview", "req-1", "InReview", true},
		{"working_hours:", "working_hours", "", true},
		{"settings:tz:Europe/Moscow", "settings", "tz:Europe/Moscow", true},
		{"no-separator", "", "", false},
		{":value", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			key, value, ok := parseSignal(tt.payload)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantKey, key)
			require.Equal(t, tt.wantValue, value)
		})
	}
}
