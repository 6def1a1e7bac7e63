package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}

// StatusError: неуспешный HTTP-ответ удаленного сервиса.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Retryable: только серверные ошибки. 4xx означает ошибку конфигурации или прав.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// IsRetryable классифицирует ошибку вызова: сеть, 5xx и троттлинг — временные.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var tErr *ThrottleError
	if errors.As(err, &tErr) {
		return true
	}

	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.Retryable()
	}

	// Таймаут попытки — временная ошибка
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
