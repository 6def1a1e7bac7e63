package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// SyncResult: ответ сервиса прав. Success=false — окончательный отказ, не ошибка транспорта.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type syncRequest struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// PermissionClient: HTTP-клиент внешнего сервиса синхронизации прав на заявку.
// Вызов идемпотентен: повтор для того же статуса безопасен.
type PermissionClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewPermissionClient(baseURL, token string, client *http.Client) *PermissionClient {
	if client == nil {
		client = &http.Client{}
	}
	return &PermissionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (c *PermissionClient) SyncPermissions(ctx context.Context, requestID string, status domain.RequestStatus) (SyncResult, error) {
	body, err := json.Marshal(syncRequest{RequestID: requestID, Status: string(status)})
	if err != nil {
		return SyncResult{}, fmt.Errorf("permissions: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/requests/%s/permissions/sync", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SyncResult{}, fmt.Errorf("permissions: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", requestID+":"+string(status))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return SyncResult{}, fmt.Errorf("permissions: call: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return SyncResult{}, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      &StatusError{Code: resp.StatusCode, Body: string(payload)},
		}
	case resp.StatusCode >= 300:
		return SyncResult{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var result SyncResult
	if len(bytes.TrimSpace(payload)) == 0 {
		return SyncResult{Success: true}, nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return SyncResult{}, fmt.Errorf("permissions: decode response: %w", err)
	}
	return result, nil
}

// parseRetryAfter понимает секунды и HTTP-дату; по умолчанию — 1 секунда.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return time.Second
}
