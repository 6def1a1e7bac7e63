package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/review-workflow/internal/audit"
)

// AuditLogProvider: чтение журнала действий по заявке.
type AuditLogProvider interface {
	FetchLogs(ctx context.Context, requestID string, limit int) ([]audit.Event, error)
}

type AuditService struct {
	repo AuditLogProvider
}

func NewAuditService(repo AuditLogProvider) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) FetchLogs(ctx context.Context, requestID string, limit int) ([]audit.Event, error) {
	logs, err := s.repo.FetchLogs(ctx, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	if logs == nil {
		logs = []audit.Event{}
	}
	return logs, nil
}
