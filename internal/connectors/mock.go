package connectors

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// SimulatedPermissionService: заглушка сервиса прав для локального запуска
// (permission_sync.base_url не задан). Запоминает последний статус по заявке.
type SimulatedPermissionService struct {
	mu     sync.Mutex
	synced map[string]domain.RequestStatus
}

func NewSimulatedPermissionService() *SimulatedPermissionService {
	return &SimulatedPermissionService{synced: make(map[string]domain.RequestStatus)}
}

func (s *SimulatedPermissionService) SyncPermissions(ctx context.Context, requestID string, status domain.RequestStatus) (SyncResult, error) {
	// Имитируем задержку 5-30мс
	latency := time.Duration(5+rand.IntN(25)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}

	s.mu.Lock()
	s.synced[requestID] = status
	s.mu.Unlock()

	return SyncResult{Success: true, Message: "simulated"}, nil
}

// Synced: последний синхронизированный статус.
func (s *SimulatedPermissionService) Synced(requestID string) (domain.RequestStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.synced[requestID]
	return st, ok
}
