package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/cache"
	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/hours"
	"github.com/xela07ax/review-workflow/internal/infra"
)

const (
	CacheRoles        = "roles"
	CacheWorkingHours = "working_hours"

	workingHoursKey = "default"
)

var ErrInvalidSettings = errors.New("invalid settings")

// DirectoryStore: каталог ролей и настройки рабочего времени.
type DirectoryStore interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	GetWorkingHours(ctx context.Context) (hours.Settings, bool, error)
	UpdateWorkingHours(ctx context.Context, s hours.Settings, updatedBy string) error
}

// DirectoryService отдает роли и рабочее окно через read-through кэши
// и рассылает сигнал сброса кэша другим инстансам при изменении настроек.
type DirectoryService struct {
	repo     DirectoryStore
	rdb      *redis.Client
	fallback hours.Settings
	logger   *zap.Logger

	roles    *cache.ReadThrough[domain.RoleSet]
	settings *cache.ReadThrough[hours.Settings]
}

// NewDirectoryService: rdb может быть nil (один инстанс, без L2 и сигналов).
// fallback: рабочее окно из конфига, пока в БД нет строки настроек.
func NewDirectoryService(repo DirectoryStore, rdb *redis.Client, ttl time.Duration, fallback hours.Settings, logger *zap.Logger) *DirectoryService {
	s := &DirectoryService{
		repo:     repo,
		rdb:      rdb,
		fallback: fallback,
		logger:   logger.Named("directory-service"),
	}

	opts := []cache.Option{cache.WithLogger(logger)}
	if rdb != nil {
		opts = append(opts, cache.WithRedis(rdb))
	}
	s.roles = cache.New(CacheRoles, ttl, s.loadRoles, opts...)
	s.settings = cache.New(CacheWorkingHours, ttl, s.loadWorkingHours, opts...)
	return s
}

func (s *DirectoryService) loadRoles(ctx context.Context, userID string) (domain.RoleSet, error) {
	names, err := s.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return 0, err
	}
	return domain.ParseRoleSet(names), nil
}

func (s *DirectoryService) loadWorkingHours(ctx context.Context, _ string) (hours.Settings, error) {
	st, found, err := s.repo.GetWorkingHours(ctx)
	if err != nil {
		return hours.Settings{}, err
	}
	if !found {
		return s.fallback, nil
	}
	return st, nil
}

// Roles реализует auth.RoleResolver.
func (s *DirectoryService) Roles(ctx context.Context, userID string) (domain.RoleSet, error) {
	return s.roles.Get(ctx, userID)
}

// WorkingHours реализует hours.Provider для учета времени.
func (s *DirectoryService) WorkingHours(ctx context.Context) (hours.WorkingHours, error) {
	st, err := s.settings.Get(ctx, workingHoursKey)
	if err != nil {
		return hours.WorkingHours{}, err
	}
	return st.Parse()
}

func (s *DirectoryService) WorkingHoursSettings(ctx context.Context) (hours.Settings, error) {
	return s.settings.Get(ctx, workingHoursKey)
}

// UpdateWorkingHours: сначала БД, затем сброс кэша и сигнал остальным инстансам.
// Сбой сигнала не откатывает запись: чужие L1 дождутся TTL.
func (s *DirectoryService) UpdateWorkingHours(ctx context.Context, st hours.Settings, actorID string) error {
	if _, err := st.Parse(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	// 1. Persistence Layer
	if err := s.repo.UpdateWorkingHours(ctx, st, actorID); err != nil {
		s.logger.Error("failed to update working hours in DB",
			zap.String("actor", actorID),
			zap.Error(err))
		return fmt.Errorf("update working hours: %w", err)
	}

	s.settings.Invalidate(ctx, workingHoursKey)

	// 2. Real-time Signaling
	if s.rdb != nil {
		payload := fmt.Sprintf("%s:%s", CacheWorkingHours, workingHoursKey)
		if err := s.rdb.Publish(ctx, infra.RedisChanCacheInvalidate, payload).Err(); err != nil {
			s.logger.Warn("runtime signal delivery failed",
				zap.String("channel", infra.RedisChanCacheInvalidate),
				zap.Error(err))
			return nil
		}
	}

	s.logger.Info("working hours updated",
		zap.String("actor", actorID),
		zap.Int("start_hour", st.StartHour),
		zap.Int("end_hour", st.EndHour),
		zap.Strings("working_days", st.WorkingDays),
		zap.String("timezone", st.Timezone))
	return nil
}

// HandleInvalidation: обработчик сигнала "cache_name:key" из Redis.
func (s *DirectoryService) HandleInvalidation(name, key string) {
	switch name {
	case CacheRoles:
		s.roles.InvalidateLocal(key)
	case CacheWorkingHours:
		s.settings.InvalidateLocal(key)
	default:
		s.logger.Warn("unknown cache in invalidation signal", zap.String("cache", name))
	}
}

// InvalidateAll сбрасывает L1 после переподключения: сигналы могли быть пропущены.
func (s *DirectoryService) InvalidateAll() error {
	s.roles.InvalidateLocal("")
	s.settings.InvalidateLocal("")
	return nil
}

// WarmUp: прогрев рабочего окна при старте.
func (s *DirectoryService) WarmUp(ctx context.Context, _ string) error {
	_, err := s.settings.Get(ctx, workingHoursKey)
	return err
}
