package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/hours"
)

// DirectoryRepo: пользователи, каталог ролей и настройки рабочего времени.
type DirectoryRepo struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepo(pool *pgxpool.Pool) *DirectoryRepo {
	return &DirectoryRepo{pool: pool}
}

// GetUserByUsername возвращает nil без ошибки, если пользователя нет.
func (r *DirectoryRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT u.id, u.email, u.username, u.display_name, u.password_hash,
			COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}'),
			u.created_at, u.updated_at
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		WHERE u.username = $1
		GROUP BY u.id`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUserRoles: текущие роли пользователя из каталога.
func (r *DirectoryRepo) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load roles: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// GetWorkingHours читает настройки рабочего окна. found=false — строки в БД еще нет.
func (r *DirectoryRepo) GetWorkingHours(ctx context.Context) (s hours.Settings, found bool, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT start_hour, end_hour, working_days, timezone FROM workflow_settings WHERE id = 1`,
	).Scan(&s.StartHour, &s.EndHour, &s.WorkingDays, &s.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return hours.Settings{}, false, nil
		}
		return hours.Settings{}, false, fmt.Errorf("postgres: failed to load working hours: %w", err)
	}
	return s, true, nil
}

// UpdateWorkingHours сохраняет настройки (upsert единственной строки).
func (r *DirectoryRepo) UpdateWorkingHours(ctx context.Context, s hours.Settings, updatedBy string) error {
	query := `
		INSERT INTO workflow_settings (id, start_hour, end_hour, working_days, timezone, updated_by, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			working_days = EXCLUDED.working_days,
			timezone = EXCLUDED.timezone,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, s.StartHour, s.EndHour, s.WorkingDays, s.Timezone, updatedBy)
	if err != nil {
		return fmt.Errorf("postgres: failed to update working hours: %w", err)
	}
	return nil
}
