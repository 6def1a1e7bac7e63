package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/review-workflow/internal/audit"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Количество колонок в таблице audit_logs
const auditFields = 13

// WriteBatch вставляет пачку событий одним запросом.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	query, vals := buildAuditInsert(events)
	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// buildAuditInsert динамически строит плейсхолдеры для пакетной вставки.
func buildAuditInsert(events []audit.Event) (string, []any) {
	var sb strings.Builder
	vals := make([]any, 0, len(events)*auditFields)

	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 1; j <= auditFields; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*auditFields+j)
		}
		sb.WriteString(")")

		vals = append(vals,
			e.ID, e.TraceID, e.RequestID, e.Action, e.ActorID,
			e.FromStatus, e.ToStatus, e.ChangedFields, e.Diagnostics,
			e.Status, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	query := "INSERT INTO audit_logs (id, trace_id, request_id, action, actor_id, from_status, to_status, " +
		"changed_fields, diagnostics, status, error, duration_ms, timestamp) VALUES " + sb.String()
	return query, vals
}

// FetchLogs: история действий по заявке, новые сверху.
func (r *AuditRepo) FetchLogs(ctx context.Context, requestID string, limit int) ([]audit.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, trace_id, request_id, action, actor_id,
			COALESCE(from_status, ''), COALESCE(to_status, ''),
			COALESCE(changed_fields, '{}'), COALESCE(diagnostics, '{}'),
			status, COALESCE(error, ''), duration_ms, timestamp
		FROM audit_logs
		WHERE request_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to fetch audit logs: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(
			&e.ID, &e.TraceID, &e.RequestID, &e.Action, &e.ActorID,
			&e.FromStatus, &e.ToStatus, &e.ChangedFields, &e.Diagnostics,
			&e.Status, &e.Error, &e.DurationMs, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
