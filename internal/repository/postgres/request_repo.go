package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// RequestRepo: хранилище заявок. Имена колонок совпадают с domain.Field,
// поэтому разреженный патч превращается в UPDATE без таблицы соответствий.
type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

const selectRequest = `
	SELECT id, title, description, status, previous_status, review_audience,
		requires_foreside_review, requires_retail_use,
		submitter_id, submitter_name, submitter_email, attorney,
		legal_review_status, legal_review_outcome, legal_review_notes, legal_review_assigned_reviewer,
		legal_review_status_updated_at, legal_review_status_updated_by,
		legal_review_completed_at, legal_review_completed_by,
		compliance_review_status, compliance_review_outcome, compliance_review_notes, compliance_review_assigned_reviewer,
		compliance_review_status_updated_at, compliance_review_status_updated_by,
		compliance_review_completed_at, compliance_review_completed_by,
		tt_legal_reviewer_hours, tt_legal_submitter_hours,
		tt_compliance_reviewer_hours, tt_compliance_submitter_hours,
		tt_closeout_hours, tt_total_reviewer_hours, tt_total_submitter_hours,
		tt_legal_handoff_at, tt_compliance_handoff_at, tt_closeout_handoff_at, tt_paused_at,
		COALESCE(approvals, '[]'::jsonb),
		submitted_at, submitted_by, hold_reason, held_at, held_by,
		cancel_reason, cancelled_at, cancelled_by,
		tracking_id, closeout_notes, closed_out_at, closed_out_by,
		regulatory_document_refs, regulatory_completed_at, regulatory_completed_by,
		completed_at, created_at, updated_at
	FROM review_requests WHERE id = $1`

// reviewRow: промежуточные значения колонок одного трека.
type reviewRow struct {
	status, outcome string
	notes           *string
	assigned        []byte
}

func (rr *reviewRow) apply(s *domain.ReviewState) error {
	s.Status = domain.ReviewStatus(rr.status)
	s.Outcome = domain.ReviewOutcome(rr.outcome)
	if rr.notes != nil {
		s.Notes = *rr.notes
	}
	p, err := decodePrincipal(rr.assigned)
	s.AssignedReviewer = p
	return err
}

// Load читает заявку целиком.
func (r *RequestRepo) Load(ctx context.Context, id string) (*domain.Request, error) {
	var (
		req            domain.Request
		status         string
		previousStatus *string
		audience       string
		description    *string
		submitterName  *string
		submitterEmail *string
		attorney       []byte
		approvals      []byte
		legal, comp    reviewRow
	)
	tt := &req.TimeTracking

	err := r.pool.QueryRow(ctx, selectRequest, id).Scan(
		&req.ID, &req.Title, &description, &status, &previousStatus, &audience,
		&req.RequiresForesideReview, &req.RequiresRetailUse,
		&req.Submitter.ID, &submitterName, &submitterEmail, &attorney,
		&legal.status, &legal.outcome, &legal.notes, &legal.assigned,
		&req.LegalReview.StatusUpdatedAt, &req.LegalReview.StatusUpdatedBy,
		&req.LegalReview.CompletedAt, &req.LegalReview.CompletedBy,
		&comp.status, &comp.outcome, &comp.notes, &comp.assigned,
		&req.ComplianceReview.StatusUpdatedAt, &req.ComplianceReview.StatusUpdatedBy,
		&req.ComplianceReview.CompletedAt, &req.ComplianceReview.CompletedBy,
		&tt.LegalReviewerHours, &tt.LegalSubmitterHours,
		&tt.ComplianceReviewerHours, &tt.ComplianceSubmitterHours,
		&tt.CloseoutHours, &tt.TotalReviewerHours, &tt.TotalSubmitterHours,
		&tt.LegalHandoffAt, &tt.ComplianceHandoffAt, &tt.CloseoutHandoffAt, &tt.PausedAt,
		&approvals,
		&req.SubmittedAt, &req.SubmittedBy, &req.HoldReason, &req.HeldAt, &req.HeldBy,
		&req.CancelReason, &req.CancelledAt, &req.CancelledBy,
		&req.TrackingID, &req.CloseoutNotes, &req.ClosedOutAt, &req.ClosedOutBy,
		&req.RegulatoryDocumentRefs, &req.RegulatoryCompletedAt, &req.RegulatoryCompletedBy,
		&req.CompletedAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("postgres: failed to load request %s: %w", id, err)
	}

	req.Status = domain.RequestStatus(status)
	if previousStatus != nil {
		ps := domain.RequestStatus(*previousStatus)
		req.PreviousStatus = &ps
	}
	req.ReviewAudience = domain.ReviewAudience(audience)
	if description != nil {
		req.Description = *description
	}
	if submitterName != nil {
		req.Submitter.DisplayName = *submitterName
	}
	if submitterEmail != nil {
		req.Submitter.Email = *submitterEmail
	}

	if req.Attorney, err = decodePrincipal(attorney); err != nil {
		return nil, fmt.Errorf("postgres: request %s attorney: %w", id, err)
	}
	if err := legal.apply(&req.LegalReview); err != nil {
		return nil, fmt.Errorf("postgres: request %s legal reviewer: %w", id, err)
	}
	if err := comp.apply(&req.ComplianceReview); err != nil {
		return nil, fmt.Errorf("postgres: request %s compliance reviewer: %w", id, err)
	}
	if err := json.Unmarshal(approvals, &req.Approvals); err != nil {
		return nil, fmt.Errorf("postgres: request %s approvals: %w", id, err)
	}
	return &req, nil
}

// Create сохраняет новый черновик.
func (r *RequestRepo) Create(ctx context.Context, req *domain.Request) error {
	query := `
		INSERT INTO review_requests (
			id, title, description, status, review_audience,
			requires_foreside_review, requires_retail_use,
			submitter_id, submitter_name, submitter_email,
			legal_review_status, compliance_review_status, approvals
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	approvals, err := json.Marshal(req.Approvals)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode approvals: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		req.ID, req.Title, req.Description, string(req.Status), string(req.ReviewAudience),
		req.RequiresForesideReview, req.RequiresRetailUse,
		req.Submitter.ID, req.Submitter.DisplayName, req.Submitter.Email,
		string(req.LegalReview.Status), string(req.ComplianceReview.Status), approvals,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create request: %w", err)
	}
	return nil
}

// ApplyDelta пишет патч одним UPDATE: одна логическая транзиция — одна запись.
func (r *RequestRepo) ApplyDelta(ctx context.Context, id string, delta domain.RequestDelta) error {
	query, args, err := buildUpdate(id, delta.Changes())
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: failed to apply delta: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

// buildUpdate собирает "UPDATE ... SET col = $n" только по заданным полям.
func buildUpdate(id string, changes []domain.Change) (string, []any, error) {
	if len(changes) == 0 {
		return "", nil, errors.New("postgres: empty delta")
	}

	sets := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+1)
	for i, c := range changes {
		v, err := columnValue(c.Value)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: field %s: %w", c.Field, err)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Field, i+1))
		args = append(args, v)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE review_requests SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

// columnValue приводит значение патча к параметру pgx. Principal хранится в jsonb.
func columnValue(v any) (any, error) {
	p, ok := v.(*domain.Principal)
	if !ok {
		return v, nil
	}
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func decodePrincipal(data []byte) (*domain.Principal, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var p domain.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
