package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/domain"
)

var ErrInvalidDraft = errors.New("invalid draft")

type RequestCreator interface {
	Create(ctx context.Context, req *domain.Request) error
}

// NewDraft: поля черновика при создании заявки.
type NewDraft struct {
	Title                  string                `json:"title"`
	Description            string                `json:"description"`
	ReviewAudience         domain.ReviewAudience `json:"review_audience"`
	RequiresForesideReview bool                  `json:"requires_foreside_review"`
	RequiresRetailUse      bool                  `json:"requires_retail_use"`
}

type RequestService struct {
	repo   RequestCreator
	logger *zap.Logger
}

func NewRequestService(repo RequestCreator, logger *zap.Logger) *RequestService {
	return &RequestService{repo: repo, logger: logger.Named("request-service")}
}

// CreateDraft заводит заявку в Draft; автором становится вызывающий.
func (s *RequestService) CreateDraft(ctx context.Context, caller domain.Caller, in NewDraft) (*domain.Request, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if in.ReviewAudience != "" && !in.ReviewAudience.Valid() {
		return nil, fmt.Errorf("%w: unknown review audience %q", ErrInvalidDraft, in.ReviewAudience)
	}

	req := &domain.Request{
		ID:                     uuid.New().String(),
		Title:                  title,
		Description:            in.Description,
		Status:                 domain.StatusDraft,
		ReviewAudience:         in.ReviewAudience,
		RequiresForesideReview: in.RequiresForesideReview,
		RequiresRetailUse:      in.RequiresRetailUse,
		Submitter:              caller.Principal(),
		LegalReview:            domain.ReviewState{Status: domain.ReviewNotRequired},
		ComplianceReview:       domain.ReviewState{Status: domain.ReviewNotRequired},
		Approvals:              []domain.Approval{},
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.Error("failed to create draft", zap.String("submitter", caller.ID), zap.Error(err))
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.logger.Info("draft created", zap.String("request_id", req.ID), zap.String("submitter", caller.ID))
	return req, nil
}
