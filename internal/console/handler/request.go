package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/console/service"
	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/engine"
	"github.com/xela07ax/review-workflow/internal/infra/auth"
	"github.com/xela07ax/review-workflow/internal/policy"
)

// Workflow: действия над заявкой; реализуется engine.Orchestrator.
type Workflow interface {
	Get(ctx context.Context, id string) (*domain.Request, error)
	CheckPermission(ctx context.Context, caller domain.Caller, id string, action policy.Action, role domain.ReviewRole) (policy.Decision, error)

	SaveDraft(ctx context.Context, caller domain.Caller, id string, in engine.DraftChanges) (*engine.ActionResult, error)
	SubmitRequest(ctx context.Context, caller domain.Caller, id string) (*engine.ActionResult, error)
	AssignAttorney(ctx context.Context, caller domain.Caller, id string, attorney *domain.Principal) (*engine.ActionResult, error)
	SendToCommittee(ctx context.Context, caller domain.Caller, id string) (*engine.ActionResult, error)
	SubmitLegalReview(ctx context.Context, caller domain.Caller, id string, outcome domain.ReviewOutcome, notes string) (*engine.ActionResult, error)
	SubmitComplianceReview(ctx context.Context, caller domain.Caller, id string, outcome domain.ReviewOutcome, notes string) (*engine.ActionResult, error)
	RequestReviewChanges(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, notes string) (*engine.ActionResult, error)
	ResubmitForReview(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, notes string) (*engine.ActionResult, error)
	SaveReviewProgress(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, partial domain.ReviewOutcome, notes string) (*engine.ActionResult, error)
	CloseoutRequest(ctx context.Context, caller domain.Caller, id, trackingID, notes string) (*engine.ActionResult, error)
	CancelRequest(ctx context.Context, caller domain.Caller, id, reason string) (*engine.ActionResult, error)
	HoldRequest(ctx context.Context, caller domain.Caller, id, reason string) (*engine.ActionResult, error)
	ResumeRequest(ctx context.Context, caller domain.Caller, id string) (*engine.ActionResult, error)
	CompleteRegulatoryDocuments(ctx context.Context, caller domain.Caller, id string, refs []string) (*engine.ActionResult, error)
}

type DraftCreator interface {
	CreateDraft(ctx context.Context, caller domain.Caller, in service.NewDraft) (*domain.Request, error)
}

type RequestHandler struct {
	workflow Workflow
	drafts   DraftCreator
	logger   *zap.Logger
}

func NewRequestHandler(wf Workflow, drafts DraftCreator, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{workflow: wf, drafts: drafts, logger: logger.Named("request-handler")}
}

// ActionRequest: общее тело POST /v1/requests/{id}/{action}; каждое действие берет свои поля.
type ActionRequest struct {
	Role       domain.ReviewRole    `json:"role,omitempty"`
	Outcome    domain.ReviewOutcome `json:"outcome,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	TrackingID string               `json:"tracking_id,omitempty"`
	Attorney   *domain.Principal    `json:"attorney,omitempty"`
	Refs       []string             `json:"document_refs,omitempty"`

	engine.DraftChanges
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var in service.NewDraft
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req, err := h.drafts.CreateDraft(r.Context(), caller, in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDraft) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: domain.DenyInvalidInput})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CheckPermission: GET /v1/requests/{id}/permissions/check?action=...&role=...
func (h *RequestHandler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	action := policy.Action(q.Get("action"))
	if action == "" {
		http.Error(w, "action is required", http.StatusBadRequest)
		return
	}

	d, err := h.workflow.CheckPermission(r.Context(), caller, chi.URLParam(r, "id"), action, domain.ReviewRole(q.Get("role")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Act: POST /v1/requests/{id}/{action}
func (h *RequestHandler) Act(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body ActionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}

	id := chi.URLParam(r, "id")
	action := policy.Action(chi.URLParam(r, "action"))

	res, err := h.dispatch(r.Context(), caller, id, action, body)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("workflow action failed",
				zap.String("request_id", id),
				zap.String("action", string(action)),
				zap.String("trace_id", engine.TraceIDFrom(r.Context())),
				zap.Error(err))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var errUnknownAction = domain.NewPreconditionError("", domain.DenyInvalidInput, "unknown action")

func (h *RequestHandler) dispatch(ctx context.Context, c domain.Caller, id string, action policy.Action, b ActionRequest) (*engine.ActionResult, error) {
	wf := h.workflow
	switch action {
	case policy.ActionSaveDraft:
		return wf.SaveDraft(ctx, c, id, b.DraftChanges)
	case policy.ActionSubmitRequest:
		return wf.SubmitRequest(ctx, c, id)
	case policy.ActionAssignAttorney:
		return wf.AssignAttorney(ctx, c, id, b.Attorney)
	case policy.ActionSendToCommittee:
		return wf.SendToCommittee(ctx, c, id)
	case policy.ActionSubmitLegalReview:
		return wf.SubmitLegalReview(ctx, c, id, b.Outcome, b.Notes)
	case policy.ActionSubmitComplianceReview:
		return wf.SubmitComplianceReview(ctx, c, id, b.Outcome, b.Notes)
	case policy.ActionRequestReviewChanges:
		return wf.RequestReviewChanges(ctx, c, id, b.Role, b.Notes)
	case policy.ActionResubmitForReview:
		return wf.ResubmitForReview(ctx, c, id, b.Role, b.Notes)
	case policy.ActionSaveReviewProgress:
		return wf.SaveReviewProgress(ctx, c, id, b.Role, b.Outcome, b.Notes)
	case policy.ActionCloseoutRequest:
		return wf.CloseoutRequest(ctx, c, id, b.TrackingID, b.Notes)
	case policy.ActionCancelRequest:
		return wf.CancelRequest(ctx, c, id, b.Reason)
	case policy.ActionHoldRequest:
		return wf.HoldRequest(ctx, c, id, b.Reason)
	case policy.ActionResumeRequest:
		return wf.ResumeRequest(ctx, c, id)
	case policy.ActionCompleteRegulatoryDocuments:
		return wf.CompleteRegulatoryDocuments(ctx, c, id, b.Refs)
	}
	return nil, errUnknownAction
}
