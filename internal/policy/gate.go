package policy

import (
	"fmt"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// Action: действие оркестратора, для которого есть предикат доступа.
type Action string

const (
	ActionSubmitRequest               Action = "submit_request"
	ActionSaveDraft                   Action = "save_draft"
	ActionAssignAttorney              Action = "assign_attorney"
	ActionSendToCommittee             Action = "send_to_committee"
	ActionSubmitLegalReview           Action = "submit_legal_review"
	ActionSubmitComplianceReview      Action = "submit_compliance_review"
	ActionResubmitForReview           Action = "resubmit_for_review"
	ActionRequestReviewChanges        Action = "request_review_changes"
	ActionSaveReviewProgress          Action = "save_review_progress"
	ActionCloseoutRequest             Action = "closeout_request"
	ActionCancelRequest               Action = "cancel_request"
	ActionHoldRequest                 Action = "hold_request"
	ActionResumeRequest               Action = "resume_request"
	ActionCompleteRegulatoryDocuments Action = "complete_regulatory_documents"
)

// Input: все, что нужно предикату. Role задается для действий над треком ревью.
type Input struct {
	Request *domain.Request
	Caller  domain.Caller
	Role    domain.ReviewRole
}

// Decision: ответ предиката. При отказе Reason всегда непустой.
type Decision struct {
	Allowed bool            `json:"allowed"`
	Kind    error           `json:"-"`
	Code    domain.DenyCode `json:"code,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(code domain.DenyCode, format string, args ...any) Decision {
	return Decision{Kind: domain.ErrPreconditionViolation, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Err превращает отказ в типизированную ошибку; для разрешения возвращает nil.
func (d Decision) Err(action Action) error {
	if d.Allowed {
		return nil
	}
	kind := d.Kind
	if kind == nil {
		kind = domain.ErrPreconditionViolation
	}
	return &domain.ActionError{Kind: kind, Action: string(action), Code: d.Code, Reason: d.Reason}
}

// Predicate: чистая и тотальная функция: ответ есть для любого состояния заявки.
type Predicate func(in Input) Decision

// Gate: слой предикатов доступа. Ничего не меняет.
type Gate struct {
	predicates map[Action]Predicate
}

func NewGate() *Gate {
	return &Gate{predicates: map[Action]Predicate{
		ActionSubmitRequest:               canSubmitRequest,
		ActionSaveDraft:                   canSaveDraft,
		ActionAssignAttorney:              canAssignAttorney,
		ActionSendToCommittee:             canSendToCommittee,
		ActionSubmitLegalReview:           reviewerPredicate(domain.ReviewLegal),
		ActionSubmitComplianceReview:      reviewerPredicate(domain.ReviewCompliance),
		ActionRequestReviewChanges:        canActOnRoleReview,
		ActionSaveReviewProgress:          canActOnRoleReview,
		ActionResubmitForReview:           canResubmit,
		ActionCloseoutRequest:             canCloseout,
		ActionCancelRequest:               canCancel,
		ActionHoldRequest:                 canHold,
		ActionResumeRequest:               canResume,
		ActionCompleteRegulatoryDocuments: canCompleteRegulatoryDocuments,
	}}
}

// Check вычисляет предикат действия.
func (g *Gate) Check(action Action, in Input) Decision {
	p, ok := g.predicates[action]
	if !ok {
		return deny(domain.DenyInvalidInput, "unknown action %q", action)
	}
	if in.Request == nil {
		return deny(domain.DenyInvalidInput, "request is required")
	}
	if in.Caller.ID == "" {
		return deny(domain.DenyWrongRole, "caller identity is required")
	}
	return p(in)
}

// Actions: все известные действия (для проверки прав и HTTP-слоя).
func (g *Gate) Actions() []Action {
	actions := make([]Action, 0, len(g.predicates))
	for a := range g.predicates {
		actions = append(actions, a)
	}
	return actions
}

func (g *Gate) Known(action Action) bool {
	_, ok := g.predicates[action]
	return ok
}
