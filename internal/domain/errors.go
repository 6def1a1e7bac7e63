package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок ядра. Проверяются через errors.Is.
var (
	ErrPreconditionViolation  = errors.New("precondition violation")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPersistence            = errors.New("persistence failure")
	ErrRequestNotFound        = errors.New("request not found")
	ErrUnknownStatus          = errors.New("unknown request status")
)

// DenyCode: машинный код отказа, по нему HTTP-слой выбирает статус ответа.
type DenyCode string

const (
	DenyNone             DenyCode = ""
	DenyWrongStatus      DenyCode = "wrong_status"
	DenyWrongRole        DenyCode = "wrong_role"
	DenyNotAssigned      DenyCode = "not_assigned"
	DenyNotRequired      DenyCode = "review_not_required"
	DenyAlreadyCompleted DenyCode = "already_completed"
	DenyInvalidInput     DenyCode = "invalid_input"
	DenyDuplicateAction  DenyCode = "duplicate_action"
)

// ActionError: отказ в действии до каких-либо побочных эффектов.
type ActionError struct {
	Kind   error // ErrPreconditionViolation или ErrInvalidStateTransition
	Action string
	Code   DenyCode
	Reason string
}

func (e *ActionError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Action, e.Kind, e.Reason)
}

func (e *ActionError) Unwrap() error {
	return e.Kind
}

func NewPreconditionError(action string, code DenyCode, reason string) *ActionError {
	return &ActionError{Kind: ErrPreconditionViolation, Action: action, Code: code, Reason: reason}
}

func NewTransitionError(action string, reason string) *ActionError {
	return &ActionError{Kind: ErrInvalidStateTransition, Action: action, Code: DenyWrongStatus, Reason: reason}
}

// DiagnosticKind: вторичные проблемы, которые не блокируют переход.
type DiagnosticKind string

const (
	DiagTimeTrackingDegraded   DiagnosticKind = "TimeTrackingDegraded"
	DiagPermissionSyncFailure  DiagnosticKind = "PermissionSyncFailure"
	DiagIdempotencyUnavailable DiagnosticKind = "IdempotencyUnavailable"
	DiagSignalFailure          DiagnosticKind = "SignalFailure"
)

// Diagnostic прикрепляется к результату действия как метаданные.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}
