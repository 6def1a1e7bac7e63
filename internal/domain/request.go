package domain

import (
	"encoding/json"
	"math"
	"time"
)

// RequestStatus: верхнеуровневый статус заявки (State Machine).
type RequestStatus string

const (
	StatusDraft                     RequestStatus = "Draft"
	StatusLegalIntake               RequestStatus = "LegalIntake"
	StatusAssignAttorney            RequestStatus = "AssignAttorney"
	StatusInReview                  RequestStatus = "InReview"
	StatusCloseout                  RequestStatus = "Closeout"
	StatusAwaitingForesideDocuments RequestStatus = "AwaitingForesideDocuments"
	StatusCompleted                 RequestStatus = "Completed"
	StatusCancelled                 RequestStatus = "Cancelled"
	StatusOnHold                    RequestStatus = "OnHold"
)

// AllStatuses перечисляет все известные статусы в порядке пайплайна.
var AllStatuses = []RequestStatus{
	StatusDraft,
	StatusLegalIntake,
	StatusAssignAttorney,
	StatusInReview,
	StatusCloseout,
	StatusAwaitingForesideDocuments,
	StatusCompleted,
	StatusCancelled,
	StatusOnHold,
}

// IsTerminal: Completed и Cancelled не имеют исходящих переходов.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ReviewAudience определяет, какие треки ревью обязательны.
type ReviewAudience string

const (
	AudienceLegal      ReviewAudience = "Legal"
	AudienceCompliance ReviewAudience = "Compliance"
	AudienceBoth       ReviewAudience = "Both"
)

func (a ReviewAudience) RequiresLegal() bool {
	return a == AudienceLegal || a == AudienceBoth
}

func (a ReviewAudience) RequiresCompliance() bool {
	return a == AudienceCompliance || a == AudienceBoth
}

// Requires отвечает, обязателен ли трек ревью указанной роли.
func (a ReviewAudience) Requires(role ReviewRole) bool {
	if role == ReviewLegal {
		return a.RequiresLegal()
	}
	return a.RequiresCompliance()
}

func (a ReviewAudience) Valid() bool {
	return a == AudienceLegal || a == AudienceCompliance || a == AudienceBoth
}

// Principal: ссылка на пользователя. Для авторизации используется только ID.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Approval: запись о предварительном согласовании (ведется вне ядра).
type Approval struct {
	Type       string    `json:"type"`
	Approver   Principal `json:"approver"`
	ApprovedAt time.Time `json:"approved_at"`
	Notes      string    `json:"notes,omitempty"`
}

// TimeTracking: накопленные бизнес-часы по этапам и ролям.
// Часы монотонно не убывают в пределах жизненного цикла заявки.
type TimeTracking struct {
	LegalReviewerHours       float64 `json:"legal_reviewer_hours"`
	LegalSubmitterHours      float64 `json:"legal_submitter_hours"`
	ComplianceReviewerHours  float64 `json:"compliance_reviewer_hours"`
	ComplianceSubmitterHours float64 `json:"compliance_submitter_hours"`
	CloseoutHours            float64 `json:"closeout_hours"`
	TotalReviewerHours       float64 `json:"total_reviewer_hours"`
	TotalSubmitterHours      float64 `json:"total_submitter_hours"`

	// Точки отсчета (handoff) для активных этапов. nil: этап не идет.
	LegalHandoffAt      *time.Time `json:"legal_handoff_at,omitempty"`
	ComplianceHandoffAt *time.Time `json:"compliance_handoff_at,omitempty"`
	CloseoutHandoffAt   *time.Time `json:"closeout_handoff_at,omitempty"`
	PausedAt            *time.Time `json:"paused_at,omitempty"`
}

// MarshalJSON отдает часы с точностью до сотых. Внутри счетчики хранятся без округления.
func (t TimeTracking) MarshalJSON() ([]byte, error) {
	type plain TimeTracking
	p := plain(t)
	for _, h := range []*float64{
		&p.LegalReviewerHours, &p.LegalSubmitterHours,
		&p.ComplianceReviewerHours, &p.ComplianceSubmitterHours,
		&p.CloseoutHours, &p.TotalReviewerHours, &p.TotalSubmitterHours,
	} {
		*h = math.Round(*h*100) / 100
	}
	return json.Marshal(p)
}

// Request: агрегат заявки на ревью.
type Request struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status         RequestStatus  `json:"status"`
	PreviousStatus *RequestStatus `json:"previous_status,omitempty"`
	ReviewAudience ReviewAudience `json:"review_audience"`

	// Признаки для маршрутизации после Closeout
	RequiresForesideReview bool `json:"requires_foreside_review"`
	RequiresRetailUse      bool `json:"requires_retail_use"`

	Submitter Principal  `json:"submitter"`
	Attorney  *Principal `json:"attorney,omitempty"`

	LegalReview      ReviewState `json:"legal_review"`
	ComplianceReview ReviewState `json:"compliance_review"`

	TimeTracking TimeTracking `json:"time_tracking"`
	Approvals    []Approval   `json:"approvals"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy *string    `json:"submitted_by,omitempty"`

	HoldReason *string    `json:"hold_reason,omitempty"`
	HeldAt     *time.Time `json:"held_at,omitempty"`
	HeldBy     *string    `json:"held_by,omitempty"`

	CancelReason *string    `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  *string    `json:"cancelled_by,omitempty"`

	// Closeout
	TrackingID    *string    `json:"tracking_id,omitempty"`
	CloseoutNotes *string    `json:"closeout_notes,omitempty"`
	ClosedOutAt   *time.Time `json:"closed_out_at,omitempty"`
	ClosedOutBy   *string    `json:"closed_out_by,omitempty"`

	// Фаза регуляторных документов
	RegulatoryDocumentRefs []string   `json:"regulatory_document_refs,omitempty"`
	RegulatoryCompletedAt  *time.Time `json:"regulatory_completed_at,omitempty"`
	RegulatoryCompletedBy  *string    `json:"regulatory_completed_by,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review возвращает состояние трека по роли.
func (r *Request) Review(role ReviewRole) ReviewState {
	if role == ReviewLegal {
		return r.LegalReview
	}
	return r.ComplianceReview
}

// IsOwner: вызывающий является автором заявки.
func (r *Request) IsOwner(callerID string) bool {
	return callerID != "" && r.Submitter.ID == callerID
}

// IsAssignedAttorney: вызывающий назначен юристом по заявке.
func (r *Request) IsAssignedAttorney(callerID string) bool {
	return callerID != "" && r.Attorney != nil && r.Attorney.ID == callerID
}
