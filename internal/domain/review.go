package domain

import "time"

// ReviewRole параметризует под-автомат ревью.
type ReviewRole string

const (
	ReviewLegal      ReviewRole = "legal"
	ReviewCompliance ReviewRole = "compliance"
)

func (r ReviewRole) Valid() bool {
	return r == ReviewLegal || r == ReviewCompliance
}

// ReviewStatus: статус отдельного трека ревью.
type ReviewStatus string

const (
	ReviewNotRequired        ReviewStatus = "NotRequired"
	ReviewNotStarted         ReviewStatus = "NotStarted"
	ReviewInProgress         ReviewStatus = "InProgress"
	ReviewWaitingOnSubmitter ReviewStatus = "WaitingOnSubmitter"
	ReviewWaitingOnReviewer  ReviewStatus = "WaitingOnReviewer"
	ReviewCompleted          ReviewStatus = "Completed"
)

// ReviewOutcome: решение ревьюера.
type ReviewOutcome string

const (
	OutcomeNone                         ReviewOutcome = ""
	OutcomeApproved                     ReviewOutcome = "Approved"
	OutcomeApprovedWithComments         ReviewOutcome = "ApprovedWithComments"
	OutcomeRespondToCommentsAndResubmit ReviewOutcome = "RespondToCommentsAndResubmit"
	OutcomeNotApproved                  ReviewOutcome = "NotApproved"
)

// Valid: пустой исход не является решением.
func (o ReviewOutcome) Valid() bool {
	switch o {
	case OutcomeApproved, OutcomeApprovedWithComments, OutcomeRespondToCommentsAndResubmit, OutcomeNotApproved:
		return true
	}
	return false
}

// IsFinal: исход, с которым ревью может стать Completed.
func (o ReviewOutcome) IsFinal() bool {
	return o.Valid() && o != OutcomeRespondToCommentsAndResubmit
}

// ReviewState: встроенное в заявку состояние одного трека.
type ReviewState struct {
	Status           ReviewStatus  `json:"status"`
	Outcome          ReviewOutcome `json:"outcome,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	AssignedReviewer *Principal    `json:"assigned_reviewer,omitempty"`
	StatusUpdatedAt  *time.Time    `json:"status_updated_at,omitempty"`
	StatusUpdatedBy  *string       `json:"status_updated_by,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CompletedBy      *string       `json:"completed_by,omitempty"`
}

// IsActive: трек требует работы (обязателен и не завершен).
func (s ReviewState) IsActive() bool {
	return s.Status != ReviewNotRequired && s.Status != ReviewCompleted && s.Status != ""
}
