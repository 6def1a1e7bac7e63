package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// Под-автомат ревью. Функции чистые: принимают копию состояния и возвращают новую.
// Права и статус заявки проверяет вызывающий (policy.Gate).

// Submit фиксирует решение ревьюера. RespondToCommentsAndResubmit возвращает
// трек автору (WaitingOnSubmitter), любой другой исход завершает его.
func Submit(review domain.ReviewState, outcome domain.ReviewOutcome, notes, actor string, now time.Time) (domain.ReviewState, error) {
	if !outcome.Valid() {
		return review, domain.NewPreconditionError("submit_review", domain.DenyInvalidInput,
			fmt.Sprintf("unknown review outcome %q", outcome))
	}

	review.Outcome = outcome
	if notes != "" {
		review.Notes = notes
	}

	if outcome == domain.OutcomeRespondToCommentsAndResubmit {
		setStatus(&review, domain.ReviewWaitingOnSubmitter, actor, now)
		review.CompletedAt = nil
		review.CompletedBy = nil
		return review, nil
	}

	setStatus(&review, domain.ReviewCompleted, actor, now)
	review.CompletedAt = domain.Ptr(now)
	review.CompletedBy = domain.Ptr(actor)
	return review, nil
}

// Resubmit: автор ответил на замечания. Допустим только из WaitingOnSubmitter
// с исходом RespondToCommentsAndResubmit; исход не меняется.
func Resubmit(review domain.ReviewState, notes, actor string, now time.Time) (domain.ReviewState, error) {
	if review.Status != domain.ReviewWaitingOnSubmitter {
		return review, domain.NewTransitionError("resubmit",
			fmt.Sprintf("review is %s, expected %s", review.Status, domain.ReviewWaitingOnSubmitter))
	}
	if review.Outcome != domain.OutcomeRespondToCommentsAndResubmit {
		return review, domain.NewTransitionError("resubmit",
			fmt.Sprintf("review outcome is %q, expected %s", review.Outcome, domain.OutcomeRespondToCommentsAndResubmit))
	}

	review.Notes = appendNotes(review.Notes, notes)
	setStatus(&review, domain.ReviewWaitingOnReviewer, actor, now)
	return review, nil
}

// RequestChanges эквивалентен Submit с исходом RespondToCommentsAndResubmit.
func RequestChanges(review domain.ReviewState, notes, actor string, now time.Time) (domain.ReviewState, error) {
	return Submit(review, domain.OutcomeRespondToCommentsAndResubmit, notes, actor, now)
}

// SaveProgress переводит трек в InProgress без завершения. Отметка времени статуса
// меняется только при фактической смене статуса: это точка отсчета бизнес-часов.
func SaveProgress(review domain.ReviewState, partial domain.ReviewOutcome, notes, actor string, now time.Time) (domain.ReviewState, error) {
	if partial != domain.OutcomeNone && !partial.Valid() {
		return review, domain.NewPreconditionError("save_review_progress", domain.DenyInvalidInput,
			fmt.Sprintf("unknown review outcome %q", partial))
	}

	if partial != domain.OutcomeNone {
		review.Outcome = partial
	}
	if notes != "" {
		review.Notes = notes
	}
	if review.Status != domain.ReviewInProgress {
		setStatus(&review, domain.ReviewInProgress, actor, now)
	}
	return review, nil
}

// Start: NotStarted -> InProgress. Решение ревьюера всегда принимается из
// InProgress, поэтому нетронутый трек сначала стартует. Прочие статусы не меняются.
func Start(review domain.ReviewState, actor string, now time.Time) domain.ReviewState {
	if review.Status == domain.ReviewNotStarted {
		setStatus(&review, domain.ReviewInProgress, actor, now)
	}
	return review
}

// Activate переводит обязательный трек из NotRequired в NotStarted.
func Activate(review domain.ReviewState) domain.ReviewState {
	if review.Status == "" || review.Status == domain.ReviewNotRequired {
		review.Status = domain.ReviewNotStarted
	}
	return review
}

func setStatus(review *domain.ReviewState, status domain.ReviewStatus, actor string, now time.Time) {
	review.Status = status
	review.StatusUpdatedAt = domain.Ptr(now)
	review.StatusUpdatedBy = domain.Ptr(actor)
}

func appendNotes(existing, notes string) string {
	notes = strings.TrimSpace(notes)
	switch {
	case notes == "":
		return existing
	case existing == "":
		return notes
	default:
		return existing + "\n\n" + notes
	}
}
