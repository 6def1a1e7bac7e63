package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/policy"
	"github.com/xela07ax/review-workflow/internal/timetracking"
	"github.com/xela07ax/review-workflow/internal/workflow"
)

func invalidInput(action policy.Action, format string, args ...any) error {
	return domain.NewPreconditionError(string(action), domain.DenyInvalidInput, fmt.Sprintf(format, args...))
}

// DraftChanges: редактируемые поля черновика; nil — поле не меняется.
type DraftChanges struct {
	Title                  *string                `json:"title,omitempty"`
	Description            *string                `json:"description,omitempty"`
	ReviewAudience         *domain.ReviewAudience `json:"review_audience,omitempty"`
	RequiresForesideReview *bool                  `json:"requires_foreside_review,omitempty"`
	RequiresRetailUse      *bool                  `json:"requires_retail_use,omitempty"`
}

// SaveDraft сохраняет правки автора, пока заявка в Draft.
func (o *Orchestrator) SaveDraft(ctx context.Context, caller domain.Caller, id string, in DraftChanges) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSaveDraft, caller, id, "", func(c *change) error {
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return invalidInput(c.action, "title must not be empty")
			}
			if title != c.cur.Title {
				c.delta.Title = domain.Set(title)
			}
		}
		if in.Description != nil && *in.Description != c.cur.Description {
			c.delta.Description = domain.Set(*in.Description)
		}
		if in.ReviewAudience != nil {
			if !in.ReviewAudience.Valid() {
				return invalidInput(c.action, "unknown review audience %q", *in.ReviewAudience)
			}
			if *in.ReviewAudience != c.cur.ReviewAudience {
				c.delta.ReviewAudience = domain.Set(*in.ReviewAudience)
			}
		}
		if in.RequiresForesideReview != nil && *in.RequiresForesideReview != c.cur.RequiresForesideReview {
			c.delta.RequiresForesideReview = domain.Set(*in.RequiresForesideReview)
		}
		if in.RequiresRetailUse != nil && *in.RequiresRetailUse != c.cur.RequiresRetailUse {
			c.delta.RequiresRetailUse = domain.Set(*in.RequiresRetailUse)
		}
		return nil
	})
}

// SubmitRequest: Draft -> LegalIntake. Аудитория фиксируется, обязательные треки активируются.
func (o *Orchestrator) SubmitRequest(ctx context.Context, caller domain.Caller, id string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSubmitRequest, caller, id, "", func(c *change) error {
		if err := c.setStatus(domain.StatusLegalIntake); err != nil {
			return err
		}
		c.delta.SubmittedAt = domain.Set(domain.Ptr(c.now))
		c.delta.SubmittedBy = domain.Set(domain.Ptr(c.actor()))

		for _, role := range []domain.ReviewRole{domain.ReviewLegal, domain.ReviewCompliance} {
			review := c.cur.Review(role)
			if c.cur.ReviewAudience.Requires(role) {
				c.setReview(role, workflow.Activate(review))
			} else if review.Status != domain.ReviewNotRequired {
				review.Status = domain.ReviewNotRequired
				c.setReview(role, review)
			}
		}
		return nil
	})
}

// AssignAttorney назначает юриста и отправляет заявку в InReview.
// Для заявок только с compliance-ревью attorney может быть nil.
func (o *Orchestrator) AssignAttorney(ctx context.Context, caller domain.Caller, id string, attorney *domain.Principal) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionAssignAttorney, caller, id, "", func(c *change) error {
		legalRequired := c.cur.ReviewAudience.RequiresLegal()
		if attorney == nil && legalRequired {
			return invalidInput(c.action, "attorney is required when legal review is required")
		}
		if attorney != nil && attorney.ID == "" {
			return invalidInput(c.action, "attorney id must not be empty")
		}

		if attorney != nil {
			a := *attorney
			c.delta.Attorney = domain.Set(&a)
			c.cur.Attorney = &a
			if legalRequired {
				review := c.cur.LegalReview
				review.AssignedReviewer = &a
				c.setReview(domain.ReviewLegal, review)
			}
		}

		if err := c.setStatus(domain.StatusInReview); err != nil {
			return err
		}
		c.track(o.tracking.StartStages(c.ctx, &c.cur, domain.StatusInReview))
		return nil
	})
}

// SendToCommittee: LegalIntake -> AssignAttorney (назначение юриста комитетом).
func (o *Orchestrator) SendToCommittee(ctx context.Context, caller domain.Caller, id string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSendToCommittee, caller, id, "", func(c *change) error {
		return c.setStatus(domain.StatusAssignAttorney)
	})
}

func (o *Orchestrator) SubmitLegalReview(ctx context.Context, caller domain.Caller, id string, outcome domain.ReviewOutcome, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSubmitLegalReview, caller, id, domain.ReviewLegal, func(c *change) error {
		return c.completeReview(domain.ReviewLegal, func(r domain.ReviewState) (domain.ReviewState, error) {
			return workflow.Submit(r, outcome, notes, c.actor(), c.now)
		})
	})
}

func (o *Orchestrator) SubmitComplianceReview(ctx context.Context, caller domain.Caller, id string, outcome domain.ReviewOutcome, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSubmitComplianceReview, caller, id, domain.ReviewCompliance, func(c *change) error {
		return c.completeReview(domain.ReviewCompliance, func(r domain.ReviewState) (domain.ReviewState, error) {
			return workflow.Submit(r, outcome, notes, c.actor(), c.now)
		})
	})
}

// RequestReviewChanges: ревьюер возвращает трек автору с замечаниями.
func (o *Orchestrator) RequestReviewChanges(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionRequestReviewChanges, caller, id, role, func(c *change) error {
		return c.completeReview(role, func(r domain.ReviewState) (domain.ReviewState, error) {
			return workflow.RequestChanges(r, notes, c.actor(), c.now)
		})
	})
}

// ResubmitForReview: автор ответил на замечания, трек возвращается ревьюеру.
func (o *Orchestrator) ResubmitForReview(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionResubmitForReview, caller, id, role, func(c *change) error {
		updated, err := workflow.Resubmit(c.cur.Review(role), notes, c.actor(), c.now)
		if err != nil {
			return err
		}
		// Время ожидания уходит автору, точка отсчета переходит к ревьюеру
		c.track(o.tracking.CalculateAndUpdateStageTime(c.ctx, &c.cur, timetracking.StageFor(role), timetracking.PartyReviewer))
		c.setReview(role, updated)
		return nil
	})
}

// SaveReviewProgress: промежуточное сохранение без передачи ответственности.
func (o *Orchestrator) SaveReviewProgress(ctx context.Context, caller domain.Caller, id string, role domain.ReviewRole, partial domain.ReviewOutcome, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionSaveReviewProgress, caller, id, role, func(c *change) error {
		updated, err := workflow.SaveProgress(c.cur.Review(role), partial, notes, c.actor(), c.now)
		if err != nil {
			return err
		}
		c.setReview(role, updated)
		return nil
	})
}

// completeReview: общий путь решения ревьюера: учет времени, новый трек,
// и автопереход заявки в том же патче, если все обязательные треки завершены.
func (c *change) completeReview(role domain.ReviewRole, decide func(domain.ReviewState) (domain.ReviewState, error)) error {
	updated, err := decide(workflow.Start(c.cur.Review(role), c.actor(), c.now))
	if err != nil {
		return err
	}

	target := timetracking.PartyNone
	if updated.Status == domain.ReviewWaitingOnSubmitter {
		target = timetracking.PartySubmitter
	}
	c.track(c.o.tracking.CalculateAndUpdateStageTime(c.ctx, &c.cur, timetracking.StageFor(role), target))
	c.setReview(role, updated)

	completion := workflow.CompletionOutcome(&c.cur, workflow.OverridesFor(role, updated))
	if !completion.Complete {
		return nil
	}
	if err := c.setStatus(completion.NextStatus); err != nil {
		return err
	}
	if completion.NextStatus == domain.StatusCloseout {
		c.track(c.o.tracking.StartStages(c.ctx, &c.cur, domain.StatusCloseout))
	}
	return nil
}

// CloseoutRequest фиксирует трекинг-номер и направляет заявку в фазу
// регуляторных документов или сразу в Completed.
func (o *Orchestrator) CloseoutRequest(ctx context.Context, caller domain.Caller, id, trackingID, notes string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionCloseoutRequest, caller, id, "", func(c *change) error {
		trackingID = strings.TrimSpace(trackingID)
		if trackingID == "" {
			return invalidInput(c.action, "tracking id is required for closeout")
		}

		c.track(o.tracking.CalculateAndUpdateStageTime(c.ctx, &c.cur, timetracking.StageCloseout, timetracking.PartyNone))

		c.delta.TrackingID = domain.Set(domain.Ptr(trackingID))
		if notes != "" {
			c.delta.CloseoutNotes = domain.Set(domain.Ptr(notes))
		}
		c.delta.ClosedOutAt = domain.Set(domain.Ptr(c.now))
		c.delta.ClosedOutBy = domain.Set(domain.Ptr(c.actor()))

		return c.setStatus(workflow.StatusAfterCloseout(&c.cur, o.routing))
	})
}

// CancelRequest: терминальная отмена; учет времени закрывается как при паузе.
func (o *Orchestrator) CancelRequest(ctx context.Context, caller domain.Caller, id, reason string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionCancelRequest, caller, id, "", func(c *change) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return invalidInput(c.action, "cancel reason is required")
		}

		prev := c.cur.Status
		c.track(o.tracking.PauseTimeTracking(c.ctx, &c.cur))
		if err := c.setStatus(domain.StatusCancelled); err != nil {
			return err
		}
		c.delta.PreviousStatus = domain.Set(&prev)
		if prev == domain.StatusOnHold {
			// Поля паузы живут только в OnHold
			c.delta.HoldReason = domain.Set[*string](nil)
			c.delta.HeldAt = domain.Set[*time.Time](nil)
			c.delta.HeldBy = domain.Set[*string](nil)
		}
		c.delta.CancelReason = domain.Set(domain.Ptr(reason))
		c.delta.CancelledAt = domain.Set(domain.Ptr(c.now))
		c.delta.CancelledBy = domain.Set(domain.Ptr(c.actor()))
		return nil
	})
}

// HoldRequest ставит заявку на паузу; время на паузе не учитывается.
func (o *Orchestrator) HoldRequest(ctx context.Context, caller domain.Caller, id, reason string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionHoldRequest, caller, id, "", func(c *change) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return invalidInput(c.action, "hold reason is required")
		}

		prev := c.cur.Status
		c.track(o.tracking.PauseTimeTracking(c.ctx, &c.cur))
		if err := c.setStatus(domain.StatusOnHold); err != nil {
			return err
		}
		c.delta.PreviousStatus = domain.Set(&prev)
		c.delta.HoldReason = domain.Set(domain.Ptr(reason))
		c.delta.HeldAt = domain.Set(domain.Ptr(c.now))
		c.delta.HeldBy = domain.Set(domain.Ptr(c.actor()))
		return nil
	})
}

// ResumeRequest возвращает заявку в статус до паузы с новой точкой отсчета времени.
func (o *Orchestrator) ResumeRequest(ctx context.Context, caller domain.Caller, id string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionResumeRequest, caller, id, "", func(c *change) error {
		target := *c.cur.PreviousStatus
		if err := c.setStatus(target); err != nil {
			return err
		}
		c.track(o.tracking.ResumeTimeTracking(c.ctx, &c.cur, target))

		c.delta.PreviousStatus = domain.Set[*domain.RequestStatus](nil)
		c.delta.HoldReason = domain.Set[*string](nil)
		c.delta.HeldAt = domain.Set[*time.Time](nil)
		c.delta.HeldBy = domain.Set[*string](nil)
		return nil
	})
}

// CompleteRegulatoryDocuments завершает заявку после загрузки регуляторных документов.
func (o *Orchestrator) CompleteRegulatoryDocuments(ctx context.Context, caller domain.Caller, id string, refs []string) (*ActionResult, error) {
	return o.execute(ctx, policy.ActionCompleteRegulatoryDocuments, caller, id, "", func(c *change) error {
		cleaned := make([]string, 0, len(refs))
		for _, r := range refs {
			if r = strings.TrimSpace(r); r != "" {
				cleaned = append(cleaned, r)
			}
		}
		if len(cleaned) == 0 {
			return invalidInput(c.action, "at least one regulatory document reference is required")
		}

		c.delta.RegulatoryDocumentRefs = domain.Set(cleaned)
		c.delta.RegulatoryCompletedAt = domain.Set(domain.Ptr(c.now))
		c.delta.RegulatoryCompletedBy = domain.Set(domain.Ptr(c.actor()))
		return c.setStatus(domain.StatusCompleted)
	})
}
