package timetracking

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/hours"
	"go.uber.org/zap"
)

// Stage: этап, по которому копятся часы.
type Stage string

const (
	StageLegal      Stage = "legal"
	StageCompliance Stage = "compliance"
	StageCloseout   Stage = "closeout"
)

// Party: кому уходит ответственность после передачи.
// PartyNone закрывает этап: точка отсчета сбрасывается.
type Party int

const (
	PartyNone Party = iota
	PartyReviewer
	PartySubmitter
)

// StageFor: этап трека ревью.
func StageFor(role domain.ReviewRole) Stage {
	if role == domain.ReviewLegal {
		return StageLegal
	}
	return StageCompliance
}

// Result: разреженные изменения учета времени и вторичные диагностики.
type Result struct {
	Delta       domain.TimeTrackingDelta
	Diagnostics []domain.Diagnostic
}

// Engine считает бизнес-часы при каждой передаче ответственности.
// Состояние заявки не меняет: возвращает дельту для оркестратора.
type Engine struct {
	hours  hours.Provider
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(provider hours.Provider, logger *zap.Logger, opts ...Option) *Engine {
	if provider == nil {
		provider = hours.Static(hours.Default())
	}
	e := &Engine{
		hours:  provider,
		now:    time.Now,
		logger: logger.Named("time-tracking"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateAndUpdateStageTime начисляет часы текущему "владельцу" этапа с момента
// последней передачи и переносит точку отсчета на now (или закрывает этап).
func (e *Engine) CalculateAndUpdateStageTime(ctx context.Context, req *domain.Request, stage Stage, target Party) Result {
	run := e.begin(ctx, req)
	run.accrue(stage, target)
	return run.finish()
}

// PauseTimeTracking закрывает все активные этапы текущего статуса на момент now
// и фиксирует паузу. Вызывается при входе в OnHold (и при отмене).
func (e *Engine) PauseTimeTracking(ctx context.Context, req *domain.Request) Result {
	run := e.begin(ctx, req)
	for _, stage := range ActiveStages(req, req.Status) {
		run.accrue(stage, PartyNone)
	}
	if run.tt.PausedAt == nil {
		run.tt.PausedAt = domain.Ptr(run.now)
	}
	return run.finish()
}

// ResumeTimeTracking ставит новую точку отсчета для этапов возобновленного статуса.
// Время, проведенное на паузе, таким образом не учитывается.
func (e *Engine) ResumeTimeTracking(ctx context.Context, req *domain.Request, resumed domain.RequestStatus) Result {
	run := e.begin(ctx, req)
	for _, stage := range ActiveStages(req, resumed) {
		run.setHandoff(stage, domain.Ptr(run.now))
	}
	run.tt.PausedAt = nil
	return run.finish()
}

// StartStages открывает этапы при входе в статус (InReview, Closeout).
func (e *Engine) StartStages(ctx context.Context, req *domain.Request, entered domain.RequestStatus) Result {
	run := e.begin(ctx, req)
	for _, stage := range ActiveStages(req, entered) {
		run.setHandoff(stage, domain.Ptr(run.now))
	}
	return run.finish()
}

// ActiveStages: этапы, по которым идет время в данном статусе.
func ActiveStages(req *domain.Request, status domain.RequestStatus) []Stage {
	switch status {
	case domain.StatusInReview:
		var stages []Stage
		if req.ReviewAudience.RequiresLegal() && req.LegalReview.Status != domain.ReviewCompleted {
			stages = append(stages, StageLegal)
		}
		if req.ReviewAudience.RequiresCompliance() && req.ComplianceReview.Status != domain.ReviewCompleted {
			stages = append(stages, StageCompliance)
		}
		return stages
	case domain.StatusCloseout:
		return []Stage{StageCloseout}
	}
	return nil
}

func (e *Engine) workingHours(ctx context.Context) hours.WorkingHours {
	wh, err := e.hours.WorkingHours(ctx)
	if err != nil {
		e.logger.Warn("working hours unavailable, using defaults", zap.Error(err))
		return hours.Default()
	}
	if err := wh.Validate(); err != nil {
		e.logger.Warn("working hours invalid, using defaults", zap.Error(err))
		return hours.Default()
	}
	return wh
}

// run: рабочая копия учета времени в пределах одного вызова.
type run struct {
	e     *Engine
	req   *domain.Request
	cfg   hours.WorkingHours
	now   time.Time
	old   domain.TimeTracking
	tt    domain.TimeTracking
	diags []domain.Diagnostic
}

func (e *Engine) begin(ctx context.Context, req *domain.Request) *run {
	return &run{
		e:   e,
		req: req,
		cfg: e.workingHours(ctx),
		now: e.now(),
		old: req.TimeTracking,
		tt:  req.TimeTracking,
	}
}

func (r *run) accrue(stage Stage, target Party) {
	// На паузе время не идет; точки отсчета уже закрыты
	if r.tt.PausedAt != nil {
		return
	}

	ref := r.reference(stage)
	switch {
	case ref == nil:
		r.degrade(stage, "no reference timestamp, elapsed time treated as 0")
	case ref.After(r.now):
		r.degrade(stage, fmt.Sprintf("reference timestamp %s is in the future", ref.Format(time.RFC3339)))
	default:
		elapsed := hours.BusinessDuration(*ref, r.now, r.cfg).Hours()
		r.add(stage, r.occupant(stage), elapsed)
	}

	if target == PartyNone {
		r.setHandoff(stage, nil)
		return
	}
	r.setHandoff(stage, domain.Ptr(r.now))
}

// reference: момент последней передачи ответственности по этапу.
func (r *run) reference(stage Stage) *time.Time {
	switch stage {
	case StageLegal:
		if r.tt.LegalHandoffAt != nil {
			return r.tt.LegalHandoffAt
		}
		return r.req.LegalReview.StatusUpdatedAt
	case StageCompliance:
		if r.tt.ComplianceHandoffAt != nil {
			return r.tt.ComplianceHandoffAt
		}
		return r.req.ComplianceReview.StatusUpdatedAt
	default:
		return r.tt.CloseoutHandoffAt
	}
}

// occupant: сторона, у которой этап находился до передачи.
func (r *run) occupant(stage Stage) Party {
	switch stage {
	case StageLegal:
		if r.req.LegalReview.Status == domain.ReviewWaitingOnSubmitter {
			return PartySubmitter
		}
		return PartyReviewer
	case StageCompliance:
		if r.req.ComplianceReview.Status == domain.ReviewWaitingOnSubmitter {
			return PartySubmitter
		}
		return PartyReviewer
	default:
		return PartySubmitter
	}
}

func (r *run) add(stage Stage, party Party, elapsed float64) {
	if elapsed <= 0 {
		return
	}

	switch {
	case stage == StageLegal && party == PartyReviewer:
		r.tt.LegalReviewerHours += elapsed
	case stage == StageLegal:
		r.tt.LegalSubmitterHours += elapsed
	case stage == StageCompliance && party == PartyReviewer:
		r.tt.ComplianceReviewerHours += elapsed
	case stage == StageCompliance:
		r.tt.ComplianceSubmitterHours += elapsed
	default:
		r.tt.CloseoutHours += elapsed
	}

	if party == PartyReviewer {
		r.tt.TotalReviewerHours += elapsed
	} else {
		r.tt.TotalSubmitterHours += elapsed
	}
}

func (r *run) setHandoff(stage Stage, at *time.Time) {
	switch stage {
	case StageLegal:
		r.tt.LegalHandoffAt = at
	case StageCompliance:
		r.tt.ComplianceHandoffAt = at
	default:
		r.tt.CloseoutHandoffAt = at
	}
}

func (r *run) degrade(stage Stage, msg string) {
	r.e.logger.Warn("time tracking degraded",
		zap.String("request_id", r.req.ID),
		zap.String("stage", string(stage)),
		zap.String("reason", msg))
	r.diags = append(r.diags, domain.Diagnostic{
		Kind:    domain.DiagTimeTrackingDegraded,
		Message: fmt.Sprintf("%s: %s", stage, msg),
	})
}

func (r *run) finish() Result {
	return Result{Delta: Diff(r.old, r.tt), Diagnostics: r.diags}
}

// Diff: только поля, которые отличаются.
func Diff(old, updated domain.TimeTracking) domain.TimeTrackingDelta {
	var d domain.TimeTrackingDelta
	setIfChanged(&d.LegalReviewerHours, old.LegalReviewerHours, updated.LegalReviewerHours)
	setIfChanged(&d.LegalSubmitterHours, old.LegalSubmitterHours, updated.LegalSubmitterHours)
	setIfChanged(&d.ComplianceReviewerHours, old.ComplianceReviewerHours, updated.ComplianceReviewerHours)
	setIfChanged(&d.ComplianceSubmitterHours, old.ComplianceSubmitterHours, updated.ComplianceSubmitterHours)
	setIfChanged(&d.CloseoutHours, old.CloseoutHours, updated.CloseoutHours)
	setIfChanged(&d.TotalReviewerHours, old.TotalReviewerHours, updated.TotalReviewerHours)
	setIfChanged(&d.TotalSubmitterHours, old.TotalSubmitterHours, updated.TotalSubmitterHours)
	setTimeIfChanged(&d.LegalHandoffAt, old.LegalHandoffAt, updated.LegalHandoffAt)
	setTimeIfChanged(&d.ComplianceHandoffAt, old.ComplianceHandoffAt, updated.ComplianceHandoffAt)
	setTimeIfChanged(&d.CloseoutHandoffAt, old.CloseoutHandoffAt, updated.CloseoutHandoffAt)
	setTimeIfChanged(&d.PausedAt, old.PausedAt, updated.PausedAt)
	return d
}

func setIfChanged(dst *domain.Opt[float64], old, updated float64) {
	if old != updated {
		*dst = domain.Set(updated)
	}
}

func setTimeIfChanged(dst *domain.Opt[*time.Time], old, updated *time.Time) {
	if old == nil && updated == nil {
		return
	}
	if old != nil && updated != nil && old.Equal(*updated) {
		return
	}
	*dst = domain.Set(updated)
}
