package timetracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/hours"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type failingHours struct{}

func (failingHours) WorkingHours(context.Context) (hours.WorkingHours, error) {
	return hours.WorkingHours{}, errors.New("settings table missing")
}

// 2024-01-01 — понедельник.
func monday(day, hour int) time.Time {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
}

func newEngine(clock *fakeClock) *Engine {
	return NewEngine(hours.Static(hours.Default()), zap.NewNop(), WithClock(clock.Now))
}

func legalRequest(handoff time.Time) *domain.Request {
	return &domain.Request{
		ID:             "req-1",
		Status:         domain.StatusInReview,
		ReviewAudience: domain.AudienceLegal,
		LegalReview:    domain.ReviewState{Status: domain.ReviewInProgress},
		TimeTracking:   domain.TimeTracking{LegalHandoffAt: domain.Ptr(handoff)},
	}
}

func TestCalculateAndUpdateStageTimeReviewerToSubmitter(t *testing.T) {
	clock := &fakeClock{t: monday(1, 13)}
	req := legalRequest(monday(1, 9))

	res := newEngine(clock).CalculateAndUpdateStageTime(context.Background(), req, StageLegal, PartySubmitter)
	require.Empty(t, res.Diagnostics)

	v, ok := res.Delta.LegalReviewerHours.Get()
	require.True(t, ok)
	require.Equal(t, 4.0, v)

	total, ok := res.Delta.TotalReviewerHours.Get()
	require.True(t, ok)
	require.Equal(t, 4.0, total)

	handoff, ok := res.Delta.LegalHandoffAt.Get()
	require.True(t, ok)
	require.Equal(t, clock.t, *handoff)

	require.False(t, res.Delta.LegalSubmitterHours.IsSet())
	require.False(t, res.Delta.TotalSubmitterHours.IsSet())
}

func TestCalculateAttributesSubmitterWhileWaiting(t *testing.T) {
	clock := &fakeClock{t: monday(2, 11)}
	req := legalRequest(monday(1, 16))
	req.LegalReview.Status = domain.ReviewWaitingOnSubmitter
	req.TimeTracking.TotalSubmitterHours = 1.5

	res := newEngine(clock).CalculateAndUpdateStageTime(context.Background(), req, StageLegal, PartyReviewer)

	v, _ := res.Delta.LegalSubmitterHours.Get()
	require.Equal(t, 3.0, v)
	total, _ := res.Delta.TotalSubmitterHours.Get()
	require.Equal(t, 4.5, total)
}

func TestCalculateMissingReferenceIsDegraded(t *testing.T) {
	clock := &fakeClock{t: monday(1, 13)}
	req := legalRequest(monday(1, 9))
	req.TimeTracking.LegalHandoffAt = nil

	res := newEngine(clock).CalculateAndUpdateStageTime(context.Background(), req, StageLegal, PartyNone)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, domain.DiagTimeTrackingDegraded, res.Diagnostics[0].Kind)
	require.False(t, res.Delta.LegalReviewerHours.IsSet())
}

func TestCalculateFallsBackToStatusTimestamp(t *testing.T) {
	clock := &fakeClock{t: monday(1, 12)}
	req := legalRequest(monday(1, 9))
	req.TimeTracking.LegalHandoffAt = nil
	req.LegalReview.StatusUpdatedAt = domain.Ptr(monday(1, 10))

	res := newEngine(clock).CalculateAndUpdateStageTime(context.Background(), req, StageLegal, PartyNone)
	require.Empty(t, res.Diagnostics)
	v, _ := res.Delta.LegalReviewerHours.Get()
	require.Equal(t, 2.0, v)

	// PartyNone закрывает этап, но поле было nil — изменения нет
	require.False(t, res.Delta.LegalHandoffAt.IsSet())
}

func TestHoldTimeIsExcluded(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: monday(1, 11)}
	engine := newEngine(clock)
	req := legalRequest(monday(1, 9))

	paused := engine.PauseTimeTracking(ctx, req)
	paused.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 2.0, req.TimeTracking.LegalReviewerHours)
	require.Nil(t, req.TimeTracking.LegalHandoffAt)
	require.NotNil(t, req.TimeTracking.PausedAt)

	// На паузе начисления нет
	clock.t = monday(2, 15)
	idle := engine.CalculateAndUpdateStageTime(ctx, req, StageLegal, PartySubmitter)
	require.False(t, idle.Delta.LegalReviewerHours.IsSet())

	clock.t = monday(3, 11)
	resumed := engine.ResumeTimeTracking(ctx, req, domain.StatusInReview)
	resumed.Delta.ApplyTo(&req.TimeTracking)
	require.Nil(t, req.TimeTracking.PausedAt)
	require.Equal(t, monday(3, 11), *req.TimeTracking.LegalHandoffAt)

	clock.t = monday(3, 12)
	res := engine.CalculateAndUpdateStageTime(ctx, req, StageLegal, PartySubmitter)
	res.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 3.0, req.TimeTracking.LegalReviewerHours)
	require.Equal(t, 3.0, req.TimeTracking.TotalReviewerHours)
}

func TestHoldAndResumeFromCloseout(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: monday(1, 11)}
	engine := newEngine(clock)
	req := &domain.Request{
		ID:             "req-1",
		Status:         domain.StatusCloseout,
		ReviewAudience: domain.AudienceLegal,
		LegalReview:    domain.ReviewState{Status: domain.ReviewCompleted},
		TimeTracking:   domain.TimeTracking{CloseoutHandoffAt: domain.Ptr(monday(1, 9))},
	}

	paused := engine.PauseTimeTracking(ctx, req)
	paused.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 2.0, req.TimeTracking.CloseoutHours)
	require.Equal(t, 2.0, req.TimeTracking.TotalSubmitterHours)
	require.Nil(t, req.TimeTracking.CloseoutHandoffAt)
	require.NotNil(t, req.TimeTracking.PausedAt)
	req.Status = domain.StatusOnHold

	clock.t = monday(2, 15)
	resumed := engine.ResumeTimeTracking(ctx, req, domain.StatusCloseout)
	resumed.Delta.ApplyTo(&req.TimeTracking)
	req.Status = domain.StatusCloseout
	require.Nil(t, req.TimeTracking.PausedAt)
	require.Equal(t, monday(2, 15), *req.TimeTracking.CloseoutHandoffAt)
	require.Nil(t, req.TimeTracking.LegalHandoffAt)

	clock.t = monday(2, 16)
	done := engine.CalculateAndUpdateStageTime(ctx, req, StageCloseout, PartyNone)
	done.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 3.0, req.TimeTracking.CloseoutHours)
	require.Equal(t, 3.0, req.TimeTracking.TotalSubmitterHours)
	require.Zero(t, req.TimeTracking.TotalReviewerHours)
}

func TestHoldWhileWaitingOnSubmitter(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: monday(1, 12)}
	engine := newEngine(clock)
	req := legalRequest(monday(1, 9))
	req.LegalReview.Status = domain.ReviewWaitingOnSubmitter

	// До паузы трек был у автора: часы уходят ему
	paused := engine.PauseTimeTracking(ctx, req)
	require.False(t, paused.Delta.LegalReviewerHours.IsSet())
	paused.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 3.0, req.TimeTracking.LegalSubmitterHours)
	require.Equal(t, 3.0, req.TimeTracking.TotalSubmitterHours)
	require.Nil(t, req.TimeTracking.LegalHandoffAt)

	clock.t = monday(2, 10)
	resumed := engine.ResumeTimeTracking(ctx, req, domain.StatusInReview)
	resumed.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, monday(2, 10), *req.TimeTracking.LegalHandoffAt)

	// Автор отвечает через час после возобновления
	clock.t = monday(2, 11)
	res := engine.CalculateAndUpdateStageTime(ctx, req, StageLegal, PartyReviewer)
	res.Delta.ApplyTo(&req.TimeTracking)
	require.Equal(t, 4.0, req.TimeTracking.LegalSubmitterHours)
	require.Equal(t, 4.0, req.TimeTracking.TotalSubmitterHours)
	require.Zero(t, req.TimeTracking.LegalReviewerHours)
}

func TestShortHandoffsAccumulate(t *testing.T) {
	ctx := context.Background()
	start := monday(1, 9)
	clock := &fakeClock{t: start}
	engine := newEngine(clock)
	req := legalRequest(start)

	// 360 передач по 10 секунд: каждая меньше сотой часа
	for i := 1; i <= 360; i++ {
		clock.t = start.Add(time.Duration(i) * 10 * time.Second)
		res := engine.CalculateAndUpdateStageTime(ctx, req, StageLegal, PartyReviewer)
		res.Delta.ApplyTo(&req.TimeTracking)
	}

	require.InDelta(t, 1.0, req.TimeTracking.LegalReviewerHours, 1e-9)
	require.InDelta(t, 1.0, req.TimeTracking.TotalReviewerHours, 1e-9)
}

func TestPauseKeepsOriginalPauseTimestamp(t *testing.T) {
	clock := &fakeClock{t: monday(4, 10)}
	req := legalRequest(monday(1, 9))
	req.Status = domain.StatusOnHold
	req.TimeTracking.LegalHandoffAt = nil
	req.TimeTracking.PausedAt = domain.Ptr(monday(2, 10))

	res := newEngine(clock).PauseTimeTracking(context.Background(), req)
	require.False(t, res.Delta.PausedAt.IsSet())
	require.Empty(t, res.Diagnostics)
}

func TestStartStagesCloseout(t *testing.T) {
	clock := &fakeClock{t: monday(1, 10)}
	req := legalRequest(monday(1, 9))
	req.LegalReview.Status = domain.ReviewCompleted

	res := newEngine(clock).StartStages(context.Background(), req, domain.StatusCloseout)
	at, ok := res.Delta.CloseoutHandoffAt.Get()
	require.True(t, ok)
	require.Equal(t, clock.t, *at)

	clock.t = monday(2, 10)
	res.Delta.ApplyTo(&req.TimeTracking)
	done := newEngine(clock).CalculateAndUpdateStageTime(context.Background(), req, StageCloseout, PartyNone)
	closeout, _ := done.Delta.CloseoutHours.Get()
	require.Equal(t, 8.0, closeout)
	submitter, _ := done.Delta.TotalSubmitterHours.Get()
	require.Equal(t, 8.0, submitter)
}

func TestActiveStages(t *testing.T) {
	req := &domain.Request{
		ReviewAudience:   domain.AudienceBoth,
		LegalReview:      domain.ReviewState{Status: domain.ReviewCompleted},
		ComplianceReview: domain.ReviewState{Status: domain.ReviewNotStarted},
	}
	require.Equal(t, []Stage{StageCompliance}, ActiveStages(req, domain.StatusInReview))
	require.Equal(t, []Stage{StageCloseout}, ActiveStages(req, domain.StatusCloseout))
	require.Empty(t, ActiveStages(req, domain.StatusDraft))
}

func TestWorkingHoursFallback(t *testing.T) {
	clock := &fakeClock{t: monday(1, 13)}
	engine := NewEngine(failingHours{}, zap.NewNop(), WithClock(clock.Now))

	res := engine.CalculateAndUpdateStageTime(context.Background(), legalRequest(monday(1, 9)), StageLegal, PartyNone)
	v, _ := res.Delta.LegalReviewerHours.Get()
	require.Equal(t, 4.0, v)
}
