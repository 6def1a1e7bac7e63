package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/review-workflow/internal/domain"
)

var now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func TestIsValidTransitionExhaustive(t *testing.T) {
	type edge struct{ from, to domain.RequestStatus }
	valid := map[edge]bool{
		{domain.StatusDraft, domain.StatusLegalIntake}:                         true,
		{domain.StatusLegalIntake, domain.StatusAssignAttorney}:                true,
		{domain.StatusLegalIntake, domain.StatusInReview}:                      true,
		{domain.StatusAssignAttorney, domain.StatusInReview}:                   true,
		{domain.StatusInReview, domain.StatusCloseout}:                         true,
		{domain.StatusInReview, domain.StatusCompleted}:                        true,
		{domain.StatusCloseout, domain.StatusAwaitingForesideDocuments}:        true,
		{domain.StatusCloseout, domain.StatusCompleted}:                        true,
		{domain.StatusAwaitingForesideDocuments, domain.StatusCompleted}:       true,
	}
	nonTerminal := []domain.RequestStatus{
		domain.StatusDraft, domain.StatusLegalIntake, domain.StatusAssignAttorney,
		domain.StatusInReview, domain.StatusCloseout, domain.StatusAwaitingForesideDocuments,
	}
	for _, s := range nonTerminal {
		valid[edge{s, domain.StatusOnHold}] = true
		valid[edge{s, domain.StatusCancelled}] = true
		valid[edge{domain.StatusOnHold, s}] = true
	}
	valid[edge{domain.StatusOnHold, domain.StatusCancelled}] = true

	for _, from := range domain.AllStatuses {
		for _, to := range domain.AllStatuses {
			ok, err := IsValidTransition(from, to)
			require.NoError(t, err)
			require.Equal(t, valid[edge{from, to}], ok, "%s -> %s", from, to)
		}
	}
}

func TestIsValidTransitionUnknownFrom(t *testing.T) {
	_, err := IsValidTransition("Archived", domain.StatusDraft)
	require.ErrorIs(t, err, domain.ErrUnknownStatus)

	ok, err := IsValidTransition(domain.StatusDraft, "Archived")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckTransition(t *testing.T) {
	require.NoError(t, CheckTransition("submit", domain.StatusDraft, domain.StatusLegalIntake))

	err := CheckTransition("submit", domain.StatusCompleted, domain.StatusLegalIntake)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestSubmitOutcomes(t *testing.T) {
	cases := []struct {
		outcome domain.ReviewOutcome
		want    domain.ReviewStatus
	}{
		{domain.OutcomeApproved, domain.ReviewCompleted},
		{domain.OutcomeApprovedWithComments, domain.ReviewCompleted},
		{domain.OutcomeNotApproved, domain.ReviewCompleted},
		{domain.OutcomeRespondToCommentsAndResubmit, domain.ReviewWaitingOnSubmitter},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			in := domain.ReviewState{Status: domain.ReviewInProgress}
			out, err := Submit(in, tc.outcome, "notes", "attorney-1", now)
			require.NoError(t, err)
			require.Equal(t, tc.want, out.Status)
			require.Equal(t, tc.outcome, out.Outcome)
			require.Equal(t, now, *out.StatusUpdatedAt)

			if tc.want == domain.ReviewCompleted {
				require.Equal(t, "attorney-1", *out.CompletedBy)
				require.Equal(t, now, *out.CompletedAt)
			} else {
				require.Nil(t, out.CompletedAt)
			}
		})
	}
}

func TestSubmitRejectsUnknownOutcome(t *testing.T) {
	_, err := Submit(domain.ReviewState{Status: domain.ReviewInProgress}, "Maybe", "", "a", now)
	require.ErrorIs(t, err, domain.ErrPreconditionViolation)
}

func TestResubmit(t *testing.T) {
	in := domain.ReviewState{
		Status:  domain.ReviewWaitingOnSubmitter,
		Outcome: domain.OutcomeRespondToCommentsAndResubmit,
		Notes:   "fix section 2",
	}

	out, err := Resubmit(in, "done", "submitter-1", now)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewWaitingOnReviewer, out.Status)
	require.Equal(t, domain.OutcomeRespondToCommentsAndResubmit, out.Outcome)
	require.Equal(t, "fix section 2\n\ndone", out.Notes)
}

func TestResubmitWrongStatus(t *testing.T) {
	for _, status := range []domain.ReviewStatus{
		domain.ReviewNotStarted, domain.ReviewInProgress, domain.ReviewCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			in := domain.ReviewState{Status: status, Outcome: domain.OutcomeRespondToCommentsAndResubmit}
			_, err := Resubmit(in, "", "submitter-1", now)
			require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
		})
	}
}

func TestResubmitWrongOutcome(t *testing.T) {
	in := domain.ReviewState{Status: domain.ReviewWaitingOnSubmitter, Outcome: domain.OutcomeApproved}
	_, err := Resubmit(in, "", "submitter-1", now)

	var actionErr *domain.ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, domain.ErrInvalidStateTransition, actionErr.Kind)
}

func TestRequestChangesCycle(t *testing.T) {
	review := domain.ReviewState{Status: domain.ReviewInProgress}

	review, err := RequestChanges(review, "please clarify", "attorney-1", now)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewWaitingOnSubmitter, review.Status)

	review, err = Resubmit(review, "clarified", "submitter-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, domain.ReviewWaitingOnReviewer, review.Status)

	review, err = Submit(review, domain.OutcomeApproved, "", "attorney-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, domain.ReviewCompleted, review.Status)
	require.Equal(t, "please clarify\n\nclarified", review.Notes)
}

func TestSaveProgressKeepsReferenceTimestamp(t *testing.T) {
	review := Activate(domain.ReviewState{Status: domain.ReviewNotRequired})
	require.Equal(t, domain.ReviewNotStarted, review.Status)

	review, err := SaveProgress(review, domain.OutcomeNone, "draft", "attorney-1", now)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewInProgress, review.Status)
	require.Equal(t, now, *review.StatusUpdatedAt)

	review, err = SaveProgress(review, domain.OutcomeApprovedWithComments, "more", "attorney-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, now, *review.StatusUpdatedAt)
	require.Equal(t, domain.OutcomeApprovedWithComments, review.Outcome)
	require.Equal(t, "more", review.Notes)
}

func TestStart(t *testing.T) {
	started := Start(domain.ReviewState{Status: domain.ReviewNotStarted}, "attorney-1", now)
	require.Equal(t, domain.ReviewInProgress, started.Status)
	require.Equal(t, now, *started.StatusUpdatedAt)
	require.Equal(t, "attorney-1", *started.StatusUpdatedBy)

	for _, status := range []domain.ReviewStatus{
		domain.ReviewInProgress, domain.ReviewWaitingOnReviewer, domain.ReviewWaitingOnSubmitter, domain.ReviewCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			in := domain.ReviewState{Status: status, StatusUpdatedAt: domain.Ptr(now.Add(-time.Hour))}
			require.Equal(t, in, Start(in, "attorney-1", now))
		})
	}
}

func TestDecisionOnUntouchedReviewPassesThroughInProgress(t *testing.T) {
	review := Start(domain.ReviewState{Status: domain.ReviewNotStarted}, "attorney-1", now)
	require.Equal(t, domain.ReviewInProgress, review.Status)

	review, err := Submit(review, domain.OutcomeApproved, "", "attorney-1", now)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewCompleted, review.Status)
	require.Equal(t, "attorney-1", *review.CompletedBy)
}

func TestCompletionOutcomeBoth(t *testing.T) {
	req := &domain.Request{
		ReviewAudience:   domain.AudienceBoth,
		LegalReview:      domain.ReviewState{Status: domain.ReviewInProgress},
		ComplianceReview: domain.ReviewState{Status: domain.ReviewInProgress},
	}

	legal, err := Submit(req.LegalReview, domain.OutcomeApproved, "", "attorney-1", now)
	require.NoError(t, err)
	res := CompletionOutcome(req, OverridesFor(domain.ReviewLegal, legal))
	require.False(t, res.Complete)

	req.LegalReview = legal
	compliance, err := Submit(req.ComplianceReview, domain.OutcomeApprovedWithComments, "", "cr-1", now)
	require.NoError(t, err)

	first := CompletionOutcome(req, OverridesFor(domain.ReviewCompliance, compliance))
	second := CompletionOutcome(req, OverridesFor(domain.ReviewCompliance, compliance))
	require.Equal(t, Completion{Complete: true, NextStatus: domain.StatusCloseout}, first)
	require.Equal(t, first, second)
}

func TestCompletionOutcomeLegalNotApproved(t *testing.T) {
	req := &domain.Request{
		ReviewAudience:   domain.AudienceLegal,
		LegalReview:      domain.ReviewState{Status: domain.ReviewInProgress},
		ComplianceReview: domain.ReviewState{Status: domain.ReviewNotRequired},
	}

	legal, err := Submit(req.LegalReview, domain.OutcomeNotApproved, "", "attorney-1", now)
	require.NoError(t, err)

	res := CompletionOutcome(req, OverridesFor(domain.ReviewLegal, legal))
	require.Equal(t, Completion{Complete: true, NextStatus: domain.StatusCompleted}, res)
}

func TestCompletionOutcomeWithoutOverrides(t *testing.T) {
	req := &domain.Request{
		ReviewAudience:   domain.AudienceCompliance,
		ComplianceReview: domain.ReviewState{Status: domain.ReviewCompleted, Outcome: domain.OutcomeApproved},
	}
	require.Equal(t, Completion{Complete: true, NextStatus: domain.StatusCloseout}, CompletionOutcome(req, Overrides{}))
}

func TestRequiresRegulatoryDocumentPhase(t *testing.T) {
	retail := &domain.Request{RequiresRetailUse: true}
	foreside := &domain.Request{RequiresForesideReview: true}

	require.False(t, RequiresRegulatoryDocumentPhase(retail, RoutingForeside))
	require.True(t, RequiresRegulatoryDocumentPhase(retail, RoutingForesideOrRetail))
	require.True(t, RequiresRegulatoryDocumentPhase(foreside, RoutingForeside))

	require.Equal(t, domain.StatusCompleted, StatusAfterCloseout(retail, RoutingForeside))
	require.Equal(t, domain.StatusAwaitingForesideDocuments, StatusAfterCloseout(foreside, RoutingForeside))

	p, err := ParseRoutingPolicy("")
	require.NoError(t, err)
	require.Equal(t, RoutingForeside, p)
	_, err = ParseRoutingPolicy("retail")
	require.Error(t, err)
}
