package workflow

import (
	"fmt"
	"strings"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// Overrides: еще не сохраненные значения треков, чтобы заранее ответить
// на вопрос "если завершить ревью сейчас, продвинется ли заявка?".
type Overrides struct {
	LegalStatus       domain.Opt[domain.ReviewStatus]
	LegalOutcome      domain.Opt[domain.ReviewOutcome]
	ComplianceStatus  domain.Opt[domain.ReviewStatus]
	ComplianceOutcome domain.Opt[domain.ReviewOutcome]
}

// OverridesFor строит Overrides из нового состояния одного трека.
func OverridesFor(role domain.ReviewRole, state domain.ReviewState) Overrides {
	if role == domain.ReviewLegal {
		return Overrides{LegalStatus: domain.Set(state.Status), LegalOutcome: domain.Set(state.Outcome)}
	}
	return Overrides{ComplianceStatus: domain.Set(state.Status), ComplianceOutcome: domain.Set(state.Outcome)}
}

type Completion struct {
	Complete   bool
	NextStatus domain.RequestStatus
}

// CompletionOutcome: все ли обязательные треки завершены, и куда двигаться дальше.
// NotApproved в любом обязательном треке ведет сразу в Completed мимо Closeout.
func CompletionOutcome(req *domain.Request, ov Overrides) Completion {
	type track struct {
		status  domain.ReviewStatus
		outcome domain.ReviewOutcome
	}

	var required []track
	if req.ReviewAudience.RequiresLegal() {
		required = append(required, track{
			status:  valueOr(ov.LegalStatus, req.LegalReview.Status),
			outcome: valueOr(ov.LegalOutcome, req.LegalReview.Outcome),
		})
	}
	if req.ReviewAudience.RequiresCompliance() {
		required = append(required, track{
			status:  valueOr(ov.ComplianceStatus, req.ComplianceReview.Status),
			outcome: valueOr(ov.ComplianceOutcome, req.ComplianceReview.Outcome),
		})
	}
	if len(required) == 0 {
		return Completion{}
	}

	rejected := false
	for _, t := range required {
		if t.status != domain.ReviewCompleted {
			return Completion{}
		}
		if t.outcome == domain.OutcomeNotApproved {
			rejected = true
		}
	}

	if rejected {
		return Completion{Complete: true, NextStatus: domain.StatusCompleted}
	}
	return Completion{Complete: true, NextStatus: domain.StatusCloseout}
}

func valueOr[T any](o domain.Opt[T], def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

// RoutingPolicy: правило выхода из Closeout в фазу регуляторных документов.
type RoutingPolicy string

const (
	// RoutingForeside: только при обязательном Foreside-ревью.
	RoutingForeside RoutingPolicy = "foreside"
	// RoutingForesideOrRetail: при Foreside-ревью или розничном использовании.
	RoutingForesideOrRetail RoutingPolicy = "foreside_or_retail"
)

func ParseRoutingPolicy(s string) (RoutingPolicy, error) {
	switch p := RoutingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RoutingForeside, nil
	case RoutingForeside, RoutingForesideOrRetail:
		return p, nil
	default:
		return "", fmt.Errorf("workflow: unknown regulatory routing policy %q", s)
	}
}

// RequiresRegulatoryDocumentPhase: единственное место, где решается маршрут после Closeout.
func RequiresRegulatoryDocumentPhase(req *domain.Request, policy RoutingPolicy) bool {
	if policy == RoutingForesideOrRetail {
		return req.RequiresForesideReview || req.RequiresRetailUse
	}
	return req.RequiresForesideReview
}

// StatusAfterCloseout: следующий статус после закрытия.
func StatusAfterCloseout(req *domain.Request, policy RoutingPolicy) domain.RequestStatus {
	if RequiresRegulatoryDocumentPhase(req, policy) {
		return domain.StatusAwaitingForesideDocuments
	}
	return domain.StatusCompleted
}
