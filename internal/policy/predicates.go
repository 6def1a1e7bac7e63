package policy

import (
	"github.com/xela07ax/review-workflow/internal/domain"
)

func isOwnerOrAdmin(in Input) bool {
	return in.Request.IsOwner(in.Caller.ID) || in.Caller.Roles.Has(domain.RoleAdmin)
}

func isOwnerOrElevated(in Input) bool {
	return in.Request.IsOwner(in.Caller.ID) || in.Caller.Roles.IsElevated()
}

func requireStatus(in Input, allowed ...domain.RequestStatus) (Decision, bool) {
	for _, s := range allowed {
		if in.Request.Status == s {
			return Decision{}, true
		}
	}
	return deny(domain.DenyWrongStatus, "request is %s, action requires %v", in.Request.Status, allowed), false
}

func canSubmitRequest(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusDraft); !ok {
		return d
	}
	if !isOwnerOrAdmin(in) {
		return deny(domain.DenyWrongRole, "only the submitter may submit a draft")
	}
	if !in.Request.ReviewAudience.Valid() {
		return deny(domain.DenyInvalidInput, "review audience must be Legal, Compliance or Both")
	}
	return allow()
}

func canSaveDraft(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusDraft); !ok {
		return d
	}
	if !isOwnerOrAdmin(in) {
		return deny(domain.DenyWrongRole, "only the submitter may edit a draft")
	}
	return allow()
}

func canCancel(in Input) Decision {
	req := in.Request
	if req.Status.IsTerminal() {
		return deny(domain.DenyWrongStatus, "request is already %s", req.Status)
	}
	if in.Caller.Roles.IsElevated() {
		return allow()
	}
	if req.Status == domain.StatusDraft && req.IsOwner(in.Caller.ID) {
		return allow()
	}
	if req.IsOwner(in.Caller.ID) {
		return deny(domain.DenyWrongStatus, "submitter may cancel only while the request is Draft")
	}
	return deny(domain.DenyWrongRole, "only the submitter or a legal admin may cancel")
}

func canAssignAttorney(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusLegalIntake, domain.StatusAssignAttorney); !ok {
		return d
	}
	if !in.Caller.Roles.HasAny(domain.RoleLegalAdmin, domain.RoleAttorneyAssigner, domain.RoleAdmin) {
		return deny(domain.DenyWrongRole, "assigning an attorney requires legal admin or attorney assigner role")
	}
	return allow()
}

func canSendToCommittee(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusLegalIntake); !ok {
		return d
	}
	if !in.Request.ReviewAudience.RequiresLegal() {
		return deny(domain.DenyNotRequired, "legal review is not required for this request")
	}
	if !in.Caller.Roles.HasAny(domain.RoleLegalAdmin, domain.RoleAdmin) {
		return deny(domain.DenyWrongRole, "sending to committee requires legal admin role")
	}
	return allow()
}

// reviewerPredicate: общие правила для действий ревьюера над треком role:
// отправка решения, запрос изменений, сохранение прогресса.
func reviewerPredicate(role domain.ReviewRole) Predicate {
	return func(in Input) Decision {
		req := in.Request
		if d, ok := requireStatus(in, domain.StatusInReview); !ok {
			return d
		}
		if !req.ReviewAudience.Requires(role) {
			return deny(domain.DenyNotRequired, "%s review is not required for this request", role)
		}

		review := req.Review(role)
		switch review.Status {
		case domain.ReviewCompleted:
			return deny(domain.DenyAlreadyCompleted, "%s review is already completed", role)
		case domain.ReviewWaitingOnSubmitter:
			return deny(domain.DenyWrongStatus, "%s review is waiting on the submitter", role)
		case domain.ReviewNotRequired:
			return deny(domain.DenyNotRequired, "%s review was not activated", role)
		}

		if role == domain.ReviewLegal {
			return canActAsAttorney(in)
		}
		return canActAsComplianceReviewer(in, review)
	}
}

func canActAsAttorney(in Input) Decision {
	if in.Caller.Roles.IsElevated() {
		return allow()
	}
	if in.Request.Attorney == nil {
		return deny(domain.DenyNotAssigned, "no attorney is assigned to this request")
	}
	if in.Request.IsAssignedAttorney(in.Caller.ID) {
		return allow()
	}
	if in.Caller.Roles.Has(domain.RoleAttorney) {
		return deny(domain.DenyNotAssigned, "request is assigned to attorney %s", in.Request.Attorney.ID)
	}
	return deny(domain.DenyWrongRole, "only the assigned attorney or a legal admin may act on the legal review")
}

func canActAsComplianceReviewer(in Input, review domain.ReviewState) Decision {
	if in.Caller.Roles.Has(domain.RoleAdmin) {
		return allow()
	}
	if !in.Caller.Roles.Has(domain.RoleComplianceReviewer) {
		return deny(domain.DenyWrongRole, "compliance review requires compliance reviewer role")
	}
	if review.AssignedReviewer != nil && review.AssignedReviewer.ID != in.Caller.ID {
		return deny(domain.DenyNotAssigned, "compliance review is assigned to %s", review.AssignedReviewer.ID)
	}
	return allow()
}

func canActOnRoleReview(in Input) Decision {
	if !in.Role.Valid() {
		return deny(domain.DenyInvalidInput, "review role must be legal or compliance")
	}
	return reviewerPredicate(in.Role)(in)
}

func canResubmit(in Input) Decision {
	if !in.Role.Valid() {
		return deny(domain.DenyInvalidInput, "review role must be legal or compliance")
	}
	if d, ok := requireStatus(in, domain.StatusInReview); !ok {
		return d
	}
	if !in.Request.ReviewAudience.Requires(in.Role) {
		return deny(domain.DenyNotRequired, "%s review is not required for this request", in.Role)
	}
	if !isOwnerOrElevated(in) {
		return deny(domain.DenyWrongRole, "only the submitter may respond to review comments")
	}

	review := in.Request.Review(in.Role)
	if review.Status != domain.ReviewWaitingOnSubmitter || review.Outcome != domain.OutcomeRespondToCommentsAndResubmit {
		d := deny(domain.DenyWrongStatus, "%s review is %s with outcome %q, nothing to resubmit",
			in.Role, review.Status, review.Outcome)
		d.Kind = domain.ErrInvalidStateTransition
		return d
	}
	return allow()
}

func canCloseout(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusCloseout); !ok {
		return d
	}
	if !isOwnerOrElevated(in) {
		return deny(domain.DenyWrongRole, "only the submitter or a legal admin may close out")
	}
	return allow()
}

func canHold(in Input) Decision {
	req := in.Request
	if req.Status.IsTerminal() || req.Status == domain.StatusOnHold {
		return deny(domain.DenyWrongStatus, "request is %s and cannot be put on hold", req.Status)
	}
	if !in.Caller.Roles.IsElevated() {
		return deny(domain.DenyWrongRole, "putting a request on hold requires legal admin role")
	}
	return allow()
}

func canResume(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusOnHold); !ok {
		return d
	}
	if in.Request.PreviousStatus == nil {
		return deny(domain.DenyWrongStatus, "no previous status recorded, request cannot be resumed")
	}
	if !in.Caller.Roles.IsElevated() {
		return deny(domain.DenyWrongRole, "resuming a request requires legal admin role")
	}
	return allow()
}

func canCompleteRegulatoryDocuments(in Input) Decision {
	if d, ok := requireStatus(in, domain.StatusAwaitingForesideDocuments); !ok {
		return d
	}
	if !isOwnerOrElevated(in) {
		return deny(domain.DenyWrongRole, "only the submitter or a legal admin may complete regulatory documents")
	}
	return allow()
}
