package domain

import "time"

// Opt: явный тег "поле задано" для разреженного патча.
// Нулевое значение означает "поле отсутствует в патче".
// Для nullable-полей используется Opt[*T]: Set(nil) означает "записать NULL".
type Opt[T any] struct {
	value T
	set   bool
}

func Set[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Opt[T]) IsSet() bool {
	return o.set
}

// Field: имя изменяемого поля; совпадает с именем колонки в хранилище.
type Field string

const (
	FieldTitle                  Field = "title"
	FieldDescription            Field = "description"
	FieldReviewAudience         Field = "review_audience"
	FieldRequiresForeside       Field = "requires_foreside_review"
	FieldRequiresRetailUse      Field = "requires_retail_use"
	FieldStatus                 Field = "status"
	FieldPreviousStatus         Field = "previous_status"
	FieldAttorney               Field = "attorney"
	FieldSubmittedAt            Field = "submitted_at"
	FieldSubmittedBy            Field = "submitted_by"
	FieldHoldReason             Field = "hold_reason"
	FieldHeldAt                 Field = "held_at"
	FieldHeldBy                 Field = "held_by"
	FieldCancelReason           Field = "cancel_reason"
	FieldCancelledAt            Field = "cancelled_at"
	FieldCancelledBy            Field = "cancelled_by"
	FieldTrackingID             Field = "tracking_id"
	FieldCloseoutNotes          Field = "closeout_notes"
	FieldClosedOutAt            Field = "closed_out_at"
	FieldClosedOutBy            Field = "closed_out_by"
	FieldRegulatoryDocumentRefs Field = "regulatory_document_refs"
	FieldRegulatoryCompletedAt  Field = "regulatory_completed_at"
	FieldRegulatoryCompletedBy  Field = "regulatory_completed_by"
	FieldCompletedAt            Field = "completed_at"

	FieldTTLegalReviewerHours       Field = "tt_legal_reviewer_hours"
	FieldTTLegalSubmitterHours      Field = "tt_legal_submitter_hours"
	FieldTTComplianceReviewerHours  Field = "tt_compliance_reviewer_hours"
	FieldTTComplianceSubmitterHours Field = "tt_compliance_submitter_hours"
	FieldTTCloseoutHours            Field = "tt_closeout_hours"
	FieldTTTotalReviewerHours       Field = "tt_total_reviewer_hours"
	FieldTTTotalSubmitterHours      Field = "tt_total_submitter_hours"
	FieldTTLegalHandoffAt           Field = "tt_legal_handoff_at"
	FieldTTComplianceHandoffAt      Field = "tt_compliance_handoff_at"
	FieldTTCloseoutHandoffAt        Field = "tt_closeout_handoff_at"
	FieldTTPausedAt                 Field = "tt_paused_at"
)

// Суффиксы полей трека ревью; полное имя = "<role>_review_" + суффикс.
const (
	reviewStatus           = "status"
	reviewOutcome          = "outcome"
	reviewNotes            = "notes"
	reviewAssignedReviewer = "assigned_reviewer"
	reviewStatusUpdatedAt  = "status_updated_at"
	reviewStatusUpdatedBy  = "status_updated_by"
	reviewCompletedAt      = "completed_at"
	reviewCompletedBy      = "completed_by"
)

// ReviewField строит имя поля трека, например legal_review_status.
func ReviewField(role ReviewRole, suffix string) Field {
	return Field(string(role) + "_review_" + suffix)
}

// Change: одно заданное поле патча со значением, пригодным для хранилища.
// Значения: string, *string, bool, float64, *time.Time, []string, *Principal.
type Change struct {
	Field Field
	Value any
}

// ReviewDelta: изменения одного трека ревью.
type ReviewDelta struct {
	Status           Opt[ReviewStatus]
	Outcome          Opt[ReviewOutcome]
	Notes            Opt[string]
	AssignedReviewer Opt[*Principal]
	StatusUpdatedAt  Opt[*time.Time]
	StatusUpdatedBy  Opt[*string]
	CompletedAt      Opt[*time.Time]
	CompletedBy      Opt[*string]
}

// DiffReview возвращает только поля, отличающиеся между old и updated.
func DiffReview(old, updated ReviewState) ReviewDelta {
	var d ReviewDelta
	if old.Status != updated.Status {
		d.Status = Set(updated.Status)
	}
	if old.Outcome != updated.Outcome {
		d.Outcome = Set(updated.Outcome)
	}
	if old.Notes != updated.Notes {
		d.Notes = Set(updated.Notes)
	}
	if !equalPrincipal(old.AssignedReviewer, updated.AssignedReviewer) {
		d.AssignedReviewer = Set(updated.AssignedReviewer)
	}
	if !equalTime(old.StatusUpdatedAt, updated.StatusUpdatedAt) {
		d.StatusUpdatedAt = Set(updated.StatusUpdatedAt)
	}
	if !equalString(old.StatusUpdatedBy, updated.StatusUpdatedBy) {
		d.StatusUpdatedBy = Set(updated.StatusUpdatedBy)
	}
	if !equalTime(old.CompletedAt, updated.CompletedAt) {
		d.CompletedAt = Set(updated.CompletedAt)
	}
	if !equalString(old.CompletedBy, updated.CompletedBy) {
		d.CompletedBy = Set(updated.CompletedBy)
	}
	return d
}

func (d ReviewDelta) changes(role ReviewRole) []Change {
	var cs []Change
	cs = appendChange(cs, ReviewField(role, reviewStatus), d.Status, func(v ReviewStatus) any { return string(v) })
	cs = appendChange(cs, ReviewField(role, reviewOutcome), d.Outcome, func(v ReviewOutcome) any { return string(v) })
	cs = appendChange(cs, ReviewField(role, reviewNotes), d.Notes, asAny[string])
	cs = appendChange(cs, ReviewField(role, reviewAssignedReviewer), d.AssignedReviewer, asAny[*Principal])
	cs = appendChange(cs, ReviewField(role, reviewStatusUpdatedAt), d.StatusUpdatedAt, asAny[*time.Time])
	cs = appendChange(cs, ReviewField(role, reviewStatusUpdatedBy), d.StatusUpdatedBy, asAny[*string])
	cs = appendChange(cs, ReviewField(role, reviewCompletedAt), d.CompletedAt, asAny[*time.Time])
	cs = appendChange(cs, ReviewField(role, reviewCompletedBy), d.CompletedBy, asAny[*string])
	return cs
}

func (d ReviewDelta) applyTo(s *ReviewState) {
	applyOpt(&s.Status, d.Status)
	applyOpt(&s.Outcome, d.Outcome)
	applyOpt(&s.Notes, d.Notes)
	applyOpt(&s.AssignedReviewer, d.AssignedReviewer)
	applyOpt(&s.StatusUpdatedAt, d.StatusUpdatedAt)
	applyOpt(&s.StatusUpdatedBy, d.StatusUpdatedBy)
	applyOpt(&s.CompletedAt, d.CompletedAt)
	applyOpt(&s.CompletedBy, d.CompletedBy)
}

// TimeTrackingDelta: изменения учета времени. Возвращается движком учета,
// применяется оркестратором в составе общего патча.
type TimeTrackingDelta struct {
	LegalReviewerHours       Opt[float64]
	LegalSubmitterHours      Opt[float64]
	ComplianceReviewerHours  Opt[float64]
	ComplianceSubmitterHours Opt[float64]
	CloseoutHours            Opt[float64]
	TotalReviewerHours       Opt[float64]
	TotalSubmitterHours      Opt[float64]
	LegalHandoffAt           Opt[*time.Time]
	ComplianceHandoffAt      Opt[*time.Time]
	CloseoutHandoffAt        Opt[*time.Time]
	PausedAt                 Opt[*time.Time]
}

func (d TimeTrackingDelta) changes() []Change {
	var cs []Change
	cs = appendChange(cs, FieldTTLegalReviewerHours, d.LegalReviewerHours, asAny[float64])
	cs = appendChange(cs, FieldTTLegalSubmitterHours, d.LegalSubmitterHours, asAny[float64])
	cs = appendChange(cs, FieldTTComplianceReviewerHours, d.ComplianceReviewerHours, asAny[float64])
	cs = appendChange(cs, FieldTTComplianceSubmitterHours, d.ComplianceSubmitterHours, asAny[float64])
	cs = appendChange(cs, FieldTTCloseoutHours, d.CloseoutHours, asAny[float64])
	cs = appendChange(cs, FieldTTTotalReviewerHours, d.TotalReviewerHours, asAny[float64])
	cs = appendChange(cs, FieldTTTotalSubmitterHours, d.TotalSubmitterHours, asAny[float64])
	cs = appendChange(cs, FieldTTLegalHandoffAt, d.LegalHandoffAt, asAny[*time.Time])
	cs = appendChange(cs, FieldTTComplianceHandoffAt, d.ComplianceHandoffAt, asAny[*time.Time])
	cs = appendChange(cs, FieldTTCloseoutHandoffAt, d.CloseoutHandoffAt, asAny[*time.Time])
	cs = appendChange(cs, FieldTTPausedAt, d.PausedAt, asAny[*time.Time])
	return cs
}

// ApplyTo применяет изменения учета времени к значению.
func (d TimeTrackingDelta) ApplyTo(t *TimeTracking) {
	applyOpt(&t.LegalReviewerHours, d.LegalReviewerHours)
	applyOpt(&t.LegalSubmitterHours, d.LegalSubmitterHours)
	applyOpt(&t.ComplianceReviewerHours, d.ComplianceReviewerHours)
	applyOpt(&t.ComplianceSubmitterHours, d.ComplianceSubmitterHours)
	applyOpt(&t.CloseoutHours, d.CloseoutHours)
	applyOpt(&t.TotalReviewerHours, d.TotalReviewerHours)
	applyOpt(&t.TotalSubmitterHours, d.TotalSubmitterHours)
	applyOpt(&t.LegalHandoffAt, d.LegalHandoffAt)
	applyOpt(&t.ComplianceHandoffAt, d.ComplianceHandoffAt)
	applyOpt(&t.CloseoutHandoffAt, d.CloseoutHandoffAt)
	applyOpt(&t.PausedAt, d.PausedAt)
}

// Merge накладывает other поверх d: заданные в other поля побеждают.
func (d TimeTrackingDelta) Merge(other TimeTrackingDelta) TimeTrackingDelta {
	mergeOpt(&d.LegalReviewerHours, other.LegalReviewerHours)
	mergeOpt(&d.LegalSubmitterHours, other.LegalSubmitterHours)
	mergeOpt(&d.ComplianceReviewerHours, other.ComplianceReviewerHours)
	mergeOpt(&d.ComplianceSubmitterHours, other.ComplianceSubmitterHours)
	mergeOpt(&d.CloseoutHours, other.CloseoutHours)
	mergeOpt(&d.TotalReviewerHours, other.TotalReviewerHours)
	mergeOpt(&d.TotalSubmitterHours, other.TotalSubmitterHours)
	mergeOpt(&d.LegalHandoffAt, other.LegalHandoffAt)
	mergeOpt(&d.ComplianceHandoffAt, other.ComplianceHandoffAt)
	mergeOpt(&d.CloseoutHandoffAt, other.CloseoutHandoffAt)
	mergeOpt(&d.PausedAt, other.PausedAt)
	return d
}

// RequestDelta: разреженный патч заявки. Один патч = одна атомарная запись.
type RequestDelta struct {
	Title       Opt[string]
	Description Opt[string]

	ReviewAudience         Opt[ReviewAudience]
	RequiresForesideReview Opt[bool]
	RequiresRetailUse      Opt[bool]

	Status         Opt[RequestStatus]
	PreviousStatus Opt[*RequestStatus]
	Attorney       Opt[*Principal]

	SubmittedAt Opt[*time.Time]
	SubmittedBy Opt[*string]

	HoldReason Opt[*string]
	HeldAt     Opt[*time.Time]
	HeldBy     Opt[*string]

	CancelReason Opt[*string]
	CancelledAt  Opt[*time.Time]
	CancelledBy  Opt[*string]

	TrackingID    Opt[*string]
	CloseoutNotes Opt[*string]
	ClosedOutAt   Opt[*time.Time]
	ClosedOutBy   Opt[*string]

	RegulatoryDocumentRefs Opt[[]string]
	RegulatoryCompletedAt  Opt[*time.Time]
	RegulatoryCompletedBy  Opt[*string]

	CompletedAt Opt[*time.Time]

	LegalReview      ReviewDelta
	ComplianceReview ReviewDelta
	TimeTracking     TimeTrackingDelta
}

// SetReview кладет патч трека в нужную роль.
func (d *RequestDelta) SetReview(role ReviewRole, rd ReviewDelta) {
	if role == ReviewLegal {
		d.LegalReview = rd
		return
	}
	d.ComplianceReview = rd
}

// Changes перечисляет заданные поля в стабильном порядке.
func (d RequestDelta) Changes() []Change {
	var cs []Change
	cs = appendChange(cs, FieldTitle, d.Title, asAny[string])
	cs = appendChange(cs, FieldDescription, d.Description, asAny[string])
	cs = appendChange(cs, FieldReviewAudience, d.ReviewAudience, func(v ReviewAudience) any { return string(v) })
	cs = appendChange(cs, FieldRequiresForeside, d.RequiresForesideReview, asAny[bool])
	cs = appendChange(cs, FieldRequiresRetailUse, d.RequiresRetailUse, asAny[bool])
	cs = appendChange(cs, FieldStatus, d.Status, func(v RequestStatus) any { return string(v) })
	cs = appendChange(cs, FieldPreviousStatus, d.PreviousStatus, func(v *RequestStatus) any {
		if v == nil {
			return (*string)(nil)
		}
		s := string(*v)
		return &s
	})
	cs = appendChange(cs, FieldAttorney, d.Attorney, asAny[*Principal])
	cs = appendChange(cs, FieldSubmittedAt, d.SubmittedAt, asAny[*time.Time])
	cs = appendChange(cs, FieldSubmittedBy, d.SubmittedBy, asAny[*string])
	cs = appendChange(cs, FieldHoldReason, d.HoldReason, asAny[*string])
	cs = appendChange(cs, FieldHeldAt, d.HeldAt, asAny[*time.Time])
	cs = appendChange(cs, FieldHeldBy, d.HeldBy, asAny[*string])
	cs = appendChange(cs, FieldCancelReason, d.CancelReason, asAny[*string])
	cs = appendChange(cs, FieldCancelledAt, d.CancelledAt, asAny[*time.Time])
	cs = appendChange(cs, FieldCancelledBy, d.CancelledBy, asAny[*string])
	cs = appendChange(cs, FieldTrackingID, d.TrackingID, asAny[*string])
	cs = appendChange(cs, FieldCloseoutNotes, d.CloseoutNotes, asAny[*string])
	cs = appendChange(cs, FieldClosedOutAt, d.ClosedOutAt, asAny[*time.Time])
	cs = appendChange(cs, FieldClosedOutBy, d.ClosedOutBy, asAny[*string])
	cs = appendChange(cs, FieldRegulatoryDocumentRefs, d.RegulatoryDocumentRefs, asAny[[]string])
	cs = appendChange(cs, FieldRegulatoryCompletedAt, d.RegulatoryCompletedAt, asAny[*time.Time])
	cs = appendChange(cs, FieldRegulatoryCompletedBy, d.RegulatoryCompletedBy, asAny[*string])
	cs = appendChange(cs, FieldCompletedAt, d.CompletedAt, asAny[*time.Time])
	cs = append(cs, d.LegalReview.changes(ReviewLegal)...)
	cs = append(cs, d.ComplianceReview.changes(ReviewCompliance)...)
	cs = append(cs, d.TimeTracking.changes()...)
	return cs
}

// Fields: имена измененных полей (для аудита).
func (d RequestDelta) Fields() []Field {
	cs := d.Changes()
	fields := make([]Field, 0, len(cs))
	for _, c := range cs {
		fields = append(fields, c.Field)
	}
	return fields
}

func (d RequestDelta) IsEmpty() bool {
	return len(d.Changes()) == 0
}

// ApplyTo применяет патч к заявке в памяти (in-memory хранилище, тесты).
func (d RequestDelta) ApplyTo(r *Request) {
	applyOpt(&r.Title, d.Title)
	applyOpt(&r.Description, d.Description)
	applyOpt(&r.ReviewAudience, d.ReviewAudience)
	applyOpt(&r.RequiresForesideReview, d.RequiresForesideReview)
	applyOpt(&r.RequiresRetailUse, d.RequiresRetailUse)
	applyOpt(&r.Status, d.Status)
	applyOpt(&r.PreviousStatus, d.PreviousStatus)
	applyOpt(&r.Attorney, d.Attorney)
	applyOpt(&r.SubmittedAt, d.SubmittedAt)
	applyOpt(&r.SubmittedBy, d.SubmittedBy)
	applyOpt(&r.HoldReason, d.HoldReason)
	applyOpt(&r.HeldAt, d.HeldAt)
	applyOpt(&r.HeldBy, d.HeldBy)
	applyOpt(&r.CancelReason, d.CancelReason)
	applyOpt(&r.CancelledAt, d.CancelledAt)
	applyOpt(&r.CancelledBy, d.CancelledBy)
	applyOpt(&r.TrackingID, d.TrackingID)
	applyOpt(&r.CloseoutNotes, d.CloseoutNotes)
	applyOpt(&r.ClosedOutAt, d.ClosedOutAt)
	applyOpt(&r.ClosedOutBy, d.ClosedOutBy)
	applyOpt(&r.RegulatoryDocumentRefs, d.RegulatoryDocumentRefs)
	applyOpt(&r.RegulatoryCompletedAt, d.RegulatoryCompletedAt)
	applyOpt(&r.RegulatoryCompletedBy, d.RegulatoryCompletedBy)
	applyOpt(&r.CompletedAt, d.CompletedAt)
	d.LegalReview.applyTo(&r.LegalReview)
	d.ComplianceReview.applyTo(&r.ComplianceReview)
	d.TimeTracking.ApplyTo(&r.TimeTracking)
}

func appendChange[T any](cs []Change, f Field, o Opt[T], conv func(T) any) []Change {
	if v, ok := o.Get(); ok {
		return append(cs, Change{Field: f, Value: conv(v)})
	}
	return cs
}

func asAny[T any](v T) any { return v }

func applyOpt[T any](dst *T, o Opt[T]) {
	if v, ok := o.Get(); ok {
		*dst = v
	}
}

func mergeOpt[T any](dst *Opt[T], o Opt[T]) {
	if o.IsSet() {
		*dst = o
	}
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalPrincipal(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Ptr: хелпер для nullable-полей патча.
func Ptr[T any](v T) *T {
	return &v
}
