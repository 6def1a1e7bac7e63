package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/audit"
	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/infra"
	"github.com/xela07ax/review-workflow/internal/policy"
	"github.com/xela07ax/review-workflow/internal/timetracking"
	"github.com/xela07ax/review-workflow/internal/workflow"
)

// RequestStore: коллаборатор хранения. ApplyDelta атомарен в пределах вызова.
type RequestStore interface {
	Load(ctx context.Context, id string) (*domain.Request, error)
	ApplyDelta(ctx context.Context, id string, delta domain.RequestDelta) error
}

// ActionResult: новое состояние заявки и то, что изменилось.
type ActionResult struct {
	Request       *domain.Request     `json:"request"`
	ChangedFields []domain.Field      `json:"changed_fields"`
	Diagnostics   []domain.Diagnostic `json:"diagnostics,omitempty"`
}

// Orchestrator: единственный компонент, выполняющий переходы заявки.
// Состояние между действиями не кэшируется: каждое действие начинается с Load.
type Orchestrator struct {
	store     RequestStore
	gate      *policy.Gate
	tracking  *timetracking.Engine
	syncer    PermissionSyncer
	publisher StatusPublisher
	idem      IdempotencyGuard
	auditor   audit.Auditor
	metrics   *Metrics
	routing   workflow.RoutingPolicy
	now       func() time.Time
	logger    *zap.Logger
}

type OrchestratorOption func(*Orchestrator)

func WithPublisher(p StatusPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithIdempotency(g IdempotencyGuard) OrchestratorOption {
	return func(o *Orchestrator) { o.idem = g }
}

func WithAuditor(a audit.Auditor) OrchestratorOption {
	return func(o *Orchestrator) { o.auditor = a }
}

func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithRoutingPolicy(p workflow.RoutingPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.routing = p }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(store RequestStore, syncer PermissionSyncer, tracking *timetracking.Engine, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		gate:     policy.NewGate(),
		tracking: tracking,
		syncer:   syncer,
		routing:  workflow.RoutingForeside,
		now:      time.Now,
		logger:   logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return o
}

// Gate: слой прав для проверки "можно ли" без выполнения.
func (o *Orchestrator) Gate() *policy.Gate {
	return o.gate
}

// Get загружает заявку (чтение для HTTP-слоя).
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Request, error) {
	req, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, loadError(err)
	}
	return req, nil
}

// CheckPermission вычисляет предикат по свежему состоянию заявки.
func (o *Orchestrator) CheckPermission(ctx context.Context, caller domain.Caller, id string, action policy.Action, role domain.ReviewRole) (policy.Decision, error) {
	req, err := o.Get(ctx, id)
	if err != nil {
		return policy.Decision{}, err
	}
	return o.gate.Check(action, policy.Input{Request: req, Caller: caller, Role: role}), nil
}

// change: рабочая копия заявки и накапливаемый патч одного действия.
type change struct {
	o      *Orchestrator
	ctx    context.Context
	action policy.Action
	caller domain.Caller
	now    time.Time

	orig  *domain.Request
	cur   domain.Request
	delta domain.RequestDelta
	diags []domain.Diagnostic
}

// setStatus проверяет ребро графа и кладет статус в патч.
func (c *change) setStatus(to domain.RequestStatus) error {
	if err := workflow.CheckTransition(string(c.action), c.cur.Status, to); err != nil {
		return err
	}
	c.delta.Status = domain.Set(to)
	c.cur.Status = to
	if to == domain.StatusCompleted {
		c.delta.CompletedAt = domain.Set(domain.Ptr(c.now))
		c.cur.CompletedAt = domain.Ptr(c.now)
	}
	return nil
}

// setReview обновляет трек; в патч попадают только отличия от загруженного состояния.
func (c *change) setReview(role domain.ReviewRole, state domain.ReviewState) {
	if role == domain.ReviewLegal {
		c.cur.LegalReview = state
	} else {
		c.cur.ComplianceReview = state
	}
	c.delta.SetReview(role, domain.DiffReview(c.orig.Review(role), state))
}

// track применяет результат учета времени к рабочей копии и патчу.
func (c *change) track(res timetracking.Result) {
	res.Delta.ApplyTo(&c.cur.TimeTracking)
	c.delta.TimeTracking = c.delta.TimeTracking.Merge(res.Delta)
	c.diags = append(c.diags, res.Diagnostics...)
}

func (c *change) actor() string {
	return c.caller.ID
}

type plan func(c *change) error

// execute: общий каркас действия:
// Load -> Gate -> расчет патча -> одна запись -> синхронизация прав -> Reload.
func (o *Orchestrator) execute(ctx context.Context, action policy.Action, caller domain.Caller, id string, role domain.ReviewRole, build plan) (*ActionResult, error) {
	start := time.Now()
	event := audit.Event{
		ID:        uuid.New().String(),
		TraceID:   TraceIDFrom(ctx),
		RequestID: id,
		Action:    string(action),
		ActorID:   caller.ID,
		Timestamp: start,
	}

	result, err := o.run(ctx, action, caller, id, role, build, &event)

	event.DurationMs = time.Since(start).Milliseconds()
	outcome := "success"
	switch {
	case err == nil:
		event.Status = audit.StatusSuccess
	case errors.Is(err, domain.ErrPreconditionViolation), errors.Is(err, domain.ErrInvalidStateTransition):
		event.Status = audit.StatusDenied
		event.Error = err.Error()
		outcome = "denied"
	default:
		event.Status = audit.StatusFailed
		event.Error = err.Error()
		outcome = "failed"
	}

	o.metrics.ActionsTotal.WithLabelValues(string(action), outcome).Inc()
	o.metrics.ActionDuration.WithLabelValues(string(action), outcome).Observe(time.Since(start).Seconds())
	if o.auditor != nil {
		o.auditor.Log(event)
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, action policy.Action, caller domain.Caller, id string, role domain.ReviewRole, build plan, event *audit.Event) (*ActionResult, error) {
	// 1. Свежее состояние
	req, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, loadError(err)
	}
	event.FromStatus = string(req.Status)

	// 2. Права и предусловия: до любых побочных эффектов
	if err := o.gate.Check(action, policy.Input{Request: req, Caller: caller, Role: role}).Err(action); err != nil {
		o.countError(err)
		return nil, err
	}

	// 3-4. Патч: под-автоматы, учет времени, автопереход
	c := &change{o: o, ctx: ctx, action: action, caller: caller, now: o.now(), orig: req, cur: *req}
	if err := build(c); err != nil {
		o.countError(err)
		return nil, err
	}

	changes := c.delta.Fields()
	event.ChangedFields = fieldNames(changes)
	event.ToStatus = string(c.cur.Status)
	if len(changes) == 0 {
		// Нечего писать (например, повторное сохранение прогресса)
		return &ActionResult{Request: req, ChangedFields: changes, Diagnostics: c.diags}, nil
	}

	// Идемпотентность: ключ занимается только для действия, дошедшего до записи
	idemKey, diag, err := o.acquireIdempotency(ctx, action, id)
	if err != nil {
		o.countError(err)
		return nil, err
	}
	if diag != nil {
		c.diags = append(c.diags, *diag)
	}

	// 5. Одна атомарная запись
	if err := o.store.ApplyDelta(ctx, id, c.delta); err != nil {
		o.releaseIdempotency(ctx, idemKey)
		o.metrics.ErrorTotal.WithLabelValues("persistence").Inc()
		o.logger.Error("failed to persist request delta",
			zap.String("request_id", id),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w: %v", action, domain.ErrPersistence, err)
	}

	statusChanged := c.delta.Status.IsSet()
	if statusChanged {
		o.metrics.TransitionsTotal.WithLabelValues(string(req.Status), string(c.cur.Status)).Inc()
	}

	// 6. Синхронизация прав: best-effort, переход уже зафиксирован
	if statusChanged || c.delta.Attorney.IsSet() {
		if d := o.syncPermissions(ctx, id, c.cur.Status, action); d != nil {
			c.diags = append(c.diags, *d)
		}
	}
	if statusChanged && o.publisher != nil {
		if err := o.publisher.PublishStatus(ctx, id, c.cur.Status); err != nil {
			o.metrics.ErrorTotal.WithLabelValues("signal").Inc()
			o.logger.Warn("runtime signal delivery failed", zap.String("request_id", id), zap.Error(err))
			c.diags = append(c.diags, domain.Diagnostic{Kind: domain.DiagSignalFailure, Message: err.Error()})
		}
	}

	for _, d := range c.diags {
		if d.Kind == domain.DiagTimeTrackingDegraded {
			o.metrics.ErrorTotal.WithLabelValues("time_tracking").Inc()
		}
		event.Diagnostics = append(event.Diagnostics, fmt.Sprintf("%s: %s", d.Kind, d.Message))
	}

	// 7. Перечитываем; при сбое чтения отдаем рабочую копию — запись уже прошла
	updated, err := o.store.Load(ctx, id)
	if err != nil {
		o.logger.Warn("reload after transition failed, returning computed state",
			zap.String("request_id", id), zap.Error(err))
		cur := c.cur
		updated = &cur
	}

	o.logger.Info("workflow action applied",
		zap.String("request_id", id),
		zap.String("action", string(action)),
		zap.String("actor", caller.ID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(updated.Status)),
		zap.Int("changed_fields", len(changes)))

	return &ActionResult{Request: updated, ChangedFields: changes, Diagnostics: c.diags}, nil
}

func (o *Orchestrator) syncPermissions(ctx context.Context, id string, status domain.RequestStatus, action policy.Action) *domain.Diagnostic {
	res, err := o.syncer.SyncPermissions(ctx, id, status)
	if err == nil && res.Success {
		return nil
	}

	msg := res.Message
	if err != nil {
		msg = err.Error()
	}
	o.metrics.ErrorTotal.WithLabelValues("permission_sync").Inc()
	o.logger.Warn("permission sync failed, manual reconciliation required",
		zap.String("request_id", id),
		zap.String("status", string(status)),
		zap.String("action", string(action)),
		zap.String("trace_id", TraceIDFrom(ctx)),
		zap.String("reason", msg))
	return &domain.Diagnostic{Kind: domain.DiagPermissionSyncFailure, Message: msg}
}

func (o *Orchestrator) acquireIdempotency(ctx context.Context, action policy.Action, id string) (string, *domain.Diagnostic, error) {
	clientKey := idempotencyKeyFrom(ctx)
	if clientKey == "" || o.idem == nil {
		return "", nil, nil
	}

	key := infra.IdempotencyKey(string(action), id, clientKey)
	ok, err := o.idem.Acquire(ctx, key)
	if err != nil {
		// Хранилище ключей недоступно: не блокируем действие
		o.metrics.ErrorTotal.WithLabelValues("idempotency").Inc()
		o.logger.Warn("idempotency guard unavailable", zap.String("key", key), zap.Error(err))
		return "", &domain.Diagnostic{Kind: domain.DiagIdempotencyUnavailable, Message: err.Error()}, nil
	}
	if !ok {
		return "", nil, domain.NewPreconditionError(string(action), domain.DenyDuplicateAction,
			fmt.Sprintf("action already performed for idempotency key %q", clientKey))
	}
	return key, nil, nil
}

func (o *Orchestrator) releaseIdempotency(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := o.idem.Release(ctx, key); err != nil {
		o.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (o *Orchestrator) countError(err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidStateTransition):
		o.metrics.ErrorTotal.WithLabelValues("transition").Inc()
	case errors.Is(err, domain.ErrPreconditionViolation):
		o.metrics.ErrorTotal.WithLabelValues("precondition").Inc()
	}
}

func loadError(err error) error {
	if errors.Is(err, domain.ErrRequestNotFound) {
		return err
	}
	return fmt.Errorf("load request: %w: %v", domain.ErrPersistence, err)
}

func fieldNames(fields []domain.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}
