package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность действия (включая запись и синхронизацию прав)
	ActionDuration *prometheus.HistogramVec

	// Traffic: действия по результату (success, denied, failed)
	ActionsTotal *prometheus.CounterVec

	// Errors: классификация отказов и деградаций
	ErrorTotal *prometheus.CounterVec

	// Переходы статусов заявки
	TransitionsTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object: без регистратора метрики пишутся в несвязанный реестр
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ActionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "review_action_duration_seconds",
			Help:    "Histogram of workflow action latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"action", "result"}),

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "review_actions_total",
			Help: "Total number of workflow actions by result.",
		}, []string{"action", "result"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "review_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // precondition, transition, persistence, permission_sync, time_tracking, signal, idempotency

		TransitionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "review_status_transitions_total",
			Help: "Total number of request status transitions.",
		}, []string{"from", "to"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "review_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open or half-open).",
		}, []string{"connector_id"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "review_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
