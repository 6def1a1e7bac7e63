package audit

import "time"

// Статусы события аудита.
const (
	StatusSuccess = "SUCCESS"
	StatusDenied  = "DENIED"
	StatusFailed  = "FAILED"
)

// Event: запись журнала действий над заявкой.
type Event struct {
	ID        string `json:"id"`         // UUID события
	TraceID   string `json:"trace_id"`   // Сквозной ID HTTP-запроса
	RequestID string `json:"request_id"` // Над какой заявкой
	Action    string `json:"action"`     // Что делали
	ActorID   string `json:"actor_id"`   // Кто делал

	FromStatus    string   `json:"from_status,omitempty"`
	ToStatus      string   `json:"to_status,omitempty"`
	ChangedFields []string `json:"changed_fields,omitempty"`
	Diagnostics   []string `json:"diagnostics,omitempty"`

	// Результат
	Status     string    `json:"status"` // SUCCESS, DENIED, FAILED
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
