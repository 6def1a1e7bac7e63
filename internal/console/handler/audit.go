package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/review-workflow/internal/audit"
)

type AuditReader interface {
	FetchLogs(ctx context.Context, requestID string, limit int) ([]audit.Event, error)
}

type AuditHandler struct {
	service AuditReader
}

func NewAuditHandler(s AuditReader) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает журнал действий по заявке, новые события первыми.
// GET /v1/requests/{id}/audit?limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	logs, err := h.service.FetchLogs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
