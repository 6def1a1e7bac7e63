package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/console/service"
	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/hours"
	"github.com/xela07ax/review-workflow/internal/infra/auth"
)

type WorkingHoursService interface {
	WorkingHoursSettings(ctx context.Context) (hours.Settings, error)
	UpdateWorkingHours(ctx context.Context, st hours.Settings, actorID string) error
}

type SettingsHandler struct {
	service WorkingHoursService
	logger  *zap.Logger
}

func NewSettingsHandler(s WorkingHoursService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{service: s, logger: logger.Named("settings-handler")}
}

// GetWorkingHours: GET /v1/settings/working-hours
func (h *SettingsHandler) GetWorkingHours(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.WorkingHoursSettings(r.Context())
	if err != nil {
		h.logger.Error("failed to read working hours", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateWorkingHours: PUT /v1/settings/working-hours, только admin/legal_admin.
func (h *SettingsHandler) UpdateWorkingHours(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !caller.Roles.IsElevated() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required", Code: domain.DenyWrongRole})
		return
	}

	var st hours.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateWorkingHours(r.Context(), st, caller.ID); err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: domain.DenyInvalidInput})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
