package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/review-workflow/internal/domain"
)

type errorResponse struct {
	Error string          `json:"error"`
	Code  domain.DenyCode `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor переводит таксономию ошибок ядра в HTTP-код.
func statusFor(err error) int {
	var ae *domain.ActionError
	if errors.As(err, &ae) {
		switch ae.Code {
		case domain.DenyWrongRole, domain.DenyNotAssigned:
			return http.StatusForbidden
		case domain.DenyInvalidInput:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusConflict
		}
	}

	switch {
	case errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrPreconditionViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var ae *domain.ActionError
	if errors.As(err, &ae) {
		resp.Code = ae.Code
	}
	if status == http.StatusInternalServerError {
		// Детали сбоя хранилища наружу не отдаем
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
