package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	ierr "github.com/septivank/rental-billing-worker/internal/errors"
	"go.uber.org/zap"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeServiceError maps error marks to HTTP responses. The hint, when
// present, is the message shown to the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	message := ierr.Hint(err)
	if message == "" {
		message = err.Error()
	}

	switch {
	case ierr.Is(err, ierr.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
	case ierr.Is(err, ierr.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", message)
	case ierr.Is(err, ierr.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, "INVALID_TRANSITION", message)
	default:
		h.logger.Error("internal error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// parseUUID extracts and validates a UUID path parameter.
func (h *Handler) parseUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid UUID: "+raw)
		return uuid.Nil, false
	}
	return id, true
}
