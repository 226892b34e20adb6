package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// money renders a decimal as a JSON number with two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: message})
}

var validationErrors = []error{
	services.ErrCategoryRequired,
	core.ErrInvalidAmount,
	core.ErrInvalidCategory,
	core.ErrInvalidMonth,
	core.ErrInvalidDay,
	core.ErrNoteTooLong,
	core.ErrMissingUser,
}

// validationError returns the input sentinel wrapped in err, if any.
func validationError(err error) error {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

// writeServiceError maps a service error to a status code. Unexpected errors
// are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Username and password required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, storage.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, core.ErrNotEnoughData):
		writeError(w, http.StatusBadRequest, "Not enough data")
	case validationError(err) != nil:
		writeError(w, http.StatusBadRequest, validationError(err).Error())
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
				log.LogFields{log.FieldPath: r.URL.Path})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
