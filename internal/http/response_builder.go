package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/invest"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

type okBody struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status is already sent; an encode error means the client went away.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends the {"error": msg} envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorStatus maps a service error to its HTTP status and client message.
// Unknown errors are internal.
func errorStatus(err error) (int, string) {
	var inUse *core.CategoryInUseError
	switch {
	case errors.As(err, &inUse):
		return http.StatusConflict, inUse.Error()
	case errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, services.ErrPINRequired),
		errors.Is(err, errBadJSON):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, services.ErrEmailNotRegistered):
		return http.StatusNotFound, services.ErrEmailNotRegistered.Error()
	case errors.Is(err, services.ErrInvalidPIN):
		return http.StatusUnauthorized, services.ErrInvalidPIN.Error()
	case errors.Is(err, services.ErrInvalidSession):
		return http.StatusUnauthorized, services.ErrInvalidSession.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrCategoryTypeMismatch):
		return http.StatusUnprocessableEntity, core.ErrCategoryTypeMismatch.Error()
	case errors.Is(err, core.ErrPlanAlreadyStarted):
		return http.StatusConflict, core.ErrPlanAlreadyStarted.Error()
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidColor),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, invest.ErrUnknownAsset),
		errors.Is(err, invest.ErrNegativeValue),
		errors.Is(err, invest.ErrInvalidBudget):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// rootMessage returns the message of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// writeServiceError answers with the mapped status and logs server faults.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldError, err)
	}
	writeError(w, status, msg)
}
