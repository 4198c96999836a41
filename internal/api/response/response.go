package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newthinker/novaquant/internal/core"
)

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes v as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error onto the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrOrderRejected):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTradingHalted):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrDataSource):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrEngineUnavailable), errors.Is(err, core.ErrCanceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes an error response with the status StatusFor picks.
func Error(w http.ResponseWriter, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	JSON(w, StatusFor(err), ErrorResponse{Error: detail})
}
