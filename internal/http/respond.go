package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/internal/service/benchmark"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, repository.ErrInvalidArgument),
		errors.Is(err, frametime.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, frametime.ErrNoValidSamples):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, benchmark.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, benchmark.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, benchmark.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
