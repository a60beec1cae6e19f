package api

import (
	"errors"
	"net/http"
)

// ErrTaskNotFound is returned when a task name is unknown to the tracker.
var ErrTaskNotFound = errors.New("task not found")

// MapErrorToStatusCode maps handler errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found"
	default:
		return "An unexpected error occurred"
	}
}
