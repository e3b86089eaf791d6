// Package httpapi exposes the queue over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mistakeknot/briefq/internal/queue"
)

type Service struct {
	queue *queue.Queue
}

func NewService(q *queue.Queue) *Service {
	return &Service{queue: q}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps queue validation errors to 400; everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrInvalidDate),
		errors.Is(err, queue.ErrFromRequired),
		errors.Is(err, queue.ErrSubjectRequired),
		errors.Is(err, queue.ErrAgentRequired),
		errors.Is(err, queue.ErrIDRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
