package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mistakeknot/briefq/internal/auth"
)

type claimRequest struct {
	Agent string `json:"agent"`
}

func (s *Service) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	agent := strings.TrimSpace(req.Agent)
	info, _ := auth.FromContext(r.Context())
	if info.AgentID != "" && info.AgentID != agent {
		writeError(w, http.StatusForbidden, errors.New("key may only claim as its own agent"))
		return
	}

	msg, err := s.queue.Claim(r.Context(), agent)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msg == nil {
		// Empty queue is the normal idle case, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
