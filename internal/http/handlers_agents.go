package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mistakeknot/briefq/internal/auth"
	"github.com/mistakeknot/briefq/internal/core"
)

type agentsResponse struct {
	Agents []core.Agent `json:"agents"`
}

func (s *Service) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	agents, err := s.queue.ActiveAgents(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if agents == nil {
		agents = []core.Agent{}
	}
	writeJSON(w, http.StatusOK, agentsResponse{Agents: agents})
}

type heartbeatRequest struct {
	ActiveMessageID string `json:"active_message_id,omitempty"`
}

func (s *Service) handleAgentHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if !strings.HasSuffix(path, "/heartbeat") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := strings.Trim(strings.TrimSuffix(path, "/heartbeat"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("agent id required"))
		return
	}
	info, _ := auth.FromContext(r.Context())
	if info.AgentID != "" && info.AgentID != id {
		writeError(w, http.StatusForbidden, errors.New("key may only heartbeat as its own agent"))
		return
	}

	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	agent, err := s.queue.Heartbeat(r.Context(), id, req.ActiveMessageID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
