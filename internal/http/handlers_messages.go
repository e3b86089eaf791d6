package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mistakeknot/briefq/internal/core"
)

type submitRequest struct {
	Date     string `json:"date,omitempty"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body,omitempty"`
	ReplyRef string `json:"reply_reference_id,omitempty"`
}

type messagesResponse struct {
	Messages []core.Message `json:"messages"`
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleListByDate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	msg, err := s.queue.Submit(r.Context(), core.Message{
		Date:     req.Date,
		From:     req.From,
		Subject:  req.Subject,
		Body:     req.Body,
		ReplyRef: req.ReplyRef,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Service) handleListByDate(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, errors.New("date query parameter required"))
		return
	}
	msgs, err := s.queue.MessagesByDate(r.Context(), date)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msgs == nil {
		msgs = []core.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

type actionRequest struct {
	State  string `json:"state,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleMessageByID serves GET /api/messages/{id} and
// POST /api/messages/{id}/{progress|complete|fail}.
func (s *Service) handleMessageByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/messages/"), "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetMessage(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleMessageAction(w, r, parts[0], parts[1])
	case len(parts) == 1 || len(parts) == 2:
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Service) handleGetMessage(w http.ResponseWriter, r *http.Request, id string) {
	msg, err := s.queue.Message(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, errors.New("message not found"))
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Service) handleMessageAction(w http.ResponseWriter, r *http.Request, id, action string) {
	var req actionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var (
		msg *core.Message
		err error
	)
	switch action {
	case "progress":
		msg, err = s.queue.Progress(r.Context(), id, req.State)
	case "complete":
		msg, err = s.queue.Complete(r.Context(), id, req.Result)
	case "fail":
		msg, err = s.queue.Fail(r.Context(), id, req.Error)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msg == nil {
		// Lost update: message reclaimed or already terminal. 409 so the
		// worker knows its ownership is gone.
		writeError(w, http.StatusConflict, errors.New("message not owned"))
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
