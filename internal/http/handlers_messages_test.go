package httpapi

import (
	"net/http"
	"testing"

	"github.com/mistakeknot/briefq/internal/core"
)

func TestSubmitAndGet(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/messages", submitRequest{
		Date: "2026-08-31", From: "alice", Subject: "render brief", Body: "please render",
	})
	requireStatus(t, resp, http.StatusCreated)
	created := decodeJSON[core.Message](t, resp)
	if created.ID == "" || created.Status != core.StatusPending {
		t.Fatalf("created = %+v", created)
	}

	resp = env.get(t, "/api/messages/"+created.ID)
	requireStatus(t, resp, http.StatusOK)
	got := decodeJSON[core.Message](t, resp)
	if got.Subject != "render brief" {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/messages", submitRequest{Date: "2026-08-31", Subject: "no sender"})
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.post(t, "/api/messages", submitRequest{Date: "not-a-date", From: "a", Subject: "x"})
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestListByDate(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/messages", submitRequest{Date: "2026-08-31", From: "a", Subject: "one"}).Body.Close()
	env.post(t, "/api/messages", submitRequest{Date: "2026-08-31", From: "a", Subject: "two"}).Body.Close()
	env.post(t, "/api/messages", submitRequest{Date: "2026-09-01", From: "a", Subject: "other"}).Body.Close()

	resp := env.get(t, "/api/messages?date=2026-08-31")
	requireStatus(t, resp, http.StatusOK)
	list := decodeJSON[messagesResponse](t, resp)
	if len(list.Messages) != 2 {
		t.Fatalf("messages = %+v", list.Messages)
	}

	resp = env.get(t, "/api/messages")
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestGetMessageNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "/api/messages/nope")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestMessageLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/messages", submitRequest{Date: "2026-08-31", From: "a", Subject: "job"})
	created := decodeJSON[core.Message](t, resp)

	resp = env.post(t, "/api/claims", claimRequest{Agent: "agent-a"})
	requireStatus(t, resp, http.StatusOK)
	claimed := decodeJSON[core.Message](t, resp)
	if claimed.ID != created.ID || claimed.AgentID != "agent-a" {
		t.Fatalf("claimed = %+v", claimed)
	}

	resp = env.post(t, "/api/messages/"+created.ID+"/progress", actionRequest{State: "working"})
	requireStatus(t, resp, http.StatusOK)
	progressed := decodeJSON[core.Message](t, resp)
	if progressed.Status != core.StatusProcessing {
		t.Fatalf("progressed = %+v", progressed)
	}

	resp = env.post(t, "/api/messages/"+created.ID+"/complete", actionRequest{Result: "done"})
	requireStatus(t, resp, http.StatusOK)
	completed := decodeJSON[core.Message](t, resp)
	if completed.Status != core.StatusCompleted || completed.Result != "done" {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestProgressOnUnownedMessageConflicts(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/messages", submitRequest{Date: "2026-08-31", From: "a", Subject: "job"})
	created := decodeJSON[core.Message](t, resp)

	resp = env.post(t, "/api/messages/"+created.ID+"/progress", actionRequest{State: "phantom"})
	requireStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestUnknownActionIs404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/api/messages/some-id/explode", actionRequest{})
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
