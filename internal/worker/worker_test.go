package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/queue"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage"
)

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	return queue.New(storage.NewInMemory(), statusfile.NewWriter(t.TempDir()), nil, 30*time.Second)
}

func waitForStatus(t *testing.T, q *queue.Queue, id string, want core.Status) core.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := q.Message(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if msg != nil && msg.Status == want {
			return *msg
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("message %s never reached %q", id, want)
	return core.Message{}
}

func TestWorkerProcessesMessages(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "brief"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	handler := func(ctx context.Context, m core.Message, report ReportFunc) (string, error) {
		report("working on " + m.Subject)
		return "answered: " + m.Subject, nil
	}
	w := New(q, "agent-a", handler, 10*time.Millisecond, time.Second)
	go w.Run(ctx)

	done := waitForStatus(t, q, msg.ID, core.StatusCompleted)
	if done.Result != "answered: brief" {
		t.Fatalf("result = %q", done.Result)
	}
	if done.AgentState != "working on brief" {
		t.Fatalf("agent state = %q", done.AgentState)
	}
}

func TestWorkerFailsMessageOnHandlerError(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "doomed"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	handler := func(ctx context.Context, m core.Message, report ReportFunc) (string, error) {
		return "", errors.New("renderer crashed")
	}
	w := New(q, "agent-a", handler, 10*time.Millisecond, time.Second)
	go w.Run(ctx)

	failed := waitForStatus(t, q, msg.ID, core.StatusFailed)
	if failed.Error != "renderer crashed" {
		t.Fatalf("error = %q", failed.Error)
	}
}

func TestWorkerHeartbeatsWhileBusy(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "slow"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	release := make(chan struct{})
	handler := func(ctx context.Context, m core.Message, report ReportFunc) (string, error) {
		<-release
		return "ok", nil
	}
	w := New(q, "agent-a", handler, 10*time.Millisecond, 10*time.Millisecond)
	go w.Run(ctx)

	// While the handler blocks, heartbeats must keep flowing with the
	// active message attached.
	deadline := time.Now().Add(3 * time.Second)
	var sawActive bool
	for time.Now().Before(deadline) {
		agents, err := q.ActiveAgents(ctx)
		if err != nil {
			t.Fatalf("agents: %v", err)
		}
		if len(agents) == 1 && agents[0].ActiveMessageID == msg.ID {
			sawActive = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	if !sawActive {
		t.Fatal("heartbeat never reported the active message")
	}

	waitForStatus(t, q, msg.ID, core.StatusCompleted)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	w := New(q, "agent-a", func(ctx context.Context, m core.Message, r ReportFunc) (string, error) {
		return "", nil
	}, 5*time.Millisecond, time.Second)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestCommandHandler(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	_, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "shell"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	claimed, err := q.Claim(ctx, "agent-a")
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	handler := CommandHandler("sh", "-c", "cat >/dev/null; echo processed")
	var states []string
	result, err := handler(ctx, *claimed, func(state string) { states = append(states, state) })
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result != "processed" {
		t.Fatalf("result = %q", result)
	}
	if len(states) == 0 || !strings.Contains(states[0], "running") {
		t.Fatalf("states = %v", states)
	}

	// Non-zero exit surfaces stderr as the failure reason.
	failing := CommandHandler("sh", "-c", "echo kaput >&2; exit 3")
	if _, err := failing(ctx, *claimed, func(string) {}); err == nil || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("err = %v", err)
	}
}

func TestWorkerOperationsSatisfiedByQueue(t *testing.T) {
	var _ Operations = (*queue.Queue)(nil)
}
