package queue

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage"
)

type recordingHub struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHub) Broadcast(agent string, event any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := event.(Event); ok {
		h.events = append(h.events, e)
	}
}

func (h *recordingHub) types() []core.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]core.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func newTestQueue(t *testing.T) (*Queue, *recordingHub, string) {
	t.Helper()
	dir := t.TempDir()
	hub := &recordingHub{}
	q := New(storage.NewInMemory(), statusfile.NewWriter(dir), hub, 30*time.Second)
	return q, hub, dir
}

func TestSubmitValidation(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Submit(ctx, core.Message{Date: "2026-08-31", Subject: "x"}); !errors.Is(err, ErrFromRequired) {
		t.Fatalf("err = %v, want ErrFromRequired", err)
	}
	if _, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a"}); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("err = %v, want ErrSubjectRequired", err)
	}
	if _, err := q.Submit(ctx, core.Message{Date: "31-08-2026", From: "a", Subject: "x"}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestSubmitDefaultsDateToToday(t *testing.T) {
	q, _, _ := newTestQueue(t)

	msg, err := q.Submit(context.Background(), core.Message{From: "a", Subject: "x"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Date != time.Now().UTC().Format("2006-01-02") {
		t.Fatalf("date = %q", msg.Date)
	}
}

func TestLifecycleEventsAndProjection(t *testing.T) {
	q, hub, dir := newTestQueue(t)
	ctx := context.Background()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "alice", Subject: "render brief"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	claimed, err := q.Claim(ctx, "agent-a")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != msg.ID {
		t.Fatalf("claimed = %+v", claimed)
	}

	if _, err := q.Progress(ctx, msg.ID, "halfway"); err != nil {
		t.Fatalf("progress: %v", err)
	}
	done, err := q.Complete(ctx, msg.ID, "rendered")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != core.StatusCompleted {
		t.Fatalf("status = %q", done.Status)
	}

	want := []core.EventType{
		core.EventMessageSubmitted,
		core.EventMessageClaimed,
		core.EventMessageProgress,
		core.EventMessageCompleted,
	}
	got := hub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	data, err := os.ReadFile(statusfile.NewWriter(dir).Path("2026-08-31"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "[x] render brief") {
		t.Fatalf("snapshot stale:\n%s", data)
	}
	if !strings.Contains(string(data), "Result: rendered") {
		t.Fatalf("snapshot missing result:\n%s", data)
	}
}

func TestClaimRequiresAgent(t *testing.T) {
	q, _, _ := newTestQueue(t)
	if _, err := q.Claim(context.Background(), "  "); !errors.Is(err, ErrAgentRequired) {
		t.Fatalf("err = %v, want ErrAgentRequired", err)
	}
}

func TestClaimEmptyQueueIsQuiet(t *testing.T) {
	q, hub, _ := newTestQueue(t)

	msg, err := q.Claim(context.Background(), "agent-a")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if msg != nil {
		t.Fatalf("msg = %+v, want nil", msg)
	}
	if len(hub.types()) != 0 {
		t.Fatalf("empty claim broadcast events: %v", hub.types())
	}
}

func TestProgressOnUnownedMessageDropsQuietly(t *testing.T) {
	q, hub, _ := newTestQueue(t)
	ctx := context.Background()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "x"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := q.Progress(ctx, msg.ID, "phantom")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != nil {
		t.Fatalf("progress on pending message = %+v, want nil", got)
	}
	if types := hub.types(); len(types) != 1 || types[0] != core.EventMessageSubmitted {
		t.Fatalf("events = %v", types)
	}
}

func TestFailRecordsError(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	msg, _ := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "x"})
	if _, err := q.Claim(ctx, "agent-a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	failed, err := q.Fail(ctx, msg.ID, "boom")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != core.StatusFailed || failed.Error != "boom" {
		t.Fatalf("failed = %+v", failed)
	}
}

func TestHeartbeatAndActiveAgents(t *testing.T) {
	q, hub, _ := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Heartbeat(ctx, "", ""); !errors.Is(err, ErrAgentRequired) {
		t.Fatalf("err = %v, want ErrAgentRequired", err)
	}

	agent, err := q.Heartbeat(ctx, "agent-a", "")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if agent.ID != "agent-a" {
		t.Fatalf("agent = %+v", agent)
	}

	agents, err := q.ActiveAgents(ctx)
	if err != nil {
		t.Fatalf("active agents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "agent-a" {
		t.Fatalf("agents = %+v", agents)
	}

	if types := hub.types(); len(types) != 1 || types[0] != core.EventAgentHeartbeat {
		t.Fatalf("events = %v", types)
	}
}

func TestReclaimFreesSilentAgentsWork(t *testing.T) {
	dir := t.TempDir()
	// Zero timeout: every claim is instantly stale.
	q := New(storage.NewInMemory(), statusfile.NewWriter(dir), nil, 0)
	ctx := context.Background()

	msg, err := q.Submit(ctx, core.Message{Date: "2026-08-31", From: "a", Subject: "stuck"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := q.Claim(ctx, "agent-dead"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	reclaimed, err := q.Reclaim(ctx)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != msg.ID {
		t.Fatalf("reclaimed = %+v", reclaimed)
	}

	after, err := q.Message(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Status != core.StatusPending || after.AgentID != "" {
		t.Fatalf("after reclaim = %+v", after)
	}
}

func TestMessagesByDateValidation(t *testing.T) {
	q, _, _ := newTestQueue(t)
	if _, err := q.MessagesByDate(context.Background(), "bogus"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}
