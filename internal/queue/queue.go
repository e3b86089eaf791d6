// Package queue is the service layer: it enforces request validation, wires
// every mutation to the status-file projection and the websocket hub, and
// translates the heartbeat timeout into the store's stale cutoff.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage"
)

var (
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrFromRequired    = errors.New("from is required")
	ErrSubjectRequired = errors.New("subject is required")
	ErrAgentRequired   = errors.New("agent id is required")
	ErrIDRequired      = errors.New("message id is required")
)

// Broadcaster pushes events to connected agents. An empty agent targets all
// connections.
type Broadcaster interface {
	Broadcast(agent string, event any)
}

// Event is the wire shape pushed over websockets after each mutation.
type Event struct {
	Type    core.EventType `json:"type"`
	Message *core.Message  `json:"message,omitempty"`
	Agent   *core.Agent    `json:"agent,omitempty"`
}

type Queue struct {
	store            storage.Store
	status           *statusfile.Writer
	hub              Broadcaster
	heartbeatTimeout time.Duration
}

// New creates a Queue. status and hub may be nil; projection refresh and
// broadcasting are then skipped.
func New(store storage.Store, status *statusfile.Writer, hub Broadcaster, heartbeatTimeout time.Duration) *Queue {
	return &Queue{
		store:            store,
		status:           status,
		hub:              hub,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// HeartbeatTimeout returns the configured liveness window.
func (q *Queue) HeartbeatTimeout() time.Duration { return q.heartbeatTimeout }

func (q *Queue) staleCutoff() time.Time {
	return time.Now().UTC().Add(-q.heartbeatTimeout)
}

// Submit enqueues a new pending message. An empty date defaults to today.
func (q *Queue) Submit(ctx context.Context, msg core.Message) (core.Message, error) {
	if msg.Date == "" {
		msg.Date = time.Now().UTC().Format("2006-01-02")
	}
	if !statusfile.ValidDate(msg.Date) {
		return core.Message{}, fmt.Errorf("%w: %q", ErrInvalidDate, msg.Date)
	}
	if strings.TrimSpace(msg.From) == "" {
		return core.Message{}, ErrFromRequired
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return core.Message{}, ErrSubjectRequired
	}
	created, err := q.store.SubmitMessage(ctx, msg)
	if err != nil {
		return core.Message{}, err
	}
	q.refresh(ctx, created.Date)
	q.broadcast("", core.EventMessageSubmitted, &created, nil)
	return created, nil
}

// Claim hands the oldest pending message to agentID, reclaiming stale claims
// first. Returns (nil, nil) when the queue is empty.
func (q *Queue) Claim(ctx context.Context, agentID string) (*core.Message, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, ErrAgentRequired
	}
	msg, err := q.store.ClaimNext(ctx, agentID, q.staleCutoff())
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	q.refresh(ctx, msg.Date)
	q.broadcast("", core.EventMessageClaimed, msg, nil)
	return msg, nil
}

// Progress records a worker's in-flight state. A nil result means the
// message is no longer owned (reclaimed or finished) and the update was
// dropped.
func (q *Queue) Progress(ctx context.Context, id, state string) (*core.Message, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	msg, err := q.store.MarkProgress(ctx, id, state)
	if err != nil || msg == nil {
		return msg, err
	}
	q.refresh(ctx, msg.Date)
	q.broadcast("", core.EventMessageProgress, msg, nil)
	return msg, nil
}

// Complete finishes a message with its result payload.
func (q *Queue) Complete(ctx context.Context, id, result string) (*core.Message, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	msg, err := q.store.MarkCompleted(ctx, id, result)
	if err != nil || msg == nil {
		return msg, err
	}
	q.refresh(ctx, msg.Date)
	q.broadcast("", core.EventMessageCompleted, msg, nil)
	return msg, nil
}

// Fail finishes a message with an error description.
func (q *Queue) Fail(ctx context.Context, id, errMsg string) (*core.Message, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	msg, err := q.store.MarkFailed(ctx, id, errMsg)
	if err != nil || msg == nil {
		return msg, err
	}
	q.refresh(ctx, msg.Date)
	q.broadcast("", core.EventMessageFailed, msg, nil)
	return msg, nil
}

// Heartbeat records agent liveness. When the agent reports an active
// message, that message's date projection is refreshed so the snapshot's
// agent section stays current.
func (q *Queue) Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error) {
	if strings.TrimSpace(agentID) == "" {
		return core.Agent{}, ErrAgentRequired
	}
	agent, err := q.store.Heartbeat(ctx, agentID, activeMessageID)
	if err != nil {
		return core.Agent{}, err
	}
	if activeMessageID != "" {
		if msg, err := q.store.GetMessage(ctx, activeMessageID); err == nil && msg != nil {
			q.refresh(ctx, msg.Date)
		}
	}
	q.broadcast(agentID, core.EventAgentHeartbeat, nil, &agent)
	return agent, nil
}

// Reclaim frees messages held by agents whose heartbeats are older than the
// timeout. Exposed for the background sweeper and operator tooling.
func (q *Queue) Reclaim(ctx context.Context) ([]core.Message, error) {
	reclaimed, err := q.store.ReclaimStale(ctx, q.staleCutoff())
	if err != nil {
		return nil, err
	}
	q.RefreshDates(ctx, reclaimed)
	return reclaimed, nil
}

// RefreshDates refreshes the projection for every distinct date in msgs.
func (q *Queue) RefreshDates(ctx context.Context, msgs []core.Message) {
	seen := make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		if _, ok := seen[msg.Date]; ok {
			continue
		}
		seen[msg.Date] = struct{}{}
		q.refresh(ctx, msg.Date)
	}
}

// Message looks up a single message; nil when not found.
func (q *Queue) Message(ctx context.Context, id string) (*core.Message, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return q.store.GetMessage(ctx, id)
}

// MessagesByDate lists a date's messages in queue order.
func (q *Queue) MessagesByDate(ctx context.Context, date string) ([]core.Message, error) {
	if !statusfile.ValidDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return q.store.MessagesByDate(ctx, date)
}

// ActiveAgents lists agents with a heartbeat inside the liveness window.
func (q *Queue) ActiveAgents(ctx context.Context) ([]core.Agent, error) {
	return q.store.ActiveAgents(ctx, q.staleCutoff())
}

// refresh rewrites one date's snapshot. Projection failures are logged and
// swallowed; the database transition already committed and stays
// authoritative.
func (q *Queue) refresh(ctx context.Context, date string) {
	if q.status == nil {
		return
	}
	messages, err := q.store.MessagesByDate(ctx, date)
	if err != nil {
		log.Printf("status refresh %s: %v", date, err)
		return
	}
	agents, err := q.store.ActiveAgents(ctx, q.staleCutoff())
	if err != nil {
		log.Printf("status refresh %s: %v", date, err)
		return
	}
	if err := q.status.Write(date, messages, agents); err != nil {
		log.Printf("status refresh %s: %v", date, err)
	}
}

func (q *Queue) broadcast(agent string, typ core.EventType, msg *core.Message, ag *core.Agent) {
	if q.hub == nil {
		return
	}
	q.hub.Broadcast(agent, Event{Type: typ, Message: msg, Agent: ag})
}
