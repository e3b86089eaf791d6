// Package storage defines the persistence contract for the queue and an
// in-memory reference implementation used by tests.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/briefq/internal/core"
)

// Store is the durable state behind the queue. All queue operations read and
// write through it; nothing is cached between calls since another process may
// share the underlying database.
type Store interface {
	// SubmitMessage inserts a new pending message and returns the stored row.
	SubmitMessage(ctx context.Context, msg core.Message) (core.Message, error)
	// ClaimNext reclaims work from agents whose last heartbeat predates
	// staleBefore, then atomically claims the oldest pending message for
	// agentID. Returns nil when nothing is pending.
	ClaimNext(ctx context.Context, agentID string, staleBefore time.Time) (*core.Message, error)
	// ReclaimStale runs only the reclamation pass and returns the messages
	// that were reset to pending.
	ReclaimStale(ctx context.Context, staleBefore time.Time) ([]core.Message, error)
	// MarkProgress moves an owned message to processing and records a
	// free-text stage label. Returns nil when the message is not owned
	// (lost update, not an error).
	MarkProgress(ctx context.Context, id, state string) (*core.Message, error)
	// MarkCompleted stores the result and moves the message to completed.
	// A repeat call overwrites the payload; nil when the transition is
	// illegal (message pending or failed).
	MarkCompleted(ctx context.Context, id, result string) (*core.Message, error)
	// MarkFailed stores the error and moves the message to failed.
	MarkFailed(ctx context.Context, id, errMsg string) (*core.Message, error)
	// GetMessage returns a message by ID, nil when absent.
	GetMessage(ctx context.Context, id string) (*core.Message, error)
	// MessagesByDate returns all messages for a date in creation order.
	MessagesByDate(ctx context.Context, date string) ([]core.Message, error)
	// Heartbeat upserts the agent liveness row.
	Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error)
	// ActiveAgents returns agents whose heartbeat is at or after activeSince,
	// most recent first.
	ActiveAgents(ctx context.Context, activeSince time.Time) ([]core.Agent, error)
	Close() error
}

// InMemory is a mutex-guarded Store for tests.
type InMemory struct {
	mu       sync.Mutex
	messages map[string]core.Message
	agents   map[string]core.Agent
}

func NewInMemory() *InMemory {
	return &InMemory{
		messages: make(map[string]core.Message),
		agents:   make(map[string]core.Agent),
	}
}

func (m *InMemory) SubmitMessage(_ context.Context, msg core.Message) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Status = core.StatusPending
	msg.AgentID = ""
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *InMemory) ClaimNext(_ context.Context, agentID string, staleBefore time.Time) (*core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.reclaimLocked(staleBefore, now)

	// Claiming is itself proof of liveness.
	agent := m.agents[agentID]
	agent.ID = agentID
	agent.LastHeartbeat = now
	m.agents[agentID] = agent

	oldest := m.oldestPendingLocked()
	if oldest == nil {
		return nil, nil
	}
	msg := *oldest
	msg.Status = core.StatusClaimed
	msg.AgentID = agentID
	msg.UpdatedAt = now
	m.messages[msg.ID] = msg

	agent.ActiveMessageID = msg.ID
	m.agents[agentID] = agent
	return &msg, nil
}

func (m *InMemory) ReclaimStale(_ context.Context, staleBefore time.Time) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reclaimLocked(staleBefore, time.Now().UTC()), nil
}

func (m *InMemory) reclaimLocked(staleBefore, now time.Time) []core.Message {
	var reclaimed []core.Message
	for id, msg := range m.messages {
		if !msg.Status.Owned() || msg.AgentID == "" {
			continue
		}
		agent, ok := m.agents[msg.AgentID]
		if !ok || !agent.LastHeartbeat.Before(staleBefore) {
			continue
		}
		msg.Status = core.StatusPending
		msg.AgentID = ""
		msg.AgentState = ""
		msg.UpdatedAt = now
		m.messages[id] = msg
		reclaimed = append(reclaimed, msg)
	}
	return reclaimed
}

func (m *InMemory) oldestPendingLocked() *core.Message {
	var oldest *core.Message
	for id := range m.messages {
		msg := m.messages[id]
		if msg.Status != core.StatusPending {
			continue
		}
		if oldest == nil || msg.CreatedAt.Before(oldest.CreatedAt) ||
			(msg.CreatedAt.Equal(oldest.CreatedAt) && msg.ID < oldest.ID) {
			oldest = &msg
		}
	}
	return oldest
}

func (m *InMemory) MarkProgress(_ context.Context, id, state string) (*core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || !msg.Status.Owned() {
		return nil, nil
	}
	msg.Status = core.StatusProcessing
	msg.AgentState = state
	msg.UpdatedAt = time.Now().UTC()
	m.messages[id] = msg
	return &msg, nil
}

func (m *InMemory) MarkCompleted(_ context.Context, id, result string) (*core.Message, error) {
	return m.terminal(id, core.StatusCompleted, result)
}

func (m *InMemory) MarkFailed(_ context.Context, id, errMsg string) (*core.Message, error) {
	return m.terminal(id, core.StatusFailed, errMsg)
}

func (m *InMemory) terminal(id string, to core.Status, payload string) (*core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil
	}
	if !msg.Status.Owned() && msg.Status != to {
		return nil, nil
	}
	msg.Status = to
	msg.AgentID = ""
	if to == core.StatusCompleted {
		msg.Result = payload
	} else {
		msg.Error = payload
	}
	msg.UpdatedAt = time.Now().UTC()
	m.messages[id] = msg
	return &msg, nil
}

func (m *InMemory) GetMessage(_ context.Context, id string) (*core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (m *InMemory) MessagesByDate(_ context.Context, date string) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Message
	for _, msg := range m.messages {
		if msg.Date == date {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *InMemory) Heartbeat(_ context.Context, agentID, activeMessageID string) (core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent := core.Agent{
		ID:              agentID,
		ActiveMessageID: activeMessageID,
		LastHeartbeat:   time.Now().UTC(),
	}
	m.agents[agentID] = agent
	return agent, nil
}

func (m *InMemory) ActiveAgents(_ context.Context, activeSince time.Time) ([]core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Agent
	for _, agent := range m.agents {
		if !agent.LastHeartbeat.Before(activeSince) {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastHeartbeat.Equal(out[j].LastHeartbeat) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastHeartbeat.After(out[j].LastHeartbeat)
	})
	return out, nil
}

func (m *InMemory) Close() error { return nil }
