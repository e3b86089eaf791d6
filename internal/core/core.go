// Package core holds the domain types shared across the queue, storage,
// HTTP, and worker layers.
package core

import "time"

type EventType string

const (
	EventMessageSubmitted EventType = "message.submitted"
	EventMessageClaimed   EventType = "message.claimed"
	EventMessageProgress  EventType = "message.progress"
	EventMessageCompleted EventType = "message.completed"
	EventMessageFailed    EventType = "message.failed"
	EventAgentHeartbeat   EventType = "agent.heartbeat"
)

// Status is the lifecycle state of a queued message.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Owned reports whether a message in this state is held by an agent and is
// therefore subject to stale reclamation.
func (s Status) Owned() bool {
	return s == StatusClaimed || s == StatusProcessing
}

// Message is one unit of work: a briefing reply waiting to be answered by
// exactly one agent.
type Message struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"` // YYYY-MM-DD grouping key, not the row's creation time
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReplyRef   string    `json:"reply_reference_id,omitempty"`
	Status     Status    `json:"status"`
	AgentID    string    `json:"agent_id,omitempty"`
	AgentState string    `json:"agent_state,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Agent is a worker liveness record, upserted by every heartbeat.
type Agent struct {
	ID              string    `json:"agent_id"`
	ActiveMessageID string    `json:"active_message_id,omitempty"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
}

// Idle reports whether the agent currently claims to hold no message. The
// field is advisory; reclamation never keys off it.
func (a Agent) Idle() bool {
	return a.ActiveMessageID == ""
}
