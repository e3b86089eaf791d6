package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
)

// Heartbeat upserts the liveness row for an agent. Called on a fixed interval
// by workers whether idle or busy; activeMessageID is advisory only.
func (s *Store) Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, active_message_id, last_heartbeat) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   active_message_id = excluded.active_message_id,
		   last_heartbeat = excluded.last_heartbeat`,
		agentID, nullable(activeMessageID), timestamp(now),
	)
	if err != nil {
		return core.Agent{}, fmt.Errorf("upsert heartbeat: %w", err)
	}
	return core.Agent{ID: agentID, ActiveMessageID: activeMessageID, LastHeartbeat: now}, nil
}

// ActiveAgents returns agents seen at or after activeSince, freshest first.
// Agents that stopped heartbeating simply age out of this view.
func (s *Store) ActiveAgents(ctx context.Context, activeSince time.Time) ([]core.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, active_message_id, last_heartbeat FROM agents
		 WHERE last_heartbeat >= ? ORDER BY last_heartbeat DESC, id`,
		timestamp(activeSince),
	)
	if err != nil {
		return nil, fmt.Errorf("active agents: %w", err)
	}
	defer rows.Close()

	var out []core.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}
