package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/briefq/internal/core"
)

// reclaimSQL resets owned messages whose owning agent has gone silent.
// Keyed purely off the messages.agent_id / heartbeat-recency join; the
// agents.active_message_id column is advisory and never consulted here.
const reclaimSQL = `UPDATE messages
	SET status = ?, agent_id = NULL, agent_state = NULL, updated_at = ?
	WHERE status IN (?, ?)
	  AND agent_id IN (SELECT id FROM agents WHERE last_heartbeat < ?)`

func (s *Store) SubmitMessage(ctx context.Context, msg core.Message) (core.Message, error) {
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

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO messages (id, date, from_addr, subject, body, reply_reference_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Date, msg.From, msg.Subject, msg.Body,
		nullable(msg.ReplyRef), string(msg.Status),
		timestamp(msg.CreatedAt), timestamp(msg.UpdatedAt),
	)
	if err != nil {
		return core.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ClaimNext runs reclaim-then-claim as one serialized transaction:
//
//  1. reset owned messages whose agent heartbeat predates staleBefore
//  2. record the claiming agent's own heartbeat (a claim asserts liveness)
//  3. claim the oldest pending message in a single UPDATE, never a read
//     followed by a separate write
//
// The reclaim runs before the heartbeat upsert so a restarted agent reusing
// its old ID recovers its own stuck work on the very next claim attempt.
func (s *Store) ClaimNext(ctx context.Context, agentID string, staleBefore time.Time) (*core.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, reclaimSQL,
		string(core.StatusPending), timestamp(now),
		string(core.StatusClaimed), string(core.StatusProcessing),
		timestamp(staleBefore),
	); err != nil {
		return nil, fmt.Errorf("reclaim stale: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agents (id, active_message_id, last_heartbeat) VALUES (?, NULL, ?)
		 ON CONFLICT(id) DO UPDATE SET last_heartbeat = excluded.last_heartbeat`,
		agentID, timestamp(now),
	); err != nil {
		return nil, fmt.Errorf("record claimant heartbeat: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`UPDATE messages SET status = ?, agent_id = ?, updated_at = ?
		 WHERE id = (SELECT id FROM messages WHERE status = ? ORDER BY created_at, id LIMIT 1)
		 RETURNING `+messageColumns,
		string(core.StatusClaimed), agentID, timestamp(now),
		string(core.StatusPending),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit claim tx: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE agents SET active_message_id = ? WHERE id = ?`,
		msg.ID, agentID,
	); err != nil {
		return nil, fmt.Errorf("record active message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return msg, nil
}

// ReclaimStale runs only the reclamation pass, returning the rows it freed.
func (s *Store) ReclaimStale(ctx context.Context, staleBefore time.Time) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		reclaimSQL+` RETURNING `+messageColumns,
		string(core.StatusPending), timestamp(time.Now().UTC()),
		string(core.StatusClaimed), string(core.StatusProcessing),
		timestamp(staleBefore),
	)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reclaimed: %w", err)
		}
		out = append(out, *msg)
	}
	return out, rows.Err()
}

// MarkProgress transitions an owned message to processing. Messages that have
// been reclaimed or finished in the meantime yield nil, not an error, since
// concurrent reclamation can legitimately race an in-flight call.
func (s *Store) MarkProgress(ctx context.Context, id, state string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE messages SET status = ?, agent_state = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)
		 RETURNING `+messageColumns,
		string(core.StatusProcessing), state, timestamp(time.Now().UTC()),
		id, string(core.StatusClaimed), string(core.StatusProcessing),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark progress: %w", err)
	}
	return msg, nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, result string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE messages SET status = ?, result = ?, agent_id = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)
		 RETURNING `+messageColumns,
		string(core.StatusCompleted), result, timestamp(time.Now().UTC()),
		id, string(core.StatusClaimed), string(core.StatusProcessing), string(core.StatusCompleted),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	return msg, nil
}

func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE messages SET status = ?, error = ?, agent_id = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)
		 RETURNING `+messageColumns,
		string(core.StatusFailed), errMsg, timestamp(time.Now().UTC()),
		id, string(core.StatusClaimed), string(core.StatusProcessing), string(core.StatusFailed),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *Store) MessagesByDate(ctx context.Context, date string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE date = ? ORDER BY created_at, id`, date)
	if err != nil {
		return nil, fmt.Errorf("messages by date: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *msg)
	}
	return out, rows.Err()
}
