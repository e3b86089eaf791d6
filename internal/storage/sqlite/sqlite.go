// Package sqlite implements storage.Store on a single SQLite database file.
// WAL journaling lets the projection renderer read immediately after every
// mutation while writers hold the lock.
package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/storage"
)

//go:embed schema.sql
var schema string

const defaultBusyTimeoutMS = 5000

var _ storage.Store = (*Store)(nil)

type Store struct {
	db   dbHandle
	path string
}

// New opens (or creates) the database at path with default settings.
func New(path string) (*Store, error) {
	return Open(path, defaultBusyTimeoutMS)
}

// Open opens the database with an explicit busy timeout in milliseconds.
// Parent directories are created; the schema is applied idempotently.
func Open(path string, busyTimeoutMS int) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite is single-writer; one connection avoids SQLITE_BUSY between our
	// own goroutines and keeps the PRAGMAs on the connection actually used.
	db.SetMaxOpenConns(1)
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = defaultBusyTimeoutMS
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS),
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}, path: path}, nil
}

// NewInMemory returns a Store backed by a private in-memory database.
// Tests that need cross-connection visibility should use a file instead.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Path returns the database file location, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const messageColumns = "id, date, from_addr, subject, body, reply_reference_id, status, agent_id, agent_state, result, error, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*core.Message, error) {
	var (
		msg                           core.Message
		replyRef, agentID, agentState sql.NullString
		result, errMsg                sql.NullString
		createdAt, updatedAt, status  string
	)
	err := row.Scan(
		&msg.ID, &msg.Date, &msg.From, &msg.Subject, &msg.Body,
		&replyRef, &status, &agentID, &agentState, &result, &errMsg,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.ReplyRef = replyRef.String
	msg.Status = core.Status(status)
	msg.AgentID = agentID.String
	msg.AgentState = agentState.String
	msg.Result = result.String
	msg.Error = errMsg.String
	msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	msg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &msg, nil
}

func scanAgent(row scanner) (core.Agent, error) {
	var (
		agent         core.Agent
		activeID      sql.NullString
		lastHeartbeat string
	)
	if err := row.Scan(&agent.ID, &activeID, &lastHeartbeat); err != nil {
		return core.Agent{}, err
	}
	agent.ActiveMessageID = activeID.String
	agent.LastHeartbeat, _ = time.Parse(time.RFC3339Nano, lastHeartbeat)
	return agent, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
