// Package worker runs the claim-process-report loop for one agent. The
// worker never touches the database; it speaks to the queue through the
// Operations interface, so the same loop runs in-process or over HTTP.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
)

// Operations is the queue surface a worker needs. *queue.Queue satisfies it
// directly; remote workers use a client adapter.
type Operations interface {
	Claim(ctx context.Context, agentID string) (*core.Message, error)
	Progress(ctx context.Context, id, state string) (*core.Message, error)
	Complete(ctx context.Context, id, result string) (*core.Message, error)
	Fail(ctx context.Context, id, errMsg string) (*core.Message, error)
	Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error)
}

// ReportFunc lets a handler publish in-flight state.
type ReportFunc func(state string)

// Handler processes one message and returns its result payload.
type Handler func(ctx context.Context, msg core.Message, report ReportFunc) (string, error)

type Worker struct {
	ops               Operations
	id                string
	handler           Handler
	pollInterval      time.Duration
	heartbeatInterval time.Duration

	mu     sync.Mutex
	active string
}

// New creates a Worker. The agent ID is always passed in by the caller; the
// worker never invents its own identity.
func New(ops Operations, agentID string, handler Handler, pollInterval, heartbeatInterval time.Duration) *Worker {
	return &Worker{
		ops:               ops,
		id:                agentID,
		handler:           handler,
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// ID returns the worker's agent identity.
func (w *Worker) ID() string { return w.id }

func (w *Worker) setActive(id string) {
	w.mu.Lock()
	w.active = id
	w.mu.Unlock()
}

func (w *Worker) activeID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Run polls for work until ctx is cancelled, processing one message at a
// time. Heartbeats run on their own ticker so a long handler cannot starve
// them and get the claim reclaimed out from under it.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil
		}
		msg, err := w.ops.Claim(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			log.Printf("worker %s: claim: %v", w.id, err)
			w.sleep(ctx)
			continue
		}
		if msg == nil {
			w.sleep(ctx)
			continue
		}
		w.process(ctx, *msg)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ops.Heartbeat(ctx, w.id, w.activeID()); err != nil && ctx.Err() == nil {
				log.Printf("worker %s: heartbeat: %v", w.id, err)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, msg core.Message) {
	w.setActive(msg.ID)
	defer w.setActive("")

	report := func(state string) {
		if _, err := w.ops.Progress(ctx, msg.ID, state); err != nil {
			log.Printf("worker %s: progress %s: %v", w.id, msg.ID, err)
		}
	}

	result, err := w.handler(ctx, msg, report)
	if err != nil {
		if _, ferr := w.ops.Fail(ctx, msg.ID, err.Error()); ferr != nil {
			log.Printf("worker %s: fail %s: %v", w.id, msg.ID, ferr)
		}
		return
	}
	if _, cerr := w.ops.Complete(ctx, msg.ID, result); cerr != nil {
		log.Printf("worker %s: complete %s: %v", w.id, msg.ID, cerr)
	}
}
