package sqlite

import (
	"context"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
	"github.com/mistakeknot/briefq/internal/storage"
)

// Compile-time interface check.
var _ storage.Store = (*ResilientStore)(nil)

// ResilientStore wraps every Store method with CircuitBreaker + RetryOnDBLock
// so transient SQLite errors (database-is-locked, contention spikes) surface
// as retryable failures instead of hangs or cascades.
type ResilientStore struct {
	inner *Store
	cb    *CircuitBreaker
}

// NewResilient creates a ResilientStore with default breaker settings
// (threshold=5, resetTimeout=30s).
func NewResilient(inner *Store) *ResilientStore {
	return &ResilientStore{inner: inner, cb: NewCircuitBreaker(5, 30*time.Second)}
}

// NewResilientWithBreaker creates a ResilientStore with a custom breaker.
func NewResilientWithBreaker(inner *Store, cb *CircuitBreaker) *ResilientStore {
	return &ResilientStore{inner: inner, cb: cb}
}

// CircuitBreakerState returns the current breaker state as a string.
func (r *ResilientStore) CircuitBreakerState() string {
	return r.cb.State().String()
}

func (r *ResilientStore) SubmitMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	var result core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.SubmitMessage(ctx, msg)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ClaimNext(ctx context.Context, agentID string, staleBefore time.Time) (*core.Message, error) {
	var result *core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.ClaimNext(ctx, agentID, staleBefore)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ReclaimStale(ctx context.Context, staleBefore time.Time) ([]core.Message, error) {
	var result []core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.ReclaimStale(ctx, staleBefore)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) MarkProgress(ctx context.Context, id, state string) (*core.Message, error) {
	var result *core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.MarkProgress(ctx, id, state)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) MarkCompleted(ctx context.Context, id, resultPayload string) (*core.Message, error) {
	var result *core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.MarkCompleted(ctx, id, resultPayload)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) MarkFailed(ctx context.Context, id, errMsg string) (*core.Message, error) {
	var result *core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.MarkFailed(ctx, id, errMsg)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	var result *core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.GetMessage(ctx, id)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) MessagesByDate(ctx context.Context, date string) ([]core.Message, error) {
	var result []core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.MessagesByDate(ctx, date)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Heartbeat(ctx context.Context, agentID, activeMessageID string) (core.Agent, error) {
	var result core.Agent
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Heartbeat(ctx, agentID, activeMessageID)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ActiveAgents(ctx context.Context, activeSince time.Time) ([]core.Agent, error) {
	var result []core.Agent
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.ActiveAgents(ctx, activeSince)
			return innerErr
		})
	})
	return result, err
}

// Close delegates directly to the inner store without breaker or retry.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
