package sqlite

import (
	"context"
	"log"
	"time"

	"github.com/mistakeknot/briefq/internal/core"
)

// Reclaimer is the subset of the store the sweeper needs.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, staleBefore time.Time) ([]core.Message, error)
}

// Sweeper runs a background goroutine that periodically resets messages held
// by agents whose heartbeats have gone stale. Claim-time reclamation is the
// correctness mechanism; the sweeper only frees orphaned work sooner when no
// worker happens to be polling.
type Sweeper struct {
	store    Reclaimer
	interval time.Duration
	grace    time.Duration // heartbeat timeout
	onSweep  func(ctx context.Context, reclaimed []core.Message)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a Sweeper. onSweep may be nil; when set it is invoked
// with the reclaimed messages after each non-empty pass. Call Start() to
// begin sweeping.
func NewSweeper(store Reclaimer, interval, grace time.Duration, onSweep func(ctx context.Context, reclaimed []core.Message)) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		grace:    grace,
		onSweep:  onSweep,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(sw.done)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runSweep(ctx)
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	<-sw.done
}

func (sw *Sweeper) runSweep(ctx context.Context) {
	staleBefore := time.Now().UTC().Add(-sw.grace)
	reclaimed, err := sw.store.ReclaimStale(ctx, staleBefore)
	if err != nil {
		log.Printf("sweeper: %v", err)
		return
	}
	if len(reclaimed) == 0 {
		return
	}
	log.Printf("sweeper: reclaimed %d message(s) from silent agents", len(reclaimed))
	if sw.onSweep != nil {
		sw.onSweep(ctx, reclaimed)
	}
}
