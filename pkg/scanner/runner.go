package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backmon-io/backmon/internal/logger"
)

// DefaultInterval is how often the runner triggers a pass when the
// configuration does not say otherwise.
const DefaultInterval = 15 * time.Minute

// Runner triggers scan passes on a fixed interval.
//
// Lifecycle:
//   - Created via NewRunner with an already-built Scanner
//   - Started via Start() which spawns the background goroutine
//   - Stopped via Stop() which cancels the context and waits for the
//     in-flight pass to finish
//
// A tick that finds the previous pass still running is skipped, not
// queued: the next tick will pick up whatever that pass left behind.
// Manual triggers through the API share the same in-progress guard.
type Runner struct {
	scanner  *Scanner
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner for s. A non-positive interval falls back
// to DefaultInterval. The runner does not start until Start is called.
func NewRunner(s *Scanner, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{scanner: s, interval: interval}
}

// Interval returns the configured pass interval.
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Start begins the background loop. The first pass runs immediately so
// a restarted server notices overdue jobs without waiting a full
// interval. Cancelling ctx triggers the same shutdown as Stop.
//
// Start should only be called once.
func (r *Runner) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	logger.Info("Scan runner started", "interval", r.interval)

	r.wg.Add(1)
	go r.run()
}

// Stop cancels the loop and blocks until the goroutine, including any
// in-flight pass, has exited. Safe to call multiple times.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) run() {
	defer r.wg.Done()

	r.tick()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick runs one pass and absorbs its error: the loop itself never
// dies, whatever a single pass does.
func (r *Runner) tick() {
	_, err := r.scanner.RunPass(r.ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrPassInProgress):
		logger.Warn("Skipping scheduled pass: previous pass still running")
	case errors.Is(err, context.Canceled):
		// Shutdown mid-pass; RunPass already logged the abort.
	default:
		logger.Error("Scheduled scan pass failed", logger.Err(err))
	}
}
