package runner

import (
	"context"
	"sync"
	"time"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/clock"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/poller"
)

// Runner drives one poller on a fixed period with a dedicated worker
// goroutine. Passes never overlap: the next one starts period after the
// previous one started, or immediately when a pass overran the period.
// Stopping waits for an in-flight pass instead of cancelling it, so gauge
// state is never abandoned mid-reconciliation.
type Runner struct {
	poller poller.Poller
	period time.Duration
	clock  clock.Clock
	logger *logger.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	lastPoll time.Time
	lastErr  error
	polled   bool
}

// Start spawns the worker and returns immediately. The first pass begins at
// once.
func Start(p poller.Poller, period time.Duration, log *logger.Logger) *Runner {
	r := newRunner(p, period, clock.RealClock{}, log)
	go r.run()
	return r
}

func newRunner(p poller.Poller, period time.Duration, clk clock.Clock, log *logger.Logger) *Runner {
	return &Runner{
		poller: p,
		period: period,
		clock:  clk,
		logger: log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// run is the worker loop. Passes receive a background context: shutdown is
// signalled between passes, never into one.
func (r *Runner) run() {
	defer close(r.done)
	for {
		started := r.clock.Now()
		err := r.poller.Poll(context.Background())
		elapsed := r.clock.Now().Sub(started)
		r.record(started, err)

		if err != nil {
			r.logger.Error("Poll failed",
				"poller", r.poller.Name(),
				"error", err,
				"duration_seconds", elapsed.Seconds())
		} else {
			r.logger.Debug("Poll complete",
				"poller", r.poller.Name(),
				"duration_seconds", elapsed.Seconds())
		}

		remaining := r.period - elapsed
		if remaining <= 0 {
			r.logger.Warn("Poll overran its period, starting next pass immediately",
				"poller", r.poller.Name(),
				"duration_seconds", elapsed.Seconds(),
				"period_seconds", r.period.Seconds())
			remaining = 0
		}
		if !r.sleep(remaining) {
			return
		}
	}
}

// sleep waits for d or a stop request, whichever comes first, and reports
// whether the worker should continue. A zero d still honors a pending stop.
func (r *Runner) sleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-r.stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.stop:
		return false
	case <-timer.C:
		return true
	}
}

// record stores the outcome of the latest pass for the status endpoints.
func (r *Runner) record(started time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPoll = started
	r.lastErr = err
	r.polled = true
}

// Stop signals the worker and waits for it to exit. When Stop returns, no
// pass is in flight and none will start. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}

// Name returns the driven poller's name.
func (r *Runner) Name() string {
	return r.poller.Name()
}

// LastPoll returns when the latest pass started, zero before the first pass.
func (r *Runner) LastPoll() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastPoll
}

// LastError returns the latest pass's error, nil when it succeeded.
func (r *Runner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Healthy reports whether at least one pass has completed and the latest one
// succeeded.
func (r *Runner) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polled && r.lastErr == nil
}
