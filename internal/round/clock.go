package round

import (
	"context"
	"time"
)

// RunClock starts the periodic task that ticks the round clock. Only the
// first call has an effect. The task stops when the round completes, is
// abandoned, or ctx is done.
func (r *Round) RunClock(ctx context.Context) {
	r.mu.Lock()
	if r.clockCancel != nil || r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.clockCancel = cancel
	r.clockDone = done
	interval := r.tick
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Tick()
			}
		}
	}()
}

// ClockDone is closed once the clock task has exited. It returns nil when
// the clock was never started.
func (r *Round) ClockDone() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clockDone
}

func (r *Round) stopClockLocked() {
	if r.clockCancel == nil {
		return
	}
	r.stopOnce.Do(r.clockCancel)
}
