// Package simulation drives the world at a fixed timestep and tracks how long
// each tick takes.
package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxCatchUp bounds how many fixed steps may run back to back after a stall.
const DefaultMaxCatchUp = 5

// StepFunc advances the simulation by a fixed timestep and may emit side effects.
type StepFunc func(step time.Duration)

// LoopOption configures optional Loop behaviour at construction time.
type LoopOption func(*Loop)

// WithMonitor records the wall-clock cost of every step.
func WithMonitor(monitor *TickMonitor) LoopOption {
	return func(l *Loop) {
		l.monitor = monitor
	}
}

// WithMaxCatchUp changes how many steps may run per wake-up before backlog is dropped.
func WithMaxCatchUp(steps int) LoopOption {
	return func(l *Loop) {
		if steps > 0 {
			l.maxCatchUp = steps
		}
	}
}

// Loop drives a fixed timestep simulation at the configured target frequency.
type Loop struct {
	step       time.Duration
	stepFunc   StepFunc
	monitor    *TickMonitor
	maxCatchUp int

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
	dropped atomic.Uint64
}

// NewLoop configures a loop that targets the provided frames per second.
func NewLoop(targetHz float64, step StepFunc, opts ...LoopOption) *Loop {
	if targetHz <= 0 {
		targetHz = 60
	}
	if step == nil {
		step = func(time.Duration) {}
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	l := &Loop{
		step:       interval,
		stepFunc:   step,
		maxCatchUp: DefaultMaxCatchUp,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Start begins ticking until the context is cancelled or Stop is invoked.
// Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.stepFunc == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}

	ticker := time.NewTicker(l.step)
	stop := make(chan struct{})
	done := make(chan struct{})
	l.stop, l.done = stop, done
	l.running.Store(true)
	go func() {
		defer close(done)
		defer l.running.Store(false)
		defer ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case now := <-ticker.C:
				//1.- Accumulate elapsed time and run fixed steps while catching up.
				accumulator += now.Sub(last)
				last = now
				steps := 0
				for accumulator >= l.step {
					//2.- Shed backlog beyond the catch-up budget instead of spiralling.
					if steps == l.maxCatchUp {
						l.dropped.Add(uint64(accumulator / l.step))
						accumulator %= l.step
						break
					}
					started := time.Now()
					l.stepFunc(l.step)
					l.monitor.Observe(time.Since(started))
					accumulator -= l.step
					steps++
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the goroutine to exit.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	if l == nil {
		return false
	}
	return l.running.Load()
}

// DroppedSteps reports how many steps were skipped to recover from stalls.
func (l *Loop) DroppedSteps() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// StepDuration exposes the configured timestep for testing.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
