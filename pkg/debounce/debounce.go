// Package debounce coalesces bursts of triggers into one trailing action.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Action is run once the trigger burst has settled. It should read whatever
// state it needs at call time rather than capturing it when triggered.
type Action func(ctx context.Context) error

// Debouncer runs its action delay after the last Trigger. Runs never overlap.
type Debouncer struct {
	delay   time.Duration
	action  Action
	onError func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool

	run sync.Mutex
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithErrorHandler receives errors from timer-driven runs.
func WithErrorHandler(fn func(error)) Option {
	return func(d *Debouncer) {
		d.onError = fn
	}
}

// New creates a Debouncer.
func New(delay time.Duration, action Action, opts ...Option) *Debouncer {
	d := &Debouncer{
		delay:   delay,
		action:  action,
		onError: func(error) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger schedules the action, restarting the timer if one is already running.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a scheduled or previously failed action immediately. It is a
// no-op when nothing is pending.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	return d.runPending(ctx)
}

// Stop cancels any scheduled run and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire() {
	if err := d.runPending(context.Background()); err != nil {
		d.onError(err)
	}
}

func (d *Debouncer) runPending(ctx context.Context) error {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return nil
	}
	d.pending = false
	d.mu.Unlock()

	err := d.action(ctx)
	if err != nil {
		// Keep the run owed so the next Trigger or Flush retries it.
		d.mu.Lock()
		d.pending = !d.stopped
		d.mu.Unlock()
	}
	return err
}
