// Package refresh re-runs a refresh function on an interval and on demand
// (e.g. when the terminal regains focus), never letting two runs overlap.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tillworks/tillfront"
)

const defaultInterval = 30 * time.Second

// Runner drives periodic refreshes. Construct with New, then Start.
type Runner struct {
	interval time.Duration
	run      func(ctx context.Context) error
	log      tillfront.Logger

	trigger  chan struct{}
	stop     chan struct{}
	done     chan struct{}
	inFlight atomic.Bool
	once     sync.Once
	started  atomic.Bool
}

type Options struct {
	// Required
	Run func(ctx context.Context) error

	Interval time.Duration // 30s by default
	Logger   tillfront.Logger
}

func New(opts Options) (*Runner, error) {
	if opts.Run == nil {
		return nil, fmt.Errorf("refresh: run func is required")
	}
	log := opts.Logger
	if log == nil {
		log = tillfront.NopLogger{}
	}
	iv := opts.Interval
	if iv <= 0 {
		iv = defaultInterval
	}
	return &Runner{
		interval: iv,
		run:      opts.Run,
		log:      log,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the refresh loop. ctx cancellation stops it, as does Close.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.loop(ctx)
}

// Trigger requests a refresh outside the schedule, e.g. on focus. If a
// trigger is already pending it is coalesced; Trigger never blocks.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunNow refreshes synchronously. It reports false when a refresh was
// already in flight and this one was skipped.
func (r *Runner) RunNow(ctx context.Context) bool {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Debug("refresh skipped, one already in flight", nil)
		return false
	}
	defer r.inFlight.Store(false)
	if err := r.run(ctx); err != nil {
		r.log.Warn("refresh failed", tillfront.Fields{"err": err})
	}
	return true
}

// Close stops the loop and waits for an in-flight refresh to finish.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-t.C:
		case <-r.trigger:
		}
		r.RunNow(ctx)
	}
}
