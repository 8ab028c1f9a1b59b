// Package scheduler implements the per-organisation populate/dispatch
// loops: a generic base the boefje and normalizer schedulers embed, each
// supplying their own population sources and gates.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openkat/scheduler/pkg/observability"
)

const (
	defaultPopulateInterval = 60 * time.Second
	defaultDispatchInterval = 10 * time.Millisecond
	stopGracePeriod         = 5 * time.Second
)

// PopulateSource produces items to push into the queue on one populate tick
// (mutation-poll, random-fill: anything that's cheap to poll periodically).
type PopulateSource func(ctx context.Context) error

// EventSource runs for the scheduler's whole lifetime, blocking on its own
// event stream instead of waiting for the populate tick (scan-profile
// changes, raw-data-ready events). It must return when ctx is cancelled.
type EventSource func(ctx context.Context)

// Base is the scheduler's shared lifecycle: it is not used directly, only
// embedded by BoefjeScheduler and NormalizerScheduler, mirroring the
// teacher's Engine Start/Stop/ctx-cancel shape.
type Base struct {
	Organisation string

	PopulateInterval time.Duration
	DispatchInterval time.Duration

	Sources     []PopulateSource
	EventSources []EventSource
	Dispatcher  interface {
		Step(ctx context.Context)
	}

	// Status tracks each task's in-memory lifecycle status for admin
	// introspection. Always non-nil once built through NewBoefjeScheduler or
	// NewNormalizerScheduler.
	Status *StatusTracker

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Run starts the populate and dispatch loops. It returns immediately; the
// loops run in background goroutines until Stop is called.
func (b *Base) Run(parent context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("scheduler for %s already started", b.Organisation)
	}

	if b.PopulateInterval == 0 {
		b.PopulateInterval = defaultPopulateInterval
	}
	if b.DispatchInterval == 0 {
		b.DispatchInterval = defaultDispatchInterval
	}

	b.ctx, b.cancel = context.WithCancel(parent)
	b.started = true

	b.wg.Add(2 + len(b.EventSources))
	go b.populateLoop()
	go b.dispatchLoop()
	for _, es := range b.EventSources {
		go func(es EventSource) {
			defer b.wg.Done()
			es(b.ctx)
		}(es)
	}

	log.Info().Str("organisation", b.Organisation).Msg("scheduler started")
	return nil
}

// Stop cancels both loops and waits up to stopGracePeriod for them to exit.
func (b *Base) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.started = false
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		log.Warn().Str("organisation", b.Organisation).Msg("scheduler did not stop within grace period")
	}
}

func (b *Base) populateLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.PopulateInterval)
	defer ticker.Stop()

	b.populateOnce()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.populateOnce()
		}
	}
}

func (b *Base) populateOnce() {
	for _, source := range b.Sources {
		if err := source(b.ctx); err != nil {
			observability.PopulateErrorsTotal.WithLabelValues(b.Organisation).Inc()
			log.Warn().Str("organisation", b.Organisation).Err(err).Msg("populate source failed")
		}
	}
}

func (b *Base) dispatchLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.Dispatcher.Step(b.ctx)
		}
	}
}
