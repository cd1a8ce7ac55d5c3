// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/taxiwidget/internal/location"
	"github.com/wneessen/taxiwidget/internal/logger"
)

// Orchestrator asks its providers for a position once per Poll call and publishes the results
// on the bus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider

	logger *logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]*providerState
}

// providerState serializes the requests of one provider and tracks its backoff.
type providerState struct {
	busy      sync.Mutex
	backoff   time.Duration
	nextTryAt time.Time
}

// Poll runs one detection cycle. Providers are queried concurrently, each with at most one
// request in flight. Poll returns once every provider is done or ctx is cancelled.
func (o *Orchestrator) Poll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.pollProvider(ctx, p)
		}(p)
	}
	wg.Wait()
}

func (o *Orchestrator) pollProvider(ctx context.Context, p Provider) {
	state := o.state(p.Name())
	if !state.busy.TryLock() {
		o.logger.Debug("position request still in flight, skipping", slog.String("provider", p.Name()))
		return
	}
	defer state.busy.Unlock()

	if o.now().Before(state.nextTryAt) {
		return
	}
	if !o.safeAvailable(ctx, p) {
		o.logger.Debug("position provider unavailable", slog.String("provider", p.Name()))
		return
	}

	sample, err := o.safeLocate(ctx, p)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoFix):
		return
	case ctx.Err() != nil:
		return
	default:
		if state.backoff == 0 {
			state.backoff = initialBackoff
		} else {
			state.backoff = nextBackoff(state.backoff)
		}
		state.nextTryAt = o.now().Add(state.backoff)
		o.logger.Warn("position request failed", slog.String("provider", p.Name()),
			slog.Duration("backoff", state.backoff), logger.Err(err))
		return
	}
	state.backoff = 0
	state.nextTryAt = time.Time{}

	if err = sample.Validate(); err != nil {
		o.logger.Error("dropping invalid position sample", slog.String("provider", p.Name()), logger.Err(err))
		return
	}
	if o.Bus.Publish(sample) {
		o.logger.Info("best-known position updated", slog.String("provider", p.Name()),
			slog.Any("sample", sample))
	}
}

func (o *Orchestrator) state(name string) *providerState {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.states[name]
	if !ok {
		state = &providerState{}
		o.states[name] = state
	}
	return state
}

// safeAvailable invokes Available and treats a panic as "unavailable".
func (o *Orchestrator) safeAvailable(ctx context.Context, p Provider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("position provider panicked", slog.String("provider", p.Name()),
				slog.Any("panic", r))
			ok = false
		}
	}()
	return p.Available(ctx)
}

// safeLocate invokes Locate and converts a panic into an error.
func (o *Orchestrator) safeLocate(ctx context.Context, p Provider) (sample location.Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Locate(ctx)
}
