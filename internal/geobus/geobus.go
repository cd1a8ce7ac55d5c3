// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/wneessen/taxiwidget/internal/location"
	"github.com/wneessen/taxiwidget/internal/logger"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 5 * time.Minute
)

// Accuracy estimates in meters for sources that only know the granularity of a position.
const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 4
)

// ErrNoFix is returned by a Provider that has nothing new to report. It is not a failure.
var ErrNoFix = errors.New("no position fix available")

// Provider is a position source. Available reports whether the source can currently be asked
// at all; Locate performs one single-shot request.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Locate(ctx context.Context) (location.Sample, error)
}

// GeoBus feeds published samples through the quality filter and fans accepted ones out to
// subscribers.
type GeoBus struct {
	logger *logger.Logger
	filter *location.Filter

	mu          sync.Mutex
	subscribers map[chan location.Sample]struct{}
}

// New initializes a GeoBus around the given filter.
func New(log *logger.Logger, filter *location.Filter) *GeoBus {
	return &GeoBus{
		logger:      log,
		filter:      filter,
		subscribers: make(map[chan location.Sample]struct{}),
	}
}

// NewOrchestrator returns an Orchestrator publishing the results of providers to the bus.
func (b *GeoBus) NewOrchestrator(providers []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: providers,
		logger:    b.logger,
		states:    make(map[string]*providerState),
		now:       time.Now,
	}
}

// Subscribe returns a channel receiving every accepted sample and an unsubscribe function. If a
// best-known sample exists it is delivered right away.
func (b *GeoBus) Subscribe(size int) (<-chan location.Sample, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan location.Sample, size)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if best, ok := b.filter.Current(); ok {
		ch <- best
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish submits the sample to the filter and broadcasts it if it was accepted.
func (b *GeoBus) Publish(sample location.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.filter.Submit(sample) {
		return false
	}
	for ch := range b.subscribers {
		select {
		case ch <- sample:
		default:
		}
	}
	return true
}

// Best returns the best-known sample.
func (b *GeoBus) Best() (location.Sample, bool) {
	return b.filter.Current()
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
