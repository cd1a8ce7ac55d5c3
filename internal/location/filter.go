// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wneessen/taxiwidget/internal/logger"
)

const (
	// MinDisplacement is the distance in meters below which a sample is treated as jitter.
	MinDisplacement = 50.0

	// SignificantTimeDelta is the age difference beyond which recency alone decides.
	SignificantTimeDelta = time.Minute

	// SignificantAccuracyDelta is the accuracy loss in meters that counts as significant.
	SignificantAccuracyDelta = 200.0
)

// Verdict names the rule that decided about a sample.
type Verdict int

const (
	// VerdictFirst accepts a sample because there is no best-known sample yet.
	VerdictFirst Verdict = iota
	// VerdictNoise rejects a sample closer than MinDisplacement to the best-known one.
	VerdictNoise
	// VerdictSignificantlyNewer accepts a sample more than SignificantTimeDelta newer.
	VerdictSignificantlyNewer
	// VerdictSignificantlyOlder rejects a sample more than SignificantTimeDelta older.
	VerdictSignificantlyOlder
	// VerdictMoreAccurate accepts a sample with a smaller accuracy radius.
	VerdictMoreAccurate
	// VerdictNewer accepts a newer sample that is not less accurate.
	VerdictNewer
	// VerdictSameProviderDrift accepts a newer sample from the same provider that lost less
	// than SignificantAccuracyDelta of accuracy.
	VerdictSameProviderDrift
	// VerdictWorse rejects a sample that matched no accepting rule.
	VerdictWorse
)

var verdictNames = map[Verdict]string{
	VerdictFirst:              "first",
	VerdictNoise:              "noise",
	VerdictSignificantlyNewer: "significantly-newer",
	VerdictSignificantlyOlder: "significantly-older",
	VerdictMoreAccurate:       "more-accurate",
	VerdictNewer:              "newer",
	VerdictSameProviderDrift:  "same-provider-drift",
	VerdictWorse:              "worse",
}

// Accepted reports whether the verdict replaces the best-known sample.
func (v Verdict) Accepted() bool {
	switch v {
	case VerdictFirst, VerdictSignificantlyNewer, VerdictMoreAccurate, VerdictNewer, VerdictSameProviderDrift:
		return true
	default:
		return false
	}
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "unknown"
}

// Evaluate decides whether sample should replace current. haveCurrent is false when there is
// no best-known sample yet. The rules are checked in order and the first match wins.
func Evaluate(sample, current Sample, haveCurrent bool) Verdict {
	if !haveCurrent {
		return VerdictFirst
	}

	if sample.DistanceTo(current) < MinDisplacement {
		return VerdictNoise
	}

	timeDelta := sample.At.Sub(current.At)
	switch {
	case timeDelta > SignificantTimeDelta:
		return VerdictSignificantlyNewer
	case timeDelta < -SignificantTimeDelta:
		return VerdictSignificantlyOlder
	}
	isNewer := timeDelta > 0

	accuracyDelta := accuracyDelta(sample, current)
	isMoreAccurate := accuracyDelta < 0
	isLessAccurate := accuracyDelta > 0
	isSignificantlyLessAccurate := accuracyDelta > SignificantAccuracyDelta

	switch {
	case isMoreAccurate:
		return VerdictMoreAccurate
	case isNewer && !isLessAccurate:
		return VerdictNewer
	case isNewer && !isSignificantlyLessAccurate && sample.SameProvider(current):
		return VerdictSameProviderDrift
	}
	return VerdictWorse
}

// accuracyDelta returns the accuracy difference truncated to whole meters. Unknown accuracy
// counts as +Inf; two unknown accuracies are equal.
func accuracyDelta(sample, current Sample) float64 {
	a, b := sample.AccuracyMeters(), current.AccuracyMeters()
	if math.IsInf(a, 1) && math.IsInf(b, 1) {
		return 0
	}
	return math.Trunc(a - b)
}

// Filter keeps the best-known sample. It is safe for concurrent use: Submit and Current are
// serialized by one lock and samples are copied by value.
type Filter struct {
	logger *logger.Logger

	mu       sync.RWMutex
	best     Sample
	haveBest bool
	stopped  bool
}

// NewFilter returns a running filter without a best-known sample.
func NewFilter(log *logger.Logger) *Filter {
	return &Filter{logger: log}
}

// Submit evaluates sample against the best-known sample and stores it if it is better.
// It returns true if the sample was accepted. Samples submitted to a stopped filter are ignored.
func (f *Filter) Submit(sample Sample) bool {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		f.logger.Warn("ignoring position sample submitted to stopped filter", slog.Any("sample", sample))
		return false
	}
	verdict := Evaluate(sample, f.best, f.haveBest)
	if verdict.Accepted() {
		f.best = sample
		f.haveBest = true
	}
	f.mu.Unlock()

	f.logger.Debug("position sample evaluated", slog.Any("sample", sample),
		slog.String("verdict", verdict.String()), slog.Bool("accepted", verdict.Accepted()))
	return verdict.Accepted()
}

// Current returns the best-known sample and whether there is one.
func (f *Filter) Current() (Sample, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.best, f.haveBest
}

// Start opens the filter for Submit calls.
func (f *Filter) Start() {
	f.mu.Lock()
	f.stopped = false
	f.mu.Unlock()
}

// Stop closes the filter for Submit calls. The best-known sample stays readable.
func (f *Filter) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// Running reports whether the filter accepts Submit calls.
func (f *Filter) Running() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.stopped
}
