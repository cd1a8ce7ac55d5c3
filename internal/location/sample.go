// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location holds the position sample model and the quality filter that decides
// which observed sample is trusted as the best-known position.
package location

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/wneessen/taxiwidget/internal/vartype"
)

// Provider identifiers attached to samples by the bundled position sources.
const (
	ProviderNetwork = "network"
	ProviderGPS     = "gps"
	ProviderGeoIP   = "geoip"
	ProviderFile    = "file"
)

// ErrInvalidSample is returned by Sample.Validate for out-of-range samples.
var ErrInvalidSample = errors.New("invalid position sample")

// Sample is a single position observation. It is an immutable value: the With* methods
// return modified copies.
type Sample struct {
	Lat float64
	Lon float64
	At  time.Time

	accuracy vartype.VarFloat64
	provider vartype.VarString
}

// NewSample returns a sample without accuracy and provider.
func NewSample(lat, lon float64, at time.Time) Sample {
	return Sample{Lat: lat, Lon: lon, At: at}
}

// WithAccuracy returns a copy of s with the horizontal accuracy set, in meters.
func (s Sample) WithAccuracy(meters float64) Sample {
	s.accuracy.Set(meters)
	return s
}

// WithProvider returns a copy of s with the provider identifier set.
func (s Sample) WithProvider(provider string) Sample {
	s.provider.Set(provider)
	return s
}

// Accuracy returns the horizontal accuracy in meters and whether it is known.
func (s Sample) Accuracy() (float64, bool) {
	return s.accuracy.Get()
}

// AccuracyMeters returns the horizontal accuracy, or +Inf if unknown.
func (s Sample) AccuracyMeters() float64 {
	if acc, ok := s.accuracy.Get(); ok {
		return acc
	}
	return math.Inf(1)
}

// Provider returns the provider identifier and whether it is known.
func (s Sample) Provider() (string, bool) {
	return s.provider.Get()
}

// SameProvider reports whether both samples carry the same provider identifier. Two unknown
// providers are equal, an unknown provider never equals a known one.
func (s Sample) SameProvider(other Sample) bool {
	p1, ok1 := s.provider.Get()
	p2, ok2 := other.provider.Get()
	if !ok1 || !ok2 {
		return ok1 == ok2
	}
	return p1 == p2
}

// Point returns the sample as an orb point (lon, lat).
func (s Sample) Point() orb.Point {
	return orb.Point{s.Lon, s.Lat}
}

// DistanceTo returns the great-circle distance to other in meters.
func (s Sample) DistanceTo(other Sample) float64 {
	return geo.DistanceHaversine(s.Point(), other.Point())
}

// Validate checks coordinate ranges and the accuracy value. Position sources call it before
// handing a sample on; the filter itself trusts its input.
func (s Sample) Validate() error {
	if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidSample, s.Lat)
	}
	if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidSample, s.Lon)
	}
	if acc, ok := s.accuracy.Get(); ok && (math.IsNaN(acc) || acc < 0) {
		return fmt.Errorf("%w: accuracy %f must be non-negative", ErrInvalidSample, acc)
	}
	if s.At.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSample)
	}
	return nil
}

// LogValue implements slog.LogValuer.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("lat", s.Lat),
		slog.Float64("lon", s.Lon),
		slog.Time("at", s.At),
		slog.String("accuracy", s.accuracy.String()),
		slog.String("provider", s.provider.String()),
	)
}
