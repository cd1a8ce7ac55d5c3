// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd implements the satellite position source on top of a gpsd daemon.
package gpsd

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/taxiwidget/internal/geobus"
	"github.com/wneessen/taxiwidget/internal/location"
)

const (
	name = "gpsd"

	// DefaultAddress is where gpsd listens by default.
	DefaultAddress = "localhost:2947"

	redialDelay = time.Second * 30
)

// session is the subset of *gpsd.Session the provider needs.
type session interface {
	AddFilter(class string, f gpsd.Filter)
	Watch() chan bool
}

// GeolocationGPSDProvider keeps a gpsd watch open and hands out the latest TPV fix.
type GeolocationGPSDProvider struct {
	name   string
	addr   string
	now    func() time.Time
	dialFn func(addr string) (session, error)

	mu         sync.Mutex
	connected  bool
	lastDialAt time.Time
	fix        location.Sample
	haveFix    bool
	delivered  bool
}

// NewGeolocationGPSDProvider returns a provider for the gpsd daemon at addr.
func NewGeolocationGPSDProvider(addr string) *GeolocationGPSDProvider {
	if addr == "" {
		addr = DefaultAddress
	}
	return &GeolocationGPSDProvider{
		name:   name,
		addr:   addr,
		now:    time.Now,
		dialFn: dial,
	}
}

func dial(addr string) (session, error) {
	s, err := gpsd.Dial(addr)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// Available reports whether a gpsd watch is running. A lost connection is redialed at most
// once per redialDelay.
func (p *GeolocationGPSDProvider) Available(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return true
	}
	if !p.lastDialAt.IsZero() && p.now().Sub(p.lastDialAt) < redialDelay {
		return false
	}
	p.lastDialAt = p.now()

	sess, err := p.dialFn(p.addr)
	if err != nil {
		return false
	}
	sess.AddFilter("TPV", p.handleReport)
	done := sess.Watch()
	p.connected = true

	go func() {
		<-done
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
	}()
	return true
}

// Locate returns the latest fix once. Until gpsd reports a newer one it returns geobus.ErrNoFix.
func (p *GeolocationGPSDProvider) Locate(context.Context) (location.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.haveFix || p.delivered {
		return location.Sample{}, geobus.ErrNoFix
	}
	p.delivered = true
	return p.fix, nil
}

// handleReport is the TPV filter installed on the gpsd session.
func (p *GeolocationGPSDProvider) handleReport(r interface{}) {
	tpv, ok := r.(*gpsd.TPVReport)
	if !ok || tpv.Mode < gpsd.Mode2D {
		return
	}

	at := tpv.Time
	if at.IsZero() {
		at = p.now()
	}
	sample := location.NewSample(tpv.Lat, tpv.Lon, at).WithProvider(location.ProviderGPS)
	if tpv.Epx > 0 && tpv.Epy > 0 {
		sample = sample.WithAccuracy(math.Hypot(tpv.Epx, tpv.Epy))
	}

	p.mu.Lock()
	p.fix = sample
	p.haveFix = true
	p.delivered = false
	p.mu.Unlock()
}
