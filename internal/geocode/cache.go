// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"math"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// coordPrecision is the precision used to quantize coordinates (0.01 degrees ≈ 1.1 km)
	coordPrecision = 1e-2
	cacheCapacity  = 512
)

type cacheKey struct {
	Provider string
	LatQ     int32
	LonQ     int32
}

// CachedGeocoder memoizes reverse lookups per quantized coordinate. Found addresses are kept
// for ttlHit, misses for ttlMiss.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration
	cache   *ttlcache.Cache[cacheKey, Address]
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		cache: ttlcache.New[cacheKey, Address](
			ttlcache.WithCapacity[cacheKey, Address](cacheCapacity),
			ttlcache.WithDisableTouchOnHit[cacheKey, Address](),
		),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	key := newKey(c.coder.Name(), lat, lon)
	if item := c.cache.Get(key); item != nil {
		addr := item.Value()
		addr.CacheHit = true
		return addr, nil
	}

	addr, err := c.coder.Reverse(ctx, lat, lon)
	if err != nil {
		return addr, err
	}

	ttl := c.ttlHit
	if !addr.AddressFound {
		ttl = c.ttlMiss
	}
	c.cache.DeleteExpired()
	c.cache.Set(key, addr, ttl)
	return addr, nil
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func newKey(provider string, lat, lon float64) cacheKey {
	return cacheKey{
		Provider: provider,
		LatQ:     quantizeCoord(lat),
		LonQ:     quantizeCoord(lon),
	}
}
