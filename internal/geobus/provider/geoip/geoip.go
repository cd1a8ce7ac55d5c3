// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoip implements a coarse position source based on the public IP address.
package geoip

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/taxiwidget/internal/geobus"
	"github.com/wneessen/taxiwidget/internal/http"
	"github.com/wneessen/taxiwidget/internal/location"
)

const (
	APIEndpoint   = "https://reallyfreegeoip.org/json/"
	LookupTimeout = time.Second * 5
	name          = "geoip"
)

type GeolocationGeoIPProvider struct {
	name     string
	endpoint string
	http     *http.Client
	now      func() time.Time
}

type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MetroCode   int     `json:"metro_code"`
}

func NewGeolocationGeoIPProvider(http *http.Client) (*GeolocationGeoIPProvider, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}
	return &GeolocationGeoIPProvider{
		name:     name,
		endpoint: APIEndpoint,
		http:     http,
		now:      time.Now,
	}, nil
}

func (p *GeolocationGeoIPProvider) Name() string {
	return p.name
}

func (p *GeolocationGeoIPProvider) Available(context.Context) bool {
	return true
}

// Locate looks up the public IP. The accuracy reflects the finest granularity in the answer.
func (p *GeolocationGeoIPProvider) Locate(ctx context.Context) (location.Sample, error) {
	result := new(APIResult)
	if _, err := p.http.GetJSON(ctx, p.endpoint, nil, LookupTimeout, result); err != nil {
		return location.Sample{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	var acc float64
	switch {
	case result.ZipCode != "":
		acc = geobus.AccuracyZip
	case result.City != "":
		acc = geobus.AccuracyCity
	case result.RegionCode != "":
		acc = geobus.AccuracyRegion
	case result.CountryCode != "":
		acc = geobus.AccuracyCountry
	default:
		acc = geobus.AccuracyUnknown
	}

	return location.NewSample(
		geobus.Truncate(result.Latitude, geobus.TruncPrecision),
		geobus.Truncate(result.Longitude, geobus.TruncPrecision),
		p.now(),
	).WithAccuracy(acc).WithProvider(location.ProviderGeoIP), nil
}
