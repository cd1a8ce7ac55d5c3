// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package ichnaea implements the network position source. It asks an Ichnaea compatible
// geolocate API (beacondb) using the visible Wi-Fi access points and the client IP.
package ichnaea

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/taxiwidget/internal/geobus"
	"github.com/wneessen/taxiwidget/internal/http"
	"github.com/wneessen/taxiwidget/internal/location"
)

const (
	apiEndpoint   = "https://api.beacondb.net/v1/geolocate"
	lookupTimeout = time.Second * 5
	wifiScanTime  = time.Minute * 2
	name          = "ichnaea"
)

// accessPointScanner is the subset of *wifi.Client used for scanning.
type accessPointScanner interface {
	Interfaces() ([]*wifi.Interface, error)
	AccessPoints(ifi *wifi.Interface) ([]*wifi.BSS, error)
}

type GeolocationICHNAEAProvider struct {
	name     string
	endpoint string
	http     *http.Client
	wlan     accessPointScanner
	now      func() time.Time
	locateFn func(ctx context.Context) (lat, lon, acc float64, err error)

	apLock    sync.Mutex
	aps       []WirelessNetwork
	scannedAt time.Time
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// NewGeolocationICHNAEAProvider returns the network provider. Without Wi-Fi support the
// lookup falls back to the client IP alone.
func NewGeolocationICHNAEAProvider(http *http.Client) (*GeolocationICHNAEAProvider, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}

	provider := &GeolocationICHNAEAProvider{
		name:     name,
		endpoint: apiEndpoint,
		http:     http,
		now:      time.Now,
	}
	if wlan, err := wifi.New(); err == nil {
		provider.wlan = wlan
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationICHNAEAProvider) Name() string {
	return p.name
}

// Available reports true: the API can always fall back to IP based positioning.
func (p *GeolocationICHNAEAProvider) Available(context.Context) bool {
	return p.http != nil
}

// Locate performs a single geolocate request.
func (p *GeolocationICHNAEAProvider) Locate(ctx context.Context) (location.Sample, error) {
	lat, lon, acc, err := p.locateFn(ctx)
	if err != nil {
		return location.Sample{}, err
	}
	return location.NewSample(lat, lon, p.now()).WithAccuracy(acc).WithProvider(location.ProviderNetwork), nil
}

// accessPoints returns the cached access point list, rescanning if it is older than wifiScanTime.
func (p *GeolocationICHNAEAProvider) accessPoints() []WirelessNetwork {
	p.apLock.Lock()
	defer p.apLock.Unlock()

	if p.wlan == nil {
		return nil
	}
	if !p.scannedAt.IsZero() && p.now().Sub(p.scannedAt) < wifiScanTime {
		return p.aps
	}
	list, err := p.wifiAccessPoints()
	if err != nil {
		return p.aps
	}
	p.aps = list
	p.scannedAt = p.now()
	return p.aps
}

func (p *GeolocationICHNAEAProvider) wifiAccessPoints() ([]WirelessNetwork, error) {
	var list []WirelessNetwork

	ifaces, err := p.wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := p.wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (p *GeolocationICHNAEAProvider) locate(ctx context.Context) (lat, lon, acc float64, err error) {
	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: p.accessPoints(),
	}
	result := new(APIResult)
	if _, err = p.http.PostJSON(ctx, p.endpoint, req, lookupTimeout, result); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}
	if result.Accuracy <= 0 {
		return 0, 0, 0, fmt.Errorf("geolocate API returned no usable accuracy")
	}

	return geobus.Truncate(result.Location.Latitude, geobus.TruncPrecision),
		geobus.Truncate(result.Location.Longitude, geobus.TruncPrecision),
		geobus.Truncate(result.Accuracy, geobus.TruncPrecision), nil
}
