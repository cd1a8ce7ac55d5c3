// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/taxiwidget/internal/http"
	"github.com/wneessen/taxiwidget/internal/location"
	"github.com/wneessen/taxiwidget/internal/logger"
	"github.com/wneessen/taxiwidget/internal/testhelper"
)

const (
	testLat  = 40.7185
	testLon  = -74.0025
	testAcc  = 2000
	testJSON = `{"location":{"lat":40.71852,"lng":-74.00251},"accuracy":2000}`
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeScanner struct {
	scans int
}

func (f *fakeScanner) Interfaces() ([]*wifi.Interface, error) {
	return []*wifi.Interface{
		{Name: "wlan0", Type: wifi.InterfaceTypeStation},
		{Name: "ap0", Type: wifi.InterfaceTypeAP},
	}, nil
}

func (f *fakeScanner) AccessPoints(ifi *wifi.Interface) ([]*wifi.BSS, error) {
	if ifi.Type != wifi.InterfaceTypeStation {
		return nil, errors.New("not a station")
	}
	f.scans++
	return []*wifi.BSS{
		{SSID: "home", BSSID: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, Signal: -6500, LastSeen: time.Second},
		{SSID: "private_nomap", BSSID: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x66}, Signal: -7000},
		{SSID: "", BSSID: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x77}, Signal: -8000},
	}, nil
}

func testProvider(t *testing.T, rtFn func(*stdhttp.Request) (*stdhttp.Response, error)) *GeolocationICHNAEAProvider {
	t.Helper()
	client := http.New(logger.NewLogger(slog.LevelInfo, io.Discard))
	client.Transport = testhelper.MockRoundTripper{Fn: rtFn}
	provider, err := NewGeolocationICHNAEAProvider(client)
	if err != nil {
		t.Fatalf("failed to create ICHNAEA provider: %s", err)
	}
	provider.wlan = nil
	provider.now = func() time.Time { return testTime }
	return provider
}

func TestNewGeolocationICHNAEAProvider(t *testing.T) {
	t.Run("new ICHNAEA provider succeeds", func(t *testing.T) {
		provider, err := NewGeolocationICHNAEAProvider(http.New(logger.New(slog.LevelInfo)))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA provider: %s", err)
		}
		if provider.Name() != name {
			t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
		}
		if !provider.Available(t.Context()) {
			t.Error("expected provider to be available")
		}
	})
	t.Run("ICHNAEA without http client fails", func(t *testing.T) {
		provider, err := NewGeolocationICHNAEAProvider(nil)
		if err == nil {
			t.Fatal("expected provider to fail")
		}
		if provider != nil {
			t.Fatal("expected provider to be nil")
		}
	})
}

func TestGeolocationICHNAEAProvider_Locate(t *testing.T) {
	t.Run("locate succeeds", func(t *testing.T) {
		provider := testProvider(t, testhelper.JSONResponse(200, testJSON))
		sample, err := provider.Locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate coordinates via ICHNAEA: %s", err)
		}
		if sample.Lat != testLat || sample.Lon != testLon {
			t.Errorf("expected %f,%f, got %f,%f", testLat, testLon, sample.Lat, sample.Lon)
		}
		if acc, ok := sample.Accuracy(); !ok || acc != testAcc {
			t.Errorf("expected accuracy to be %d, got %f", testAcc, acc)
		}
		if p, _ := sample.Provider(); p != location.ProviderNetwork {
			t.Errorf("expected provider to be %s, got %s", location.ProviderNetwork, p)
		}
		if !sample.At.Equal(testTime) {
			t.Errorf("expected sample time %s, got %s", testTime, sample.At)
		}
	})
	t.Run("locate fails with broken JSON", func(t *testing.T) {
		provider := testProvider(t, testhelper.JSONResponse(200, "NOT_JSON"))
		if _, err := provider.Locate(t.Context()); err == nil {
			t.Fatal("expected locate to fail")
		}
	})
	t.Run("locate fails without accuracy", func(t *testing.T) {
		provider := testProvider(t, testhelper.JSONResponse(200, `{"location":{"lat":1,"lng":2}}`))
		if _, err := provider.Locate(t.Context()); err == nil {
			t.Fatal("expected locate to fail")
		}
	})
	t.Run("locate fails on API error", func(t *testing.T) {
		provider := testProvider(t, testhelper.JSONResponse(404, `{"error":"not found"}`))
		if _, err := provider.Locate(t.Context()); err == nil {
			t.Fatal("expected locate to fail")
		}
	})
	t.Run("locate fn errors are passed on", func(t *testing.T) {
		provider := testProvider(t, nil)
		provider.locateFn = func(context.Context) (float64, float64, float64, error) {
			return 0, 0, 0, errors.New("intentionally failing")
		}
		if _, err := provider.Locate(t.Context()); err == nil {
			t.Fatal("expected locate to fail")
		}
	})
}

func TestGeolocationICHNAEAProvider_accessPoints(t *testing.T) {
	t.Run("access points are sent with the request", func(t *testing.T) {
		var body string
		provider := testProvider(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			data, _ := io.ReadAll(req.Body)
			body = string(data)
			return testhelper.JSONResponse(200, testJSON)(req)
		})
		provider.wlan = &fakeScanner{}

		if _, err := provider.Locate(t.Context()); err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if !strings.Contains(body, `"macAddress":"00:11:22:33:44:55"`) {
			t.Errorf("expected access point in request body, got %s", body)
		}
		if !strings.Contains(body, `"signalStrength":-65`) {
			t.Errorf("expected signal strength in dBm, got %s", body)
		}
		if strings.Contains(body, "00:11:22:33:44:66") || strings.Contains(body, "00:11:22:33:44:77") {
			t.Errorf("expected _nomap and hidden networks to be skipped, got %s", body)
		}
	})
	t.Run("scans are cached", func(t *testing.T) {
		provider := testProvider(t, nil)
		scanner := &fakeScanner{}
		provider.wlan = scanner
		now := testTime
		provider.now = func() time.Time { return now }

		provider.accessPoints()
		provider.accessPoints()
		if scanner.scans != 1 {
			t.Errorf("expected one scan, got %d", scanner.scans)
		}
		now = now.Add(wifiScanTime)
		if got := provider.accessPoints(); len(got) != 1 {
			t.Errorf("expected one access point, got %d", len(got))
		}
		if scanner.scans != 2 {
			t.Errorf("expected rescan after %s, got %d scans", wifiScanTime, scanner.scans)
		}
	})
	t.Run("no wifi means no access points", func(t *testing.T) {
		provider := testProvider(t, nil)
		if got := provider.accessPoints(); got != nil {
			t.Errorf("expected no access points, got %v", got)
		}
	})
}
