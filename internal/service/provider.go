// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"strings"

	"github.com/wneessen/taxiwidget/internal/config"
	"github.com/wneessen/taxiwidget/internal/geobus"
	"github.com/wneessen/taxiwidget/internal/geobus/provider/geoip"
	"github.com/wneessen/taxiwidget/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/taxiwidget/internal/geobus/provider/gpsd"
	"github.com/wneessen/taxiwidget/internal/geobus/provider/ichnaea"
	"github.com/wneessen/taxiwidget/internal/geocode"
	nominatim "github.com/wneessen/taxiwidget/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/taxiwidget/internal/http"
	"github.com/wneessen/taxiwidget/internal/logger"
)

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.File,
			s.config.GeoLocation.FileAccuracy))
	}

	if !s.config.GeoLocation.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(s.config.GeoLocation.GPSDAddress))
	}

	if !s.config.GeoLocation.DisableGeoIP {
		gip, err := geoip.NewGeolocationGeoIPProvider(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoIP provider: %w", err)
		}
		provider = append(provider, gip)
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}
	if len(provider) == 0 {
		return nil, fmt.Errorf("no geolocation providers enabled")
	}

	return provider, nil
}

func (s *Service) selectGeocodeProvider() (geocode.Geocoder, error) {
	conf := s.config.GeoCoder
	switch strings.ToLower(conf.Provider) {
	case config.GeocoderNominatim:
		return geocode.NewCachedGeocoder(nominatim.New(http.New(s.logger), s.config.Language()),
			conf.CacheHit, conf.CacheMiss), nil
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", conf.Provider)
	}
}
