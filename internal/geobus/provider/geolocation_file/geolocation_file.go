// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geolocation_file implements a position source backed by a user maintained file.
package geolocation_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wneessen/taxiwidget/internal/location"
)

const name = "geolocation_file"

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads "lat,lon[,accuracy]" from the first usable line of a file.
// Lines starting with # are comments. The modification time of the file is the sample time,
// so an untouched file keeps producing the same sample.
type GeolocationFileProvider struct {
	name       string
	path       string
	defaultAcc float64
}

// NewGeolocationFileProvider returns a provider for path. defaultAcc is used for lines
// without an accuracy column.
func NewGeolocationFileProvider(path string, defaultAcc float64) *GeolocationFileProvider {
	return &GeolocationFileProvider{
		name:       name,
		path:       path,
		defaultAcc: defaultAcc,
	}
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// Available reports whether the file exists.
func (p *GeolocationFileProvider) Available(context.Context) bool {
	info, err := os.Stat(p.path)
	return err == nil && !info.IsDir()
}

// Locate reads the file once.
func (p *GeolocationFileProvider) Locate(context.Context) (location.Sample, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return location.Sample{}, fmt.Errorf("failed to stat geolocation file %q: %w", p.path, err)
	}
	lat, lon, acc, err := p.readFile()
	if err != nil {
		return location.Sample{}, err
	}
	return location.NewSample(lat, lon, info.ModTime()).WithAccuracy(acc).
		WithProvider(location.ProviderFile), nil
}

// readFile returns the first coordinate line of the file.
func (p *GeolocationFileProvider) readFile() (lat, lon, acc float64, err error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 && len(fields) != 3 {
			continue
		}
		lat, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			continue
		}
		lon, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		acc = p.defaultAcc
		if len(fields) == 3 {
			acc, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil || acc < 0 {
				continue
			}
		}
		return lat, lon, acc, nil
	}
	return 0, 0, 0, ErrNoCoordinates
}
