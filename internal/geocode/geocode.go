// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode resolves positions into the pickup address shown next to the position.
package geocode

import "context"

type Address struct {
	AddressFound bool
	CacheHit     bool
	Latitude     float64
	Longitude    float64
	DisplayName  string
	Country      string
	State        string
	CityDistrict string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
}

// Pickup returns a short "street number, city" form of the address.
func (a Address) Pickup() string {
	street := a.Street
	if street != "" && a.HouseNumber != "" {
		street += " " + a.HouseNumber
	}
	switch {
	case street != "" && a.City != "":
		return street + ", " + a.City
	case street != "":
		return street
	case a.City != "":
		return a.City
	default:
		return a.DisplayName
	}
}

type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}
