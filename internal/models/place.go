package models

import (
	"math"
	"strings"
)

// placeTolerance is the coordinate delta (degrees) under which two places are the same.
const placeTolerance = 0.0001

// Place is a named geographic point used as the subject of forecast queries.
type Place struct {
	Name      string  `json:"name" validate:"required"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// DefaultPlace is selected when nothing was persisted or deep-linked.
var DefaultPlace = Place{
	Name:      "Warszawa",
	Admin1:    "Mazowieckie",
	Country:   "Polska",
	Latitude:  52.2297,
	Longitude: 21.0122,
}

// SamePlace reports whether a and b point at the same coordinates.
// Names are ignored.
func SamePlace(a, b Place) bool {
	return math.Abs(a.Latitude-b.Latitude) < placeTolerance &&
		math.Abs(a.Longitude-b.Longitude) < placeTolerance
}

// Label renders "name, admin1 • country".
func (p Place) Label() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Admin1 != "" {
		b.WriteString(", ")
		b.WriteString(p.Admin1)
	}
	b.WriteString(" • ")
	b.WriteString(p.Country)
	return b.String()
}

// Meta renders the non-empty parts of "admin1, country".
func (p Place) Meta() string {
	parts := make([]string, 0, 2)
	if p.Admin1 != "" {
		parts = append(parts, p.Admin1)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	return strings.Join(parts, ", ")
}
