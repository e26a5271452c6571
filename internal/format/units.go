package format

import (
	"math"
	"strconv"
)

// Dash stands in for a missing value.
const Dash = "—"

var compass = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Number formats v with a fixed number of decimals, or Dash when v is missing.
func Number(v *float64, digits int) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Dash
	}
	n := *v
	if digits == 0 {
		// round half away from zero like toFixed, and avoid "-0"
		n = math.Round(n)
		if n == 0 {
			n = 0
		}
	}
	return strconv.FormatFloat(n, 'f', digits, 64)
}

// WindDirection maps degrees onto an 8-point compass using 45° sectors.
func WindDirection(deg float64) string {
	m := math.Mod(deg, 360)
	i := int(math.Round(m/45)) % 8
	if i < 0 {
		i += 8
	}
	return compass[i]
}

// Float is a convenience for building *float64 literals.
func Float(v float64) *float64 {
	return &v
}
