package models

import (
	"encoding/json"
	"strings"
)

// Payload is an upstream JSON document kept byte-for-byte.
type Payload = json.RawMessage

// Snapshot is the last successful weather and air-quality fetch.
type Snapshot struct {
	Place   Place   `json:"place"`
	Weather Payload `json:"weather"`
	Air     Payload `json:"air"`
	SavedAt int64   `json:"savedAt"` // unix milliseconds
}

// Theme is the persisted colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps anything that is not "light" to dark.
func ParseTheme(s string) Theme {
	if strings.TrimSpace(strings.ToLower(s)) == string(ThemeLight) {
		return ThemeLight
	}
	return ThemeDark
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Icon is the glyph shown on the theme button.
func (t Theme) Icon() string {
	if t == ThemeLight {
		return "☀️"
	}
	return "🌙"
}
