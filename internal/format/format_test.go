package format

import (
	"math"
	"testing"
	"time"
)

// TestWeatherText_KnownAndUnknown verifies the closed WMO table and its fallback.
func TestWeatherText_KnownAndUnknown(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Bezchmurnie"},
		{3, "Pochmurno"},
		{63, "Deszcz umiarkowany"},
		{99, "Burza z gradem (silna)"},
		{4, "Warunki zmienne"},
		{-1, "Warunki zmienne"},
		{1000, "Warunki zmienne"},
	}
	for _, tc := range tests {
		if got := WeatherText(tc.code); got != tc.want {
			t.Errorf("WeatherText(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestWeatherIcon(t *testing.T) {
	tests := []struct {
		code  int
		isDay bool
		want  string
	}{
		{0, true, "☀️"},
		{0, false, "🌙"},
		{2, true, "🌤️"},
		{2, false, "☁️"},
		{45, true, "🌫️"},
		{66, true, "🧊🌧️"},
		{86, false, "🌨️"},
		{96, true, "⛈️"},
		{42, true, "⛅"},
	}
	for _, tc := range tests {
		if got := WeatherIcon(tc.code, tc.isDay); got != tc.want {
			t.Errorf("WeatherIcon(%d, %v) = %q, want %q", tc.code, tc.isDay, got, tc.want)
		}
	}
}

// TestClassifyAQI covers every band boundary plus the no-data cases.
func TestClassifyAQI(t *testing.T) {
	tests := []struct {
		name  string
		in    *float64
		label string
		class string
	}{
		{"nil", nil, Dash, ""},
		{"NaN", Float(math.NaN()), Dash, ""},
		{"Inf", Float(math.Inf(1)), Dash, ""},
		{"45 good", Float(45), "Dobra", ClassOK},
		{"50 good upper bound", Float(50), "Dobra", ClassOK},
		{"51 moderate", Float(51), "Umiarkowana", ClassWarning},
		{"120 sensitive", Float(120), "Niezdrowa (wrażliwi)", ClassWarning},
		{"200 unhealthy", Float(200), "Niezdrowa", ClassDanger},
		{"250 very unhealthy", Float(250), "Bardzo niezdrowa", ClassDanger},
		{"301 hazardous", Float(301), "Niebezpieczna", ClassDanger},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyAQI(tc.in)
			if got.Label != tc.label || got.Class != tc.class {
				t.Errorf("ClassifyAQI() = %+v, want label %q class %q", got, tc.label, tc.class)
			}
		})
	}
	if ClassifyAQI(nil).Text != "Brak danych." {
		t.Error("no-data band text mismatch")
	}
}

func TestWindDirection(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{22, "N"},
		{23, "NE"},
		{90, "E"},
		{180, "S"},
		{225, "SW"},
		{337, "NW"},
		{338, "N"},
		{360, "N"},
		{450, "E"},
		{-90, "W"},
	}
	for _, tc := range tests {
		if got := WindDirection(tc.deg); got != tc.want {
			t.Errorf("WindDirection(%v) = %q, want %q", tc.deg, got, tc.want)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in     *float64
		digits int
		want   string
	}{
		{nil, 0, Dash},
		{Float(math.NaN()), 1, Dash},
		{Float(12.6), 0, "13"},
		{Float(-0.2), 0, "0"},
		{Float(1.26), 1, "1.3"},
		{Float(0), 1, "0.0"},
		{Float(-7.4), 0, "-7"},
	}
	for _, tc := range tests {
		if got := Number(tc.in, tc.digits); got != tc.want {
			t.Errorf("Number(%v, %d) = %q, want %q", tc.in, tc.digits, got, tc.want)
		}
	}
}

func TestCalendarNames(t *testing.T) {
	// 2026-10-12 is a Monday
	mon := time.Date(2026, time.October, 12, 9, 5, 0, 0, time.UTC)
	if got := WeekdayLong(mon); got != "Poniedziałek" {
		t.Errorf("WeekdayLong() = %q, want Poniedziałek", got)
	}
	if got := WeekdayShort(mon.AddDate(0, 0, 2)); got != "śr." {
		t.Errorf("WeekdayShort() = %q, want śr.", got)
	}
	if got := Updated(mon); got != "Aktualizacja: 12 paź 2026, 09:05" {
		t.Errorf("Updated() = %q", got)
	}
}
