package view

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/weather-pro-dashboard/internal/format"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

var warsawNow = time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC) // 14:30 local

func loadFixture(t *testing.T, name string) models.Payload {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return raw
}

// TestBuild_Warsaw renders the default place from recorded Open-Meteo payloads.
func TestBuild_Warsaw(t *testing.T) {
	d, err := Build(models.DefaultPlace,
		loadFixture(t, "forecast_warsaw.json"),
		loadFixture(t, "air_warsaw.json"),
		warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if d.Current.Temperature == format.Dash {
		t.Error("Current.Temperature is a dash")
	}
	if len(d.Daily) != 7 {
		t.Errorf("len(Daily) = %d, want 7", len(d.Daily))
	}

	want := Current{
		Place:         "Warszawa, Mazowieckie • Polska",
		Temperature:   "11",
		FeelsLike:     "9°C",
		Humidity:      "71%",
		Wind:          "15 km/h W",
		Precipitation: "0.0 mm",
		Summary:       "Pochmurno",
		Icon:          "☁️",
		Updated:       "Aktualizacja: 16 paź 2026, 14:00",
	}
	if d.Current != want {
		t.Errorf("Current = %+v, want %+v", d.Current, want)
	}
}

func TestBuild_Hourly(t *testing.T) {
	d, err := Build(models.DefaultPlace, loadFixture(t, "forecast_warsaw.json"), nil, warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(d.Hourly) != 24 {
		t.Fatalf("len(Hourly) = %d, want 24", len(d.Hourly))
	}
	first := d.Hourly[0]
	if first.Time != "2026-10-16T15:00" {
		t.Errorf("first hour = %s, want first slot at or after now", first.Time)
	}
	if first.Label != "pt. • 15:00" || first.Temperature != "11°" {
		t.Errorf("first hour = %+v", first)
	}
	// hour index 20 has a null probability
	if got := d.Hourly[5].PrecipChance; got != "0% opadów" {
		t.Errorf("null precipitation chance = %q, want 0%%", got)
	}
}

func TestBuild_HourlyBeforeSeries(t *testing.T) {
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	d, err := Build(models.DefaultPlace, loadFixture(t, "forecast_warsaw.json"), nil, later)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if d.Hourly[0].Time != "2026-10-16T00:00" {
		t.Errorf("no slot after now: first hour = %s, want index 0", d.Hourly[0].Time)
	}
}

func TestBuild_Daily(t *testing.T) {
	d, err := Build(models.DefaultPlace, loadFixture(t, "forecast_warsaw.json"), nil, warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tests := []struct {
		i    int
		want Day
	}{
		{0, Day{Date: "2026-10-16", Name: "Piątek", Icon: "☁️", Summary: "Pochmurno", PrecipChance: "20% opadów", Max: "13°", Min: "6°"}},
		{5, Day{Date: "2026-10-21", Name: "Środa", Icon: "⛈️", Summary: "Burza", PrecipChance: "90% opadów", Max: "14°", Min: "8°"}},
		{6, Day{Date: "2026-10-22", Name: "Czwartek", Icon: "🌫️", Summary: "Mgła", PrecipChance: "0% opadów", Max: "13°", Min: "7°"}},
	}
	for _, tt := range tests {
		if got := d.Daily[tt.i]; got != tt.want {
			t.Errorf("Daily[%d] = %+v, want %+v", tt.i, got, tt.want)
		}
	}
}

func TestBuild_Air(t *testing.T) {
	d, err := Build(models.DefaultPlace,
		loadFixture(t, "forecast_warsaw.json"),
		loadFixture(t, "air_warsaw.json"),
		warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := Air{
		Badge:  "55",
		Title:  "AQI: Umiarkowana",
		Text:   "Dla wrażliwych może być odczuwalne.",
		PM25:   "12.2 µg/m³",
		PM10:   "18.5 µg/m³",
		EUAQI:  "28",
		Advice: "Okno: ostrożnie • Aktywność: ok",
		Class:  format.ClassWarning,
	}
	if d.Air != want {
		t.Errorf("Air = %+v, want %+v", d.Air, want)
	}
}

func TestBuild_NoAirData(t *testing.T) {
	d, err := Build(models.DefaultPlace, loadFixture(t, "forecast_warsaw.json"), models.Payload(`{}`), warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if d.Air.Badge != format.Dash || d.Air.Title != "AQI: "+format.Dash || d.Air.PM25 != format.Dash+" µg/m³" {
		t.Errorf("Air = %+v, want no-data rendering", d.Air)
	}
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		weather string
		air     string
	}{
		{"not json", `{`, `{}`},
		{"no current block", `{"hourly":{"time":[]}}`, `{}`},
		{"air not json", `{"current":{}}`, `[`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(models.DefaultPlace, models.Payload(tt.weather), models.Payload(tt.air), warsawNow)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Build() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBuild_SparseCurrent(t *testing.T) {
	d, err := Build(models.Place{Name: "X"}, models.Payload(`{"current":{"time":"bad"}}`), nil, warsawNow)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	c := d.Current
	if c.Temperature != format.Dash || c.Wind != format.Dash+" km/h" || c.Summary != "Warunki zmienne" || c.Icon != "⛅" {
		t.Errorf("Current = %+v", c)
	}
	if c.Updated != "Aktualizacja: "+format.Dash {
		t.Errorf("Updated = %q", c.Updated)
	}
	if len(d.Hourly) != 0 || len(d.Daily) != 0 {
		t.Errorf("Hourly/Daily = %d/%d, want empty", len(d.Hourly), len(d.Daily))
	}
}
