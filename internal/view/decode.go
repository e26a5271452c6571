package view

import (
	"encoding/json"
	"fmt"
	"time"
)

// Only the keys the dashboard renders are decoded. Open-Meteo returns null for
// gaps, hence the pointers.

type forecastDoc struct {
	UTCOffsetSeconds int           `json:"utc_offset_seconds"`
	Current          *currentBlock `json:"current"`
	Hourly           hourlyBlock   `json:"hourly"`
	Daily            dailyBlock    `json:"daily"`
}

type currentBlock struct {
	Time          string   `json:"time"`
	Temperature   *float64 `json:"temperature_2m"`
	Apparent      *float64 `json:"apparent_temperature"`
	Humidity      *float64 `json:"relative_humidity_2m"`
	IsDay         *float64 `json:"is_day"`
	WeatherCode   *float64 `json:"weather_code"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
	WindDirection *float64 `json:"wind_direction_10m"`
	Precipitation *float64 `json:"precipitation"`
}

type hourlyBlock struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	PrecipChance  []*float64 `json:"precipitation_probability"`
	Precipitation []*float64 `json:"precipitation"`
	WindSpeed     []*float64 `json:"wind_speed_10m"`
	WeatherCode   []*float64 `json:"weather_code"`
	IsDay         []*float64 `json:"is_day"`
}

type dailyBlock struct {
	Time         []string   `json:"time"`
	WeatherCode  []*float64 `json:"weather_code"`
	Max          []*float64 `json:"temperature_2m_max"`
	Min          []*float64 `json:"temperature_2m_min"`
	PrecipChance []*float64 `json:"precipitation_probability_max"`
}

type airDoc struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time        []string   `json:"time"`
		PM10        []*float64 `json:"pm10"`
		PM25        []*float64 `json:"pm2_5"`
		USAQI       []*float64 `json:"us_aqi"`
		EuropeanAQI []*float64 `json:"european_aqi"`
	} `json:"hourly"`
}

func decodeForecast(raw []byte) (forecastDoc, error) {
	var doc forecastDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("%w: forecast: %v", ErrMalformed, err)
	}
	if doc.Current == nil {
		return doc, fmt.Errorf("%w: forecast has no current block", ErrMalformed)
	}
	return doc, nil
}

func decodeAir(raw []byte) (airDoc, error) {
	var doc airDoc
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("%w: air quality: %v", ErrMalformed, err)
	}
	return doc, nil
}

// localTime parses an Open-Meteo local timestamp ("2026-01-02T14:00" or
// "2026-01-02") in the zone given by the payload's UTC offset.
func localTime(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func zone(offsetSeconds int) *time.Location {
	return time.FixedZone("", offsetSeconds)
}

// firstFrom returns the index of the first time at or after now, or 0.
func firstFrom(times []string, loc *time.Location, now time.Time) int {
	for i, s := range times {
		if t, ok := localTime(s, loc); ok && !t.Before(now) {
			return i
		}
	}
	return 0
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// code converts a weather code to int; missing codes map to -1, which every
// lookup treats as unknown.
func code(v *float64) int {
	if v == nil {
		return -1
	}
	return int(*v)
}

func truthy(v *float64) bool {
	return v != nil && *v != 0
}

func orZero(v *float64) *float64 {
	if v == nil {
		zero := 0.0
		return &zero
	}
	return v
}
