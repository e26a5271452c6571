// Package view turns a place and the raw forecast and air-quality payloads into
// the dashboard view-model: display-ready strings, no markup.
package view

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-pro-dashboard/internal/format"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

// ErrMalformed is returned when a payload cannot be rendered.
var ErrMalformed = errors.New("malformed upstream payload")

const maxHours = 24

// Dashboard is everything the main screen shows for one place.
type Dashboard struct {
	Current Current `json:"current"`
	Hourly  []Hour  `json:"hourly"`
	Daily   []Day   `json:"daily"`
	Air     Air     `json:"air"`
	Alerts  []Alert `json:"alerts"`
}

type Current struct {
	Place         string `json:"place"`
	Temperature   string `json:"temperature"`
	FeelsLike     string `json:"feelsLike"`
	Humidity      string `json:"humidity"`
	Wind          string `json:"wind"`
	Precipitation string `json:"precipitation"`
	Summary       string `json:"summary"`
	Icon          string `json:"icon"`
	Updated       string `json:"updated"`
}

type Hour struct {
	Time         string `json:"time"`
	Label        string `json:"label"`
	Temperature  string `json:"temperature"`
	Icon         string `json:"icon"`
	PrecipChance string `json:"precipChance"`
	Detail       string `json:"detail"`
}

type Day struct {
	Date         string `json:"date"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Summary      string `json:"summary"`
	PrecipChance string `json:"precipChance"`
	Max          string `json:"max"`
	Min          string `json:"min"`
}

type Air struct {
	Badge  string `json:"badge"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	PM25   string `json:"pm25"`
	PM10   string `json:"pm10"`
	EUAQI  string `json:"euAqi"`
	Advice string `json:"advice"`
	Class  string `json:"class"`
}

// Build renders the dashboard. now picks the first hourly slot and the air
// quality hour. Only a forecast without a current block is an error; gaps in
// the series render as dashes.
func Build(place models.Place, weather, air models.Payload, now time.Time) (Dashboard, error) {
	fc, err := decodeForecast(weather)
	if err != nil {
		return Dashboard{}, err
	}
	aq, err := decodeAir(air)
	if err != nil {
		return Dashboard{}, err
	}

	loc := zone(fc.UTCOffsetSeconds)
	airLoc := zone(aq.UTCOffsetSeconds)
	airIdx := firstFrom(aq.Hourly.Time, airLoc, now)
	usAQI := at(aq.Hourly.USAQI, airIdx)

	return Dashboard{
		Current: buildCurrent(place, fc.Current, loc),
		Hourly:  buildHourly(fc.Hourly, loc, now),
		Daily:   buildDaily(fc.Daily, loc),
		Air:     buildAir(aq, airIdx),
		Alerts:  buildAlerts(fc.Current, usAQI),
	}, nil
}

func buildCurrent(place models.Place, c *currentBlock, loc *time.Location) Current {
	wind := format.Number(c.WindSpeed, 0) + " km/h"
	if c.WindDirection != nil {
		wind += " " + format.WindDirection(*c.WindDirection)
	}
	updated := "Aktualizacja: " + format.Dash
	if t, ok := localTime(c.Time, loc); ok {
		updated = format.Updated(t)
	}
	wc := code(c.WeatherCode)
	return Current{
		Place:         place.Label(),
		Temperature:   format.Number(c.Temperature, 0),
		FeelsLike:     format.Number(c.Apparent, 0) + "°C",
		Humidity:      format.Number(c.Humidity, 0) + "%",
		Wind:          wind,
		Precipitation: format.Number(c.Precipitation, 1) + " mm",
		Summary:       format.WeatherText(wc),
		Icon:          format.WeatherIcon(wc, truthy(c.IsDay)),
		Updated:       updated,
	}
}

func buildHourly(h hourlyBlock, loc *time.Location, now time.Time) []Hour {
	start := firstFrom(h.Time, loc, now)
	end := start + maxHours
	if end > len(h.Time) {
		end = len(h.Time)
	}
	hours := make([]Hour, 0, end-start)
	for i := start; i < end; i++ {
		label := h.Time[i]
		if t, ok := localTime(h.Time[i], loc); ok {
			label = format.WeekdayShort(t) + " • " + format.Clock(t)
		}
		hours = append(hours, Hour{
			Time:         h.Time[i],
			Label:        label,
			Temperature:  format.Number(at(h.Temperature, i), 0) + "°",
			Icon:         format.WeatherIcon(code(at(h.WeatherCode, i)), truthy(at(h.IsDay, i))),
			PrecipChance: format.Number(orZero(at(h.PrecipChance, i)), 0) + "% opadów",
			Detail: format.Number(at(h.Precipitation, i), 1) + " mm • wiatr " +
				format.Number(at(h.WindSpeed, i), 0) + " km/h",
		})
	}
	return hours
}

func buildDaily(d dailyBlock, loc *time.Location) []Day {
	days := make([]Day, 0, len(d.Time))
	for i, s := range d.Time {
		name := s
		if t, ok := localTime(s, loc); ok {
			name = format.WeekdayLong(t)
		}
		wc := code(at(d.WeatherCode, i))
		days = append(days, Day{
			Date:         s,
			Name:         name,
			Icon:         format.WeatherIcon(wc, true),
			Summary:      format.WeatherText(wc),
			PrecipChance: format.Number(orZero(at(d.PrecipChance, i)), 0) + "% opadów",
			Max:          format.Number(at(d.Max, i), 0) + "°",
			Min:          format.Number(at(d.Min, i), 0) + "°",
		})
	}
	return days
}

func buildAir(aq airDoc, idx int) Air {
	us := at(aq.Hourly.USAQI, idx)
	band := format.ClassifyAQI(us)
	badge := format.Dash
	if us != nil && !math.IsNaN(*us) && !math.IsInf(*us, 0) {
		badge = strconv.Itoa(int(math.Round(*us)))
	}
	return Air{
		Badge:  badge,
		Title:  "AQI: " + band.Label,
		Text:   band.Text,
		PM25:   format.Number(at(aq.Hourly.PM25, idx), 1) + " µg/m³",
		PM10:   format.Number(at(aq.Hourly.PM10, idx), 1) + " µg/m³",
		EUAQI:  format.Number(at(aq.Hourly.EuropeanAQI, idx), 0),
		Advice: band.Advice,
		Class:  band.Class,
	}
}
