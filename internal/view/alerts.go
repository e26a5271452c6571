package view

import (
	"math"
	"strconv"

	"github.com/kjstillabower/weather-pro-dashboard/internal/format"
)

// Alert thresholds.
const (
	windAlertKmh  = 45
	frostAlertC   = -5
	heatAlertC    = 30
	aqiAlertLevel = 120
	maxAlerts     = 3
)

// Alert is one line in the warnings panel. Type is a format severity class.
type Alert struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

var stableAlert = Alert{Type: format.ClassOK, Title: "Warunki stabilne", Text: "Brak istotnych ostrzeżeń w tej chwili."}

// buildAlerts evaluates the rules in fixed order and keeps the first three.
func buildAlerts(c *currentBlock, usAQI *float64) []Alert {
	var alerts []Alert
	if c.WindSpeed != nil && *c.WindSpeed >= windAlertKmh {
		alerts = append(alerts, Alert{format.ClassWarning, "Silny wiatr",
			"Wiatr " + format.Number(c.WindSpeed, 0) + " km/h. Uważaj na luźne przedmioty i drzewa."})
	}
	if c.Temperature != nil && *c.Temperature <= frostAlertC {
		alerts = append(alerts, Alert{format.ClassWarning, "Mróz",
			"Temperatura " + format.Number(c.Temperature, 0) + "°C. Ślisko — zachowaj ostrożność."})
	}
	if c.Temperature != nil && *c.Temperature >= heatAlertC {
		alerts = append(alerts, Alert{format.ClassWarning, "Upał",
			"Temperatura " + format.Number(c.Temperature, 0) + "°C. Pij wodę i unikaj słońca w południe."})
	}
	if c.WeatherCode != nil && format.IsStorm(code(c.WeatherCode)) {
		alerts = append(alerts, Alert{format.ClassDanger, "Burza",
			"Możliwe wyładowania. Unikaj otwartych przestrzeni i drzew."})
	}
	if usAQI != nil && !math.IsNaN(*usAQI) && *usAQI >= aqiAlertLevel {
		alerts = append(alerts, Alert{format.ClassWarning, "Słaba jakość powietrza",
			"AQI " + strconv.Itoa(int(math.Round(*usAQI))) + ". Rozważ ograniczenie aktywności na zewnątrz."})
	}

	if len(alerts) == 0 {
		return []Alert{stableAlert}
	}
	if len(alerts) > maxAlerts {
		alerts = alerts[:maxAlerts]
	}
	return alerts
}
