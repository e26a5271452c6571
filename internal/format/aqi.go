package format

import "math"

// Severity classes used by the air-quality badge and alerts.
const (
	ClassOK      = "ok"
	ClassWarning = "warning"
	ClassDanger  = "danger"
)

// AQIBand is one row of the US AQI classification.
type AQIBand struct {
	Label  string `json:"label"`
	Class  string `json:"class"`
	Text   string `json:"text"`
	Advice string `json:"advice"`
}

// NoDataBand is returned when the index is missing or not a number.
var NoDataBand = AQIBand{Label: Dash, Class: "", Text: "Brak danych.", Advice: Dash}

var aqiBands = []struct {
	max  float64
	band AQIBand
}{
	{50, AQIBand{"Dobra", ClassOK, "Powietrze jest czyste.", "Okno: tak • Aktywność: tak"}},
	{100, AQIBand{"Umiarkowana", ClassWarning, "Dla wrażliwych może być odczuwalne.", "Okno: ostrożnie • Aktywność: ok"}},
	{150, AQIBand{"Niezdrowa (wrażliwi)", ClassWarning, "Ogranicz wysiłek na zewnątrz, jeśli jesteś wrażliwy.", "Okno: krócej • Aktywność: lekka"}},
	{200, AQIBand{"Niezdrowa", ClassDanger, "Rozważ ograniczenie przebywania na zewnątrz.", "Okno: nie • Aktywność: ogranicz"}},
	{300, AQIBand{"Bardzo niezdrowa", ClassDanger, "Zalecane pozostanie w domu.", "Okno: nie • Aktywność: nie"}},
}

var hazardousBand = AQIBand{"Niebezpieczna", ClassDanger, "Unikaj wychodzenia na zewnątrz.", "Okno: nie • Aktywność: nie"}

// ClassifyAQI maps a US AQI value onto its band. Bounds are inclusive.
func ClassifyAQI(v *float64) AQIBand {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return NoDataBand
	}
	for _, b := range aqiBands {
		if *v <= b.max {
			return b.band
		}
	}
	return hazardousBand
}
