// Package format holds the pure lookup tables and number formatting used by the dashboard views.
package format

// unknownWeatherText is returned for WMO codes outside the known table.
const unknownWeatherText = "Warunki zmienne"

var weatherTexts = map[int]string{
	0:  "Bezchmurnie",
	1:  "Przeważnie pogodnie",
	2:  "Częściowe zachmurzenie",
	3:  "Pochmurno",
	45: "Mgła",
	48: "Szadź / mgła osadzająca",
	51: "Mżawka słaba",
	53: "Mżawka umiarkowana",
	55: "Mżawka silna",
	56: "Marznąca mżawka słaba",
	57: "Marznąca mżawka silna",
	61: "Deszcz słaby",
	63: "Deszcz umiarkowany",
	65: "Deszcz silny",
	66: "Marznący deszcz słaby",
	67: "Marznący deszcz silny",
	71: "Śnieg słaby",
	73: "Śnieg umiarkowany",
	75: "Śnieg silny",
	77: "Ziarnisty śnieg",
	80: "Przelotny deszcz słaby",
	81: "Przelotny deszcz umiarkowany",
	82: "Przelotny deszcz silny",
	85: "Przelotny śnieg słaby",
	86: "Przelotny śnieg silny",
	95: "Burza",
	96: "Burza z gradem (słaba)",
	99: "Burza z gradem (silna)",
}

// WeatherText returns the Polish description for a WMO weather code.
func WeatherText(code int) string {
	if s, ok := weatherTexts[code]; ok {
		return s
	}
	return unknownWeatherText
}

// WeatherIcon returns the glyph for a WMO weather code. Clear and mostly clear
// skies have night variants.
func WeatherIcon(code int, isDay bool) string {
	switch code {
	case 0:
		if isDay {
			return "☀️"
		}
		return "🌙"
	case 1, 2:
		if isDay {
			return "🌤️"
		}
		return "☁️"
	case 3:
		return "☁️"
	case 45, 48:
		return "🌫️"
	case 51, 53, 55, 56, 57:
		return "🌦️"
	case 61, 63, 65, 80, 81, 82:
		return "🌧️"
	case 66, 67:
		return "🧊🌧️"
	case 71, 73, 75, 77, 85, 86:
		return "🌨️"
	case 95, 96, 99:
		return "⛈️"
	default:
		return "⛅"
	}
}

// IsStorm reports whether code is one of the thunderstorm codes.
func IsStorm(code int) bool {
	return code == 95 || code == 96 || code == 99
}
