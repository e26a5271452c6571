package format

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	weekdaysLong  = [7]string{"niedziela", "poniedziałek", "wtorek", "środa", "czwartek", "piątek", "sobota"}
	weekdaysShort = [7]string{"niedz.", "pon.", "wt.", "śr.", "czw.", "pt.", "sob."}
	monthsShort   = [12]string{"sty", "lut", "mar", "kwi", "maj", "cze", "lip", "sie", "wrz", "paź", "lis", "gru"}

	polishTitle = cases.Title(language.Polish)
)

// WeekdayLong returns the capitalized Polish weekday name, e.g. "Poniedziałek".
func WeekdayLong(t time.Time) string {
	return polishTitle.String(weekdaysLong[t.Weekday()])
}

// WeekdayShort returns the abbreviated Polish weekday, e.g. "pon.".
func WeekdayShort(t time.Time) string {
	return weekdaysShort[t.Weekday()]
}

// Clock renders "HH:MM".
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// MediumDateTime renders "2 sty 2026, 14:05".
func MediumDateTime(t time.Time) string {
	return fmt.Sprintf("%d %s %d, %s", t.Day(), monthsShort[t.Month()-1], t.Year(), Clock(t))
}

// Updated renders the "last update" line for the current conditions panel.
func Updated(t time.Time) string {
	return "Aktualizacja: " + MediumDateTime(t)
}
