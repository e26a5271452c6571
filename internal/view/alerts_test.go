package view

import (
	"testing"

	"github.com/kjstillabower/weather-pro-dashboard/internal/format"
)

func TestBuildAlerts(t *testing.T) {
	f := format.Float
	tests := []struct {
		name       string
		current    currentBlock
		aqi        *float64
		wantTitles []string
	}{
		{"calm", currentBlock{Temperature: f(15), WindSpeed: f(10), WeatherCode: f(1)}, f(30), []string{"Warunki stabilne"}},
		{"all missing", currentBlock{}, nil, []string{"Warunki stabilne"}},
		{"wind at threshold", currentBlock{WindSpeed: f(45)}, nil, []string{"Silny wiatr"}},
		{"wind below threshold", currentBlock{WindSpeed: f(44.9)}, nil, []string{"Warunki stabilne"}},
		{"frost", currentBlock{Temperature: f(-5)}, nil, []string{"Mróz"}},
		{"heat", currentBlock{Temperature: f(30)}, nil, []string{"Upał"}},
		{"storm", currentBlock{WeatherCode: f(96)}, nil, []string{"Burza"}},
		{"aqi", currentBlock{}, f(120), []string{"Słaba jakość powietrza"}},
		{"aqi below", currentBlock{}, f(119), []string{"Warunki stabilne"}},
		{
			"capped at three",
			currentBlock{WindSpeed: f(60), Temperature: f(31), WeatherCode: f(99)},
			f(150),
			[]string{"Silny wiatr", "Upał", "Burza"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.current
			got := buildAlerts(&c, tt.aqi)
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("buildAlerts() = %+v, want titles %v", got, tt.wantTitles)
			}
			for i, a := range got {
				if a.Title != tt.wantTitles[i] {
					t.Errorf("alert[%d] = %q, want %q", i, a.Title, tt.wantTitles[i])
				}
			}
		})
	}
}

func TestBuildAlerts_Text(t *testing.T) {
	got := buildAlerts(&currentBlock{WindSpeed: format.Float(52.4)}, format.Float(134.6))
	if got[0].Text != "Wiatr 52 km/h. Uważaj na luźne przedmioty i drzewa." || got[0].Type != format.ClassWarning {
		t.Errorf("wind alert = %+v", got[0])
	}
	if got[1].Text != "AQI 135. Rozważ ograniczenie aktywności na zewnątrz." {
		t.Errorf("aqi alert = %+v", got[1])
	}
	if stable := buildAlerts(&currentBlock{}, nil)[0]; stable.Type != format.ClassOK {
		t.Errorf("stable alert type = %q", stable.Type)
	}
}
