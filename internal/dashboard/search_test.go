package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

func TestSearch(t *testing.T) {
	svc, api, _ := newTestService(t)
	ctx := context.Background()
	api.places = []models.Place{krakow, {Name: "Krakow", Country: "USA", Latitude: 41.97, Longitude: -91.96}}

	if got := svc.Search(ctx, " k "); len(got) != 0 {
		t.Errorf("Search(short) = %v, want empty", got)
	}
	if api.calls["geocode"] != 0 {
		t.Error("short query reached the geocoder")
	}

	got := svc.Search(ctx, "Krak")
	if len(got) != 2 || got[0].Meta != "Małopolskie, Polska" || got[1].Index != 1 {
		t.Errorf("Search() = %+v", got)
	}

	api.fail(client.ErrUpstreamFailure)
	if got := svc.Search(ctx, "Krak"); len(got) != 0 {
		t.Errorf("Search() on error = %v, want empty", got)
	}
}

func TestRunSearch(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		places  []models.Place
		err     error
		wantErr error
	}{
		{"too short", "a", nil, nil, ErrQueryTooShort},
		{"no results", "Atlantis", nil, nil, ErrNoResults},
		{"upstream error", "Kraków", nil, client.ErrUpstreamFailure, ErrSearchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, _ := newTestService(t)
			api.places = tt.places
			api.err = tt.err
			_, err := svc.RunSearch(context.Background(), tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RunSearch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunSearch_SelectsFirstMatch(t *testing.T) {
	svc, api, _ := newTestService(t)
	api.places = []models.Place{krakow, models.DefaultPlace}

	res, err := svc.RunSearch(context.Background(), "Kraków")
	if err != nil {
		t.Fatalf("RunSearch() error = %v", err)
	}
	if res.Place.Name != "Kraków" {
		t.Errorf("Place = %q, want Kraków", res.Place.Name)
	}
	if p := svc.Snapshot().Place; p == nil || p.Name != "Kraków" {
		t.Errorf("state place = %+v", p)
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name        string
		reverse     models.Place
		revErr      error
		wantName    string
		wantCountry string
	}{
		{"named", models.Place{Name: "Gdańsk", Country: "Polska"}, nil, "Gdańsk", "Polska"},
		{"no name", models.Place{Admin1: "Pomorskie", Country: "Polska"}, client.ErrNoName, MsgLocationFallback, "Polska"},
		{"lookup failed", models.Place{}, client.ErrUpstreamFailure, MsgLocationFallback, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, _ := newTestService(t)
			api.reverse = tt.reverse
			api.revErr = tt.revErr

			res, err := svc.Locate(context.Background(), 54.35, 18.65)
			if err != nil {
				t.Fatalf("Locate() error = %v", err)
			}
			if res.Place.Name != tt.wantName || res.Place.Country != tt.wantCountry {
				t.Errorf("Place = %+v", res.Place)
			}
			if res.Place.Latitude != 54.35 || res.Place.Longitude != 18.65 {
				t.Errorf("coordinates = %v,%v", res.Place.Latitude, res.Place.Longitude)
			}
		})
	}
}
