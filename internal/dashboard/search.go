package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/validation"
	"github.com/kjstillabower/weather-pro-dashboard/internal/view"
)

// Search returns suggestions for q. Short queries and upstream errors both
// yield an empty list.
func (s *Service) Search(ctx context.Context, q string) []view.Suggestion {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < validation.MinQueryLength {
		return view.Suggestions(nil)
	}
	places, err := s.api.Geocode(ctx, q)
	if err != nil {
		s.loggerFromContext(ctx).Debug("suggestions unavailable", zap.String("query", q), zap.Error(err))
		return view.Suggestions(nil)
	}
	return view.Suggestions(places)
}

// RunSearch selects the first geocoding match for q and refreshes.
func (s *Service) RunSearch(ctx context.Context, q string) (Result, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < validation.MinQueryLength {
		return Result{}, ErrQueryTooShort
	}
	places, err := s.api.Geocode(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(places) == 0 {
		return Result{}, ErrNoResults
	}
	return s.SelectPlace(ctx, places[0])
}

// Locate resolves the device position to a place and refreshes. A failed
// lookup still selects the position under a placeholder name.
func (s *Service) Locate(ctx context.Context, lat, lon float64) (Result, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return Result{}, fmt.Errorf("%w: coordinates are not finite", validation.ErrInvalidPlace)
	}
	place, err := s.api.Reverse(ctx, lat, lon)
	switch {
	case errors.Is(err, client.ErrNoName):
		place.Name = MsgLocationFallback
	case err != nil:
		s.loggerFromContext(ctx).Info("reverse lookup failed, using placeholder", zap.Error(err))
		place = models.Place{Name: MsgLocationFallback}
	}
	place.Latitude, place.Longitude = lat, lon
	return s.SelectPlace(ctx, place)
}

// PlaceFromQuery reads a deep link (?lat=&lon=&name=). All three must be
// present and the coordinates finite numbers in range.
func PlaceFromQuery(q url.Values) (models.Place, error) {
	name := strings.TrimSpace(q.Get("name"))
	latRaw, lonRaw := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if name == "" || latRaw == "" || lonRaw == "" {
		return models.Place{}, ErrInvalidDeepLink
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || math.IsInf(lat, 0) || math.IsNaN(lat) {
		return models.Place{}, fmt.Errorf("%w: lat %q", ErrInvalidDeepLink, latRaw)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil || math.IsInf(lon, 0) || math.IsNaN(lon) {
		return models.Place{}, fmt.Errorf("%w: lon %q", ErrInvalidDeepLink, lonRaw)
	}
	p := models.Place{Name: name, Latitude: lat, Longitude: lon}
	if err := validation.ValidatePlace(p); err != nil {
		return models.Place{}, fmt.Errorf("%w: %v", ErrInvalidDeepLink, err)
	}
	return p, nil
}

// ApplyDeepLink selects the place named by q, if q carries one. It reports
// whether a place was applied.
func (s *Service) ApplyDeepLink(ctx context.Context, q url.Values) (bool, error) {
	if !q.Has("lat") && !q.Has("lon") && !q.Has("name") {
		return false, nil
	}
	p, err := PlaceFromQuery(q)
	if err != nil {
		return false, err
	}
	if err := s.SetPlace(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// Share is what the share action hands to the browser.
type Share struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// ShareLink builds a deep link to the current place on top of base.
func (s *Service) ShareLink(base string) (Share, error) {
	s.mu.Lock()
	place := s.state.Place
	s.mu.Unlock()
	if place == nil {
		return Share{}, ErrNoPlace
	}
	u, err := url.Parse(base)
	if err != nil {
		return Share{}, fmt.Errorf("parse share base: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(place.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(place.Longitude, 'f', -1, 64))
	q.Set("name", place.Name)
	u.RawQuery = q.Encode()
	return Share{Title: "Weather Pro", Text: "Pogoda: " + place.Name, URL: u.String()}, nil
}
