package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
)

const (
	// BaseTileURL is the OpenStreetMap base layer template.
	BaseTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

	defaultZoom = 8
	placeZoom   = 9
	radarOpaque = 0.75
)

// MapState mirrors the slippy map: view center, zoom and layers.
type MapState struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Zoom        int         `json:"zoom"`
	BaseTileURL string      `json:"baseTileUrl"`
	Radar       *RadarLayer `json:"radar,omitempty"`
}

// RadarLayer is the precipitation overlay for one RainViewer frame.
type RadarLayer struct {
	Time    int64   `json:"time"`
	TileURL string  `json:"tileUrl"`
	Opacity float64 `json:"opacity"`
}

func (m MapState) clone() MapState {
	if m.Radar != nil {
		r := *m.Radar
		m.Radar = &r
	}
	return m
}

// MapView is the map panel: the map (nil before init) and the radar toggle.
type MapView struct {
	Map           *MapState `json:"map"`
	RadarOn       bool      `json:"radarOn"`
	RadarVisible  bool      `json:"radarVisible"`
	RadarButton   string    `json:"radarButton"`
	LastRadarTime int64     `json:"lastRadarTime,omitempty"`
}

// MapView renders the map panel.
func (s *Service) MapView() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapViewLocked()
}

func (s *Service) mapViewLocked() MapView {
	v := MapView{
		RadarOn:       s.state.RadarOn,
		RadarButton:   "⛈️ Radar: OFF",
		LastRadarTime: s.state.LastRadarTime,
	}
	if s.state.RadarOn {
		v.RadarButton = "⛈️ Radar: ON"
	}
	if s.state.Map != nil {
		m := s.state.Map.clone()
		v.Map = &m
		v.RadarVisible = s.state.RadarOn && m.Radar != nil
	}
	return v
}

// InitMap creates the map centered on Warsaw and loads the radar layer. It is
// a no-op when the map already exists. A radar failure leaves the map without
// an overlay and is returned as ErrRadarUnavailable.
func (s *Service) InitMap(ctx context.Context) (MapView, error) {
	s.mu.Lock()
	if s.state.Map != nil {
		v := s.mapViewLocked()
		s.mu.Unlock()
		return v, nil
	}
	s.state.Map = &MapState{
		Latitude:    models.DefaultPlace.Latitude,
		Longitude:   models.DefaultPlace.Longitude,
		Zoom:        defaultZoom,
		BaseTileURL: BaseTileURL,
	}
	s.mu.Unlock()

	return s.RefreshRadar(ctx)
}

// CenterMap moves the map to the current place. Nothing happens before the
// map exists or without a place.
func (s *Service) CenterMap() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centerLocked()
	return s.mapViewLocked()
}

func (s *Service) centerLocked() {
	if s.state.Map == nil || s.state.Place == nil {
		return
	}
	s.state.Map.Latitude = s.state.Place.Latitude
	s.state.Map.Longitude = s.state.Place.Longitude
	s.state.Map.Zoom = placeZoom
}

// SetRadar shows or hides the radar overlay.
func (s *Service) SetRadar(on bool) MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RadarOn = on
	return s.mapViewLocked()
}

// RefreshRadar points the radar layer at the newest frame.
func (s *Service) RefreshRadar(ctx context.Context) (MapView, error) {
	frame, err := s.api.LatestRadarFrame(ctx)
	if err != nil {
		observability.RadarRefreshesTotal.WithLabelValues("error").Inc()
		s.loggerFromContext(ctx).Warn("radar refresh failed", zap.Error(err))
		return s.MapView(), fmt.Errorf("%w: %v", ErrRadarUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastRadarTime = frame.Time
	if s.state.Map != nil {
		if s.state.Map.Radar == nil {
			s.state.Map.Radar = &RadarLayer{Opacity: radarOpaque}
		}
		s.state.Map.Radar.Time = frame.Time
		s.state.Map.Radar.TileURL = frame.TileURL
	}
	observability.RadarRefreshesTotal.WithLabelValues("success").Inc()
	return s.mapViewLocked(), nil
}

// RadarTick is the periodic radar refresh. It does nothing until a map exists.
func (s *Service) RadarTick(ctx context.Context) error {
	s.mu.Lock()
	hasMap := s.state.Map != nil
	s.mu.Unlock()
	if !hasMap {
		observability.RadarRefreshesTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	_, err := s.RefreshRadar(ctx)
	return err
}
