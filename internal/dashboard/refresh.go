package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
	"github.com/kjstillabower/weather-pro-dashboard/internal/traffic"
	"github.com/kjstillabower/weather-pro-dashboard/internal/view"
)

// Result is one rendered refresh.
type Result struct {
	Place          models.Place   `json:"place"`
	Subtitle       string         `json:"subtitle"`
	View           view.Dashboard `json:"view"`
	Offline        bool           `json:"offline"`
	SavedAt        int64          `json:"savedAt,omitempty"`
	Notices        []string       `json:"notices,omitempty"`
	FavoriteButton string         `json:"favoriteButton"`
	Theme          models.Theme   `json:"theme"`
	Map            MapView        `json:"map"`
}

// Refresh fetches forecast and air quality for the current place, renders
// them and saves them as the snapshot. When either fetch fails the last
// snapshot is rendered instead with Offline set. A refresh overtaken by a
// newer one returns ErrSuperseded and leaves the snapshot alone.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	token := s.seq.Add(1)
	logger := s.loggerFromContext(ctx)

	s.mu.Lock()
	if s.state.Place == nil {
		s.mu.Unlock()
		return Result{}, ErrNoPlace
	}
	place := *s.state.Place
	s.centerLocked()
	s.mu.Unlock()

	weather, air, err := s.fetch(ctx, place)
	var dash view.Dashboard
	if err == nil {
		dash, err = view.Build(place, weather, air, s.now())
	}
	if err != nil {
		logger.Info("refresh failed, falling back to snapshot",
			zap.String("place", place.Name),
			zap.String("error_category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
		return s.fromSnapshot(ctx, token, err)
	}

	savedAt := s.now().UnixMilli()
	if err := s.saveSnapshot(ctx, token, models.Snapshot{Place: place, Weather: weather, Air: air, SavedAt: savedAt}); err != nil {
		if errors.Is(err, ErrSuperseded) {
			observability.DashboardRefreshesTotal.WithLabelValues("superseded").Inc()
			return Result{}, err
		}
		logger.Warn("snapshot not saved", zap.Error(err))
	}
	traffic.RecordSuccess()

	var notices []string
	s.mu.Lock()
	hasMap := s.state.Map != nil
	s.mu.Unlock()
	if hasMap {
		_, err = s.RefreshRadar(ctx)
	} else {
		_, err = s.InitMap(ctx)
	}
	if err != nil {
		notices = append(notices, MsgRadarUnavailable)
	}

	s.mu.Lock()
	s.centerLocked()
	res := s.resultLocked(place, dash)
	s.mu.Unlock()
	res.SavedAt = savedAt
	res.Notices = notices

	observability.DashboardRefreshesTotal.WithLabelValues("success").Inc()
	logger.Debug("dashboard refreshed", zap.String("place", place.Name))
	return res, nil
}

// fetch runs the forecast and air-quality calls in parallel; both must succeed.
func (s *Service) fetch(ctx context.Context, place models.Place) (models.Payload, models.Payload, error) {
	var (
		wg                 sync.WaitGroup
		weather, air       models.Payload
		weatherErr, airErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		weather, weatherErr = s.api.Forecast(ctx, place.Latitude, place.Longitude)
	}()
	go func() {
		defer wg.Done()
		air, airErr = s.api.AirQuality(ctx, place.Latitude, place.Longitude)
	}()
	wg.Wait()
	if err := errors.Join(weatherErr, airErr); err != nil {
		return nil, nil, err
	}
	return weather, air, nil
}

func (s *Service) isLatest(token uint64) bool {
	return s.seq.Load() == token
}

func (s *Service) saveSnapshot(ctx context.Context, token uint64, snap models.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if !s.isLatest(token) {
		return ErrSuperseded
	}
	if err := s.store.Set(ctx, KeySnapshot, string(raw)); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// fromSnapshot renders the saved snapshot after a failed refresh.
func (s *Service) fromSnapshot(ctx context.Context, token uint64, cause error) (Result, error) {
	traffic.RecordError()
	if !s.isLatest(token) {
		observability.DashboardRefreshesTotal.WithLabelValues("superseded").Inc()
		return Result{}, ErrSuperseded
	}

	raw, ok, err := s.store.Get(ctx, KeySnapshot)
	if err != nil {
		s.loggerFromContext(ctx).Warn("snapshot lookup failed", zap.Error(err))
	}
	if err != nil || !ok {
		observability.DashboardRefreshesTotal.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrNoData, cause)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		observability.DashboardRefreshesTotal.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	dash, err := view.Build(snap.Place, snap.Weather, snap.Air, s.now())
	if err != nil {
		observability.DashboardRefreshesTotal.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}

	s.mu.Lock()
	res := s.resultLocked(snap.Place, dash)
	s.mu.Unlock()
	res.Offline = true
	res.SavedAt = snap.SavedAt
	res.Notices = []string{MsgOffline}

	observability.DashboardRefreshesTotal.WithLabelValues("offline").Inc()
	return res, nil
}

func (s *Service) resultLocked(place models.Place, dash view.Dashboard) Result {
	return Result{
		Place:          place,
		Subtitle:       place.Name + " • " + place.Country,
		View:           dash,
		FavoriteButton: view.FavoriteButton(s.isFavoriteLocked()),
		Theme:          s.state.Theme,
		Map:            s.mapViewLocked(),
	}
}
