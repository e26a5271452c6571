// Package dashboard holds the dashboard state (current place, favorites, theme
// and map) and runs the refresh cycle against the upstream APIs, falling back
// to the last saved snapshot when they are unreachable.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/kvstore"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/validation"
)

// Keys in the durable store.
const (
	KeyPlace     = "wp_place"
	KeyFavorites = "wp_favorites"
	KeyTheme     = "wp_theme"
	KeySnapshot  = "wp_last_payload"
)

var (
	ErrNoPlace            = errors.New("no place selected")
	ErrNoData             = errors.New("no data and no saved snapshot")
	ErrSnapshotUnreadable = errors.New("saved snapshot unreadable")
	ErrSuperseded         = errors.New("refresh superseded by a newer one")
	ErrQueryTooShort      = validation.ErrQueryTooShort
	ErrNoResults          = errors.New("no matching places")
	ErrSearchFailed       = errors.New("search failed")
	ErrAlreadyFavorite    = errors.New("place already in favorites")
	ErrFavoriteIndex      = errors.New("favorite index out of range")
	ErrInvalidDeepLink    = errors.New("deep link needs finite lat, lon and a name")
	ErrRadarUnavailable   = errors.New("radar unavailable")
)

// User-facing messages.
const (
	MsgOffline          = "Offline: pokazuję ostatnie zapisane dane."
	MsgSnapshotFailed   = "Nie udało się wczytać danych."
	MsgNoData           = "Nie udało się pobrać danych. Sprawdź internet."
	MsgQueryTooShort    = "Wpisz co najmniej 2 znaki."
	MsgNoResults        = "Nie znaleziono lokalizacji."
	MsgSearchFailed     = "Błąd wyszukiwania. Spróbuj ponownie."
	MsgAlreadyFavorite  = "To miejsce już jest w ulubionych."
	MsgFavoriteAdded    = "Dodano do ulubionych ⭐"
	MsgRadarUnavailable = "Radar opadów niedostępny (spróbuj później)."
	MsgLocationFallback = "Twoja lokalizacja"
	MsgChoosePlace      = "Wybierz lokalizację"
)

const maxFavorites = 10

// UserMessage returns the Polish message shown for err, or "" when err has none.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return MsgNoData
	case errors.Is(err, ErrSnapshotUnreadable):
		return MsgSnapshotFailed
	case errors.Is(err, ErrQueryTooShort):
		return MsgQueryTooShort
	case errors.Is(err, ErrNoResults):
		return MsgNoResults
	case errors.Is(err, ErrSearchFailed):
		return MsgSearchFailed
	case errors.Is(err, ErrAlreadyFavorite):
		return MsgAlreadyFavorite
	case errors.Is(err, ErrNoPlace):
		return MsgChoosePlace
	case errors.Is(err, ErrRadarUnavailable):
		return MsgRadarUnavailable
	}
	return ""
}

// State is the dashboard state. Place is nil until one is chosen and Map is
// nil until the map has been initialized.
type State struct {
	Place         *models.Place  `json:"place"`
	Favorites     []models.Place `json:"favorites"`
	Theme         models.Theme   `json:"theme"`
	RadarOn       bool           `json:"radarOn"`
	LastRadarTime int64          `json:"lastRadarTime,omitempty"`
	Map           *MapState      `json:"map"`
}

// Service owns the State and mirrors it into a kvstore.Store. All methods are
// safe for concurrent use; network calls happen outside the state lock.
type Service struct {
	api    client.API
	store  kvstore.Store
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State

	// seq hands out refresh tokens; snapMu serializes the latest-token check
	// with the snapshot write.
	seq    atomic.Uint64
	snapMu sync.Mutex
}

// New creates a Service with the default theme and the radar switched on.
// Call Load to restore persisted state.
func New(api client.API, store kvstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
		state: State{
			Favorites: []models.Place{},
			Theme:     models.ThemeDark,
			RadarOn:   true,
		},
	}
}

// loggerFromContext prefers the request-scoped logger set by the HTTP middleware.
func (s *Service) loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStateLocked()
}

func (s *Service) copyStateLocked() State {
	st := s.state
	st.Favorites = append([]models.Place{}, s.state.Favorites...)
	if s.state.Place != nil {
		p := *s.state.Place
		st.Place = &p
	}
	if s.state.Map != nil {
		m := s.state.Map.clone()
		st.Map = &m
	}
	return st
}

// Load restores theme, favorites and place from the store. Unreadable values
// are logged and treated as absent; only store failures are returned.
func (s *Service) Load(ctx context.Context) error {
	logger := s.loggerFromContext(ctx)

	theme := models.ThemeDark
	if raw, ok, err := s.store.Get(ctx, KeyTheme); err != nil {
		return fmt.Errorf("load theme: %w", err)
	} else if ok {
		theme = models.ParseTheme(raw)
	}

	favorites := []models.Place{}
	if raw, ok, err := s.store.Get(ctx, KeyFavorites); err != nil {
		return fmt.Errorf("load favorites: %w", err)
	} else if ok {
		var parsed []models.Place
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			logger.Warn("ignoring unreadable favorites", zap.Error(err))
		} else if parsed != nil {
			if len(parsed) > maxFavorites {
				logger.Warn("truncating stored favorites", zap.Int("stored", len(parsed)), zap.Int("max", maxFavorites))
				parsed = parsed[:maxFavorites]
			}
			favorites = parsed
		}
	}

	var place *models.Place
	if raw, ok, err := s.store.Get(ctx, KeyPlace); err != nil {
		return fmt.Errorf("load place: %w", err)
	} else if ok {
		var p models.Place
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logger.Warn("ignoring unreadable place", zap.Error(err))
		} else if usableCoord(p.Latitude) && usableCoord(p.Longitude) {
			place = &p
		}
	}

	s.mu.Lock()
	s.state.Theme = theme
	s.state.Favorites = favorites
	if place != nil {
		s.state.Place = place
	}
	s.mu.Unlock()

	logger.Debug("dashboard state loaded",
		zap.String("theme", string(theme)),
		zap.Int("favorites", len(favorites)),
		zap.Bool("place", place != nil),
	)
	return nil
}

// usableCoord rejects the zero and NaN coordinates an empty or broken record carries.
func usableCoord(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

// EnsurePlace selects the default place when none is set.
func (s *Service) EnsurePlace(ctx context.Context) error {
	s.mu.Lock()
	has := s.state.Place != nil
	s.mu.Unlock()
	if has {
		return nil
	}
	return s.SetPlace(ctx, models.DefaultPlace)
}

// SelectPlace makes p the current place and refreshes the dashboard for it.
func (s *Service) SelectPlace(ctx context.Context, p models.Place) (Result, error) {
	if err := s.SetPlace(ctx, p); err != nil {
		return Result{}, err
	}
	return s.Refresh(ctx)
}

// SetPlace validates and persists p as the current place without refreshing.
func (s *Service) SetPlace(ctx context.Context, p models.Place) error {
	if err := validation.ValidatePlace(p); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Place = &p
	s.mu.Unlock()
	if err := s.store.Set(ctx, KeyPlace, string(raw)); err != nil {
		return fmt.Errorf("persist place: %w", err)
	}
	return nil
}

// SetTheme persists t.
func (s *Service) SetTheme(ctx context.Context, t models.Theme) (models.Theme, error) {
	t = models.ParseTheme(string(t))
	s.mu.Lock()
	s.state.Theme = t
	s.mu.Unlock()
	if err := s.store.Set(ctx, KeyTheme, string(t)); err != nil {
		return t, fmt.Errorf("persist theme: %w", err)
	}
	return t, nil
}

// ToggleTheme flips between light and dark.
func (s *Service) ToggleTheme(ctx context.Context) (models.Theme, error) {
	s.mu.Lock()
	next := s.state.Theme.Toggle()
	s.mu.Unlock()
	return s.SetTheme(ctx, next)
}
