package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/view"
)

// Favorites renders the favorites strip.
func (s *Service) Favorites() view.FavoritesView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view.Favorites(s.state.Favorites)
}

// IsFavorite reports whether the current place is among the favorites.
func (s *Service) IsFavorite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFavoriteLocked()
}

func (s *Service) isFavoriteLocked() bool {
	if s.state.Place == nil {
		return false
	}
	for _, f := range s.state.Favorites {
		if models.SamePlace(f, *s.state.Place) {
			return true
		}
	}
	return false
}

// AddFavorite puts the current place at the front of the favorites, keeping
// at most ten (the oldest drops off).
func (s *Service) AddFavorite(ctx context.Context) (view.FavoritesView, error) {
	s.mu.Lock()
	if s.state.Place == nil {
		s.mu.Unlock()
		return view.FavoritesView{}, ErrNoPlace
	}
	if s.isFavoriteLocked() {
		v := view.Favorites(s.state.Favorites)
		s.mu.Unlock()
		return v, ErrAlreadyFavorite
	}
	favs := append([]models.Place{*s.state.Place}, s.state.Favorites...)
	if len(favs) > maxFavorites {
		favs = favs[:maxFavorites]
	}
	s.state.Favorites = favs
	v := view.Favorites(favs)
	s.mu.Unlock()

	return v, s.persistFavorites(ctx, favs)
}

// RemoveFavorite drops the favorite at idx and returns its name.
func (s *Service) RemoveFavorite(ctx context.Context, idx int) (view.FavoritesView, string, error) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.state.Favorites) {
		v := view.Favorites(s.state.Favorites)
		s.mu.Unlock()
		return v, "", fmt.Errorf("%w: %d", ErrFavoriteIndex, idx)
	}
	removed := s.state.Favorites[idx].Name
	favs := append(append([]models.Place{}, s.state.Favorites[:idx]...), s.state.Favorites[idx+1:]...)
	s.state.Favorites = favs
	v := view.Favorites(favs)
	s.mu.Unlock()

	return v, removed, s.persistFavorites(ctx, favs)
}

func (s *Service) persistFavorites(ctx context.Context, favs []models.Place) error {
	raw, err := json.Marshal(favs)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyFavorites, string(raw)); err != nil {
		return fmt.Errorf("persist favorites: %w", err)
	}
	return nil
}
