package view

import "github.com/kjstillabower/weather-pro-dashboard/internal/models"

const (
	favoritesHintEmpty = "Dodaj ulubione miejsca ⭐, aby szybko się przełączać."
	favoritesHintUsage = "Tip: dłuższe przytrzymanie / prawy klik na ulubionym usuwa."
)

// Suggestion is one search dropdown row. Index points back into the search results.
type Suggestion struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Meta  string `json:"meta"`
}

// Chip is one favorite. Index is the position used to remove it.
type Chip struct {
	Index   int          `json:"index"`
	Name    string       `json:"name"`
	Country string       `json:"country"`
	Place   models.Place `json:"place"`
}

// FavoritesView is the favorites strip plus its hint line.
type FavoritesView struct {
	Chips []Chip `json:"chips"`
	Hint  string `json:"hint"`
}

func Suggestions(places []models.Place) []Suggestion {
	out := make([]Suggestion, 0, len(places))
	for i, p := range places {
		out = append(out, Suggestion{Index: i, Name: p.Name, Meta: p.Meta()})
	}
	return out
}

func Favorites(places []models.Place) FavoritesView {
	v := FavoritesView{Chips: make([]Chip, 0, len(places)), Hint: favoritesHintEmpty}
	for i, p := range places {
		v.Chips = append(v.Chips, Chip{Index: i, Name: p.Name, Country: p.Country, Place: p})
	}
	if len(places) > 0 {
		v.Hint = favoritesHintUsage
	}
	return v
}

// FavoriteButton labels the add-to-favorites button.
func FavoriteButton(isFavorite bool) string {
	if isFavorite {
		return "⭐ W ulubionych"
	}
	return "⭐ Dodaj do ulubionych"
}
