package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/validation"
	"github.com/kjstillabower/weather-pro-dashboard/internal/view"
)

// maxQueryLength bounds search text sent to the geocoder.
const maxQueryLength = 100

// stateResponse is the page chrome outside the weather panels.
type stateResponse struct {
	Place          *models.Place      `json:"place"`
	Theme          models.Theme       `json:"theme"`
	ThemeIcon      string             `json:"themeIcon"`
	Favorites      view.FavoritesView `json:"favorites"`
	FavoriteButton string             `json:"favoriteButton"`
	Map            dashboard.MapView  `json:"map"`
}

// GetState handles GET /api/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st := h.dashboard.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		Place:          st.Place,
		Theme:          st.Theme,
		ThemeIcon:      st.Theme.Icon(),
		Favorites:      h.dashboard.Favorites(),
		FavoriteButton: view.FavoriteButton(h.dashboard.IsFavorite()),
		Map:            h.dashboard.MapView(),
	})
}

// GetDashboard handles GET /api/dashboard: refresh for the current place.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSuggestions handles GET /api/search?q=. Never fails: bad input gives no rows.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	q, err := validation.ValidateQuery(r.URL.Query().Get("q"), validation.MinQueryLength, maxQueryLength)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": []view.Suggestion{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": h.dashboard.Search(r.Context(), q)})
}

// PostSearch handles POST /api/search {"query": "..."}.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	q, err := validation.ValidateQuery(body.Query, validation.MinQueryLength, maxQueryLength)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	res, err := h.dashboard.RunSearch(r.Context(), q)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PostPlace handles POST /api/place with a Place body (a suggestion or favorite).
func (h *Handler) PostPlace(w http.ResponseWriter, r *http.Request) {
	var p models.Place
	if !decodeBody(w, r, &p) {
		return
	}
	res, err := h.dashboard.SelectPlace(r.Context(), p)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PostLocate handles POST /api/locate {"latitude": .., "longitude": ..}.
func (h *Handler) PostLocate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude are required")
		return
	}
	res, err := h.dashboard.Locate(r.Context(), *body.Latitude, *body.Longitude)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetFavorites handles GET /api/favorites.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Favorites())
}

// PostFavorite handles POST /api/favorites: add the current place.
func (h *Handler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	v, err := h.dashboard.AddFavorite(r.Context())
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"favorites":      v,
		"favoriteButton": view.FavoriteButton(true),
		"message":        dashboard.MsgFavoriteAdded,
	})
}

// DeleteFavorite handles DELETE /api/favorites/{index}.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INDEX", "favorite index must be an integer")
		return
	}
	v, name, err := h.dashboard.RemoveFavorite(r.Context(), idx)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorites":      v,
		"removed":        name,
		"favoriteButton": view.FavoriteButton(h.dashboard.IsFavorite()),
	})
}

// PutTheme handles PUT /api/theme {"theme": "light"|"dark"}.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.writeTheme(w, r, func() (models.Theme, error) {
		return h.dashboard.SetTheme(r.Context(), models.Theme(body.Theme))
	})
}

// PostThemeToggle handles POST /api/theme/toggle.
func (h *Handler) PostThemeToggle(w http.ResponseWriter, r *http.Request) {
	h.writeTheme(w, r, func() (models.Theme, error) {
		return h.dashboard.ToggleTheme(r.Context())
	})
}

func (h *Handler) writeTheme(w http.ResponseWriter, r *http.Request, apply func() (models.Theme, error)) {
	t, err := apply()
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": string(t), "icon": t.Icon()})
}

// GetShare handles GET /api/share.
func (h *Handler) GetShare(w http.ResponseWriter, r *http.Request) {
	share, err := h.dashboard.ShareLink(h.publicURL)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

// GetMap handles GET /api/map.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.MapView())
}

// PostMapCenter handles POST /api/map/center.
func (h *Handler) PostMapCenter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.CenterMap())
}

// PutRadar handles PUT /api/radar {"on": bool}.
func (h *Handler) PutRadar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On *bool `json:"on"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.On == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "on is required")
		return
	}
	writeJSON(w, http.StatusOK, h.dashboard.SetRadar(*body.On))
}

// PostRadarRefresh handles POST /api/radar/refresh.
func (h *Handler) PostRadarRefresh(w http.ResponseWriter, r *http.Request) {
	v, err := h.dashboard.RefreshRadar(r.Context())
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	return true
}

// errorMapping ties a dashboard error to its HTTP status and code.
type errorMapping struct {
	err    error
	status int
	code   string
}

var dashboardErrors = []errorMapping{
	{dashboard.ErrNoPlace, http.StatusConflict, "NO_PLACE"},
	{validation.ErrQueryTooShort, http.StatusBadRequest, "QUERY_TOO_SHORT"},
	{validation.ErrQueryTooLong, http.StatusBadRequest, "QUERY_TOO_LONG"},
	{validation.ErrQueryInvalidChars, http.StatusBadRequest, "QUERY_INVALID_CHARS"},
	{validation.ErrInvalidPlace, http.StatusBadRequest, "INVALID_PLACE"},
	{dashboard.ErrInvalidDeepLink, http.StatusBadRequest, "INVALID_DEEP_LINK"},
	{dashboard.ErrNoResults, http.StatusNotFound, "NO_RESULTS"},
	{dashboard.ErrFavoriteIndex, http.StatusNotFound, "FAVORITE_NOT_FOUND"},
	{dashboard.ErrAlreadyFavorite, http.StatusConflict, "ALREADY_FAVORITE"},
	{dashboard.ErrSuperseded, http.StatusConflict, "SUPERSEDED"},
	{dashboard.ErrSearchFailed, http.StatusBadGateway, "SEARCH_FAILED"},
	{dashboard.ErrNoData, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	{dashboard.ErrSnapshotUnreadable, http.StatusServiceUnavailable, "SNAPSHOT_UNREADABLE"},
	{dashboard.ErrRadarUnavailable, http.StatusServiceUnavailable, "RADAR_UNAVAILABLE"},
}

// writeDashboardError maps err onto the error envelope. The message is the
// Polish text shown to the user when there is one.
func writeDashboardError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	for _, m := range dashboardErrors {
		if errors.Is(err, m.err) {
			status, code = m.status, m.code
			break
		}
	}
	msg := dashboard.UserMessage(err)
	if msg == "" {
		msg = err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("dashboard request failed", zap.String("code", code), zap.Error(err))
	}
	writeError(w, r, status, code, msg)
}
