package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
)

// API is everything the dashboard needs from the outside world.
type API interface {
	Geocode(ctx context.Context, query string) ([]models.Place, error)
	Forecast(ctx context.Context, lat, lon float64) (models.Payload, error)
	AirQuality(ctx context.Context, lat, lon float64) (models.Payload, error)
	Reverse(ctx context.Context, lat, lon float64) (models.Place, error)
	LatestRadarFrame(ctx context.Context) (RadarFrame, error)
}

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrNoName          = errors.New("reverse lookup returned no place name")
	ErrNoRadarFrames   = errors.New("no radar frames")
	ErrInvalidResponse = errors.New("invalid upstream response")
)

// Upstream labels used for metrics and error messages.
const (
	UpstreamGeocoding  = "geocoding"
	UpstreamForecast   = "forecast"
	UpstreamAirQuality = "air_quality"
	UpstreamReverse    = "reverse"
	UpstreamRadar      = "radar"
)

const (
	geocodeCount    = "6"
	geocodeLanguage = "pl"
)

var (
	currentFields = []string{
		"temperature_2m", "apparent_temperature", "relative_humidity_2m",
		"is_day", "weather_code", "wind_speed_10m", "wind_direction_10m",
		"precipitation", "rain", "showers", "snowfall",
	}
	hourlyFields = []string{
		"temperature_2m", "precipitation_probability", "precipitation",
		"wind_speed_10m", "weather_code", "is_day",
	}
	dailyFields = []string{
		"weather_code", "temperature_2m_max", "temperature_2m_min",
		"precipitation_probability_max", "sunrise", "sunset", "uv_index_max",
	}
	airFields = []string{"pm10", "pm2_5", "us_aqi", "european_aqi"}
)

// Config holds endpoint URLs. Empty fields fall back to the public services.
type Config struct {
	GeocodingURL  string
	ForecastURL   string
	AirQualityURL string
	ReverseURL    string
	RadarURL      string
	RadarTileURL  string // host prefix for radar tiles
	UserAgent     string
	Timeout       time.Duration
}

// DefaultConfig points at the public Open-Meteo, Nominatim and RainViewer APIs.
func DefaultConfig() Config {
	return Config{
		GeocodingURL:  "https://geocoding-api.open-meteo.com/v1/search",
		ForecastURL:   "https://api.open-meteo.com/v1/forecast",
		AirQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		ReverseURL:    "https://nominatim.openstreetmap.org/reverse",
		RadarURL:      "https://api.rainviewer.com/public/weather-maps.json",
		RadarTileURL:  "https://tilecache.rainviewer.com",
		UserAgent:     "WeatherProPWA/1.0",
		Timeout:       10 * time.Second,
	}
}

// RadarFrame is the newest past radar frame.
type RadarFrame struct {
	Time    int64  `json:"time"`
	TileURL string `json:"tileUrl"`
}

// Client talks to the weather, geocoding and radar upstreams with plain GETs.
// No retries: a failure goes straight back to the caller.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a Client. transport is the round tripper every request goes
// through (the offline worker in production); nil uses http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper) *Client {
	def := DefaultConfig()
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = def.GeocodingURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = def.ForecastURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = def.AirQualityURL
	}
	if cfg.ReverseURL == "" {
		cfg.ReverseURL = def.ReverseURL
	}
	if cfg.RadarURL == "" {
		cfg.RadarURL = def.RadarURL
	}
	if cfg.RadarTileURL == "" {
		cfg.RadarTileURL = def.RadarTileURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Geocode searches places by name. A response without results is an empty
// slice, not an error.
func (c *Client) Geocode(ctx context.Context, query string) ([]models.Place, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", geocodeCount)
	params.Set("language", geocodeLanguage)
	params.Set("format", "json")

	body, err := c.get(ctx, UpstreamGeocoding, c.cfg.GeocodingURL, params, nil)
	if err != nil {
		return nil, err
	}
	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w: %v", UpstreamGeocoding, ErrInvalidResponse, err)
	}
	places := make([]models.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, models.Place{
			Name:      r.Name,
			Admin1:    r.Admin1,
			Country:   r.Country,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return places, nil
}

// Forecast returns the raw Open-Meteo forecast document.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (models.Payload, error) {
	params := coordParams(lat, lon)
	params.Set("timezone", "auto")
	params.Set("current", strings.Join(currentFields, ","))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("daily", strings.Join(dailyFields, ","))
	params.Set("forecast_days", "7")
	params.Set("past_days", "0")
	return c.payload(ctx, UpstreamForecast, c.cfg.ForecastURL, params)
}

// AirQuality returns the raw Open-Meteo air-quality document.
func (c *Client) AirQuality(ctx context.Context, lat, lon float64) (models.Payload, error) {
	params := coordParams(lat, lon)
	params.Set("timezone", "auto")
	params.Set("hourly", strings.Join(airFields, ","))
	return c.payload(ctx, UpstreamAirQuality, c.cfg.AirQualityURL, params)
}

type reverseResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

// Reverse resolves coordinates to a place. When the upstream answers but has
// no usable name, the partially filled place is returned with ErrNoName.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (models.Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("accept-language", geocodeLanguage)

	header := http.Header{}
	header.Set("User-Agent", c.cfg.UserAgent)
	body, err := c.get(ctx, UpstreamReverse, c.cfg.ReverseURL, params, header)
	if err != nil {
		return models.Place{}, err
	}
	var resp reverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Place{}, fmt.Errorf("parse %s response: %w: %v", UpstreamReverse, ErrInvalidResponse, err)
	}

	a := resp.Address
	place := models.Place{
		Name:      firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		Admin1:    a.State,
		Country:   a.Country,
		Latitude:  lat,
		Longitude: lon,
	}
	if place.Name == "" {
		return place, ErrNoName
	}
	return place, nil
}

type radarResponse struct {
	Radar struct {
		Past []struct {
			Time int64  `json:"time"`
			Path string `json:"path"`
		} `json:"past"`
	} `json:"radar"`
}

// LatestRadarFrame returns the newest past frame from the RainViewer index.
func (c *Client) LatestRadarFrame(ctx context.Context) (RadarFrame, error) {
	body, err := c.get(ctx, UpstreamRadar, c.cfg.RadarURL, nil, nil)
	if err != nil {
		return RadarFrame{}, err
	}
	var resp radarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return RadarFrame{}, fmt.Errorf("parse %s response: %w: %v", UpstreamRadar, ErrInvalidResponse, err)
	}
	past := resp.Radar.Past
	if len(past) == 0 {
		return RadarFrame{}, ErrNoRadarFrames
	}
	latest := past[len(past)-1].Time
	return RadarFrame{Time: latest, TileURL: RadarTileURL(c.cfg.RadarTileURL, latest)}, nil
}

// RadarTileURL builds the slippy-map tile template for a frame timestamp.
func RadarTileURL(host string, ts int64) string {
	return fmt.Sprintf("%s/v2/radar/%d/256/{z}/{x}/{y}/2/1_1.png?color=2&smooth=1&snow=1",
		strings.TrimRight(host, "/"), ts)
}

func (c *Client) payload(ctx context.Context, upstream, rawURL string, params url.Values) (models.Payload, error) {
	body, err := c.get(ctx, upstream, rawURL, params, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("parse %s response: %w", upstream, ErrInvalidResponse)
	}
	return models.Payload(body), nil
}

// get performs one GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, upstream, rawURL string, params url.Values, header http.Header) ([]byte, error) {
	start := time.Now()

	req, err := buildRequest(ctx, rawURL, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		return nil, fmt.Errorf("build %s request: %w", upstream, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(upstream, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(upstream, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s request timeout: %w", upstream, err)
		}
		return nil, fmt.Errorf("%s http request failed: %w", upstream, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(upstream, status).Inc()
	observability.UpstreamDuration.WithLabelValues(upstream, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(upstream, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", upstream, err)
	}
	return body, nil
}

func buildRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(upstream string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", upstream, ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s HTTP %d", ErrUpstreamFailure, upstream, resp.StatusCode)
	}
	return nil
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	return params
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
