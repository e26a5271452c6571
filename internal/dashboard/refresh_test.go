package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

func TestRefresh_NoPlace(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Refresh(context.Background()); !errors.Is(err, ErrNoPlace) {
		t.Fatalf("Refresh() error = %v, want ErrNoPlace", err)
	}
}

func TestRefresh_SuccessSavesSnapshot(t *testing.T) {
	// Arrange
	svc, _, store := newTestService(t)
	ctx := context.Background()
	if err := svc.EnsurePlace(ctx); err != nil {
		t.Fatal(err)
	}

	// Act
	res, err := svc.Refresh(ctx)

	// Assert
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Offline {
		t.Error("Offline = true, want false")
	}
	if res.Subtitle != "Warszawa • Polska" {
		t.Errorf("Subtitle = %q", res.Subtitle)
	}
	if res.SavedAt != testNow.UnixMilli() {
		t.Errorf("SavedAt = %d, want %d", res.SavedAt, testNow.UnixMilli())
	}
	if len(res.View.Daily) != 7 {
		t.Errorf("len(Daily) = %d, want 7", len(res.View.Daily))
	}
	if len(res.Notices) != 0 {
		t.Errorf("Notices = %v, want none", res.Notices)
	}

	raw, ok, _ := store.Get(ctx, KeySnapshot)
	if !ok {
		t.Fatal("snapshot not stored")
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("stored snapshot unreadable: %v", err)
	}
	if snap.Place.Name != "Warszawa" || snap.SavedAt != testNow.UnixMilli() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRefresh_InitializesMapAndRadar(t *testing.T) {
	svc, api, _ := newTestService(t)
	ctx := context.Background()
	if err := svc.SetPlace(ctx, krakow); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	m := res.Map.Map
	if m == nil {
		t.Fatal("map not initialized")
	}
	if m.Latitude != krakow.Latitude || m.Longitude != krakow.Longitude || m.Zoom != 9 {
		t.Errorf("map center = %v,%v z%d, want Kraków z9", m.Latitude, m.Longitude, m.Zoom)
	}
	if m.Radar == nil || m.Radar.Time != api.frame.Time || m.Radar.Opacity != 0.75 {
		t.Errorf("radar layer = %+v", m.Radar)
	}
	if !res.Map.RadarVisible || res.Map.RadarButton != "⛈️ Radar: ON" {
		t.Errorf("map view = %+v", res.Map)
	}
}

func TestRefresh_RadarFailureIsANotice(t *testing.T) {
	svc, api, _ := newTestService(t)
	api.radarErr = client.ErrNoRadarFrames
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)

	res, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(res.Notices) != 1 || res.Notices[0] != MsgRadarUnavailable {
		t.Errorf("Notices = %v, want radar notice", res.Notices)
	}
	if res.Map.Map == nil || res.Map.Map.Radar != nil {
		t.Errorf("map = %+v, want map without radar layer", res.Map.Map)
	}
}

func TestRefresh_FallsBackToSnapshot(t *testing.T) {
	// Arrange
	svc, api, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)
	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	api.fail(client.ErrUpstreamFailure)
	if err := svc.SetPlace(ctx, krakow); err != nil {
		t.Fatal(err)
	}

	// Act
	res, err := svc.Refresh(ctx)

	// Assert
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !res.Offline {
		t.Error("Offline = false, want true")
	}
	if res.Place.Name != "Warszawa" {
		t.Errorf("Place = %q, want the snapshot's Warszawa", res.Place.Name)
	}
	if len(res.Notices) != 1 || res.Notices[0] != MsgOffline {
		t.Errorf("Notices = %v", res.Notices)
	}
	if res.SavedAt != testNow.UnixMilli() {
		t.Errorf("SavedAt = %d", res.SavedAt)
	}
}

func TestRefresh_NoSnapshot(t *testing.T) {
	svc, api, _ := newTestService(t)
	api.fail(client.ErrUpstreamFailure)
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)

	_, err := svc.Refresh(ctx)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Refresh() error = %v, want ErrNoData", err)
	}
	if UserMessage(err) != MsgNoData {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestRefresh_UnreadableSnapshot(t *testing.T) {
	svc, api, store := newTestService(t)
	api.fail(client.ErrUpstreamFailure)
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)
	_ = store.Set(ctx, KeySnapshot, "{broken")

	if _, err := svc.Refresh(ctx); !errors.Is(err, ErrSnapshotUnreadable) {
		t.Fatalf("Refresh() error = %v, want ErrSnapshotUnreadable", err)
	}
}

func TestRefresh_MalformedPayloadFallsBack(t *testing.T) {
	svc, api, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)
	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	api.mu.Lock()
	api.weather = models.Payload(`{"timezone":"GMT"}`)
	api.mu.Unlock()

	res, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !res.Offline {
		t.Error("Offline = false, want snapshot fallback")
	}
}

func TestRefresh_Superseded(t *testing.T) {
	// Arrange: the first refresh blocks in Forecast until a second one completes.
	svc, api, store := newTestService(t)
	ctx := context.Background()
	_ = svc.EnsurePlace(ctx)

	weather := api.weather
	entered := make(chan struct{})
	release := make(chan struct{})
	var first bool
	api.forecastHook = func(ctx context.Context, lat, lon float64) (models.Payload, error) {
		api.mu.Lock()
		block := !first
		first = true
		api.mu.Unlock()
		if block {
			close(entered)
			<-release
		}
		return weather, nil
	}

	type outcome struct {
		res Result
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		res, err := svc.Refresh(ctx)
		slow <- outcome{res, err}
	}()
	<-entered

	// Act
	if err := svc.SetPlace(ctx, krakow); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	close(release)
	got := <-slow

	// Assert
	if !errors.Is(got.err, ErrSuperseded) {
		t.Fatalf("first Refresh() error = %v, want ErrSuperseded", got.err)
	}
	raw, _, _ := store.Get(ctx, KeySnapshot)
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Place.Name != "Kraków" {
		t.Errorf("snapshot place = %q, want Kraków", snap.Place.Name)
	}
}
