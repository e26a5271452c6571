package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/models"
)

func TestInitMap(t *testing.T) {
	svc, api, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.InitMap(ctx)
	if err != nil {
		t.Fatalf("InitMap() error = %v", err)
	}
	if v.Map == nil {
		t.Fatal("Map = nil")
	}
	if v.Map.Latitude != models.DefaultPlace.Latitude || v.Map.Zoom != 8 || v.Map.BaseTileURL != BaseTileURL {
		t.Errorf("map = %+v", v.Map)
	}
	if v.LastRadarTime != api.frame.Time {
		t.Errorf("LastRadarTime = %d", v.LastRadarTime)
	}

	// A second call does not reload.
	if _, err := svc.InitMap(ctx); err != nil {
		t.Fatal(err)
	}
	if api.calls["radar"] != 1 {
		t.Errorf("radar calls = %d, want 1", api.calls["radar"])
	}
}

func TestCenterMap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.SetPlace(ctx, krakow)

	if v := svc.CenterMap(); v.Map != nil {
		t.Fatalf("CenterMap() before init = %+v", v.Map)
	}
	_, _ = svc.InitMap(ctx)
	v := svc.CenterMap()
	if v.Map.Latitude != krakow.Latitude || v.Map.Zoom != 9 {
		t.Errorf("map = %+v", v.Map)
	}
}

func TestSetRadar(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _ = svc.InitMap(context.Background())

	v := svc.SetRadar(false)
	if v.RadarOn || v.RadarVisible || v.RadarButton != "⛈️ Radar: OFF" {
		t.Errorf("SetRadar(false) = %+v", v)
	}
	if v.Map.Radar == nil {
		t.Error("radar layer dropped while hidden")
	}
	v = svc.SetRadar(true)
	if !v.RadarVisible || v.RadarButton != "⛈️ Radar: ON" {
		t.Errorf("SetRadar(true) = %+v", v)
	}
}

func TestRefreshRadar_Error(t *testing.T) {
	svc, api, _ := newTestService(t)
	_, _ = svc.InitMap(context.Background())
	api.radarErr = client.ErrNoRadarFrames

	_, err := svc.RefreshRadar(context.Background())
	if !errors.Is(err, ErrRadarUnavailable) {
		t.Fatalf("RefreshRadar() error = %v, want ErrRadarUnavailable", err)
	}
	if svc.MapView().Map.Radar == nil {
		t.Error("previous radar layer dropped on failure")
	}
}

func TestRadarTick(t *testing.T) {
	svc, api, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RadarTick(ctx); err != nil {
		t.Fatalf("RadarTick() without map error = %v", err)
	}
	if api.calls["radar"] != 0 {
		t.Fatal("RadarTick fetched frames before the map existed")
	}

	_, _ = svc.InitMap(ctx)
	api.mu.Lock()
	api.frame = client.RadarFrame{Time: 1760616600, TileURL: "https://tilecache.rainviewer.com/v2/radar/1760616600/256/{z}/{x}/{y}/2/1_1.png"}
	api.mu.Unlock()
	if err := svc.RadarTick(ctx); err != nil {
		t.Fatalf("RadarTick() error = %v", err)
	}
	if got := svc.MapView().Map.Radar.Time; got != 1760616600 {
		t.Errorf("radar time = %d, want 1760616600", got)
	}
}
