package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lobby-crowd/server/internal/config"
	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging/sinks"
)

func TestNavigationBuildsFloor(t *testing.T) {
	cfg := config.Default().Normalized()
	nav := NewNavigation(cfg, nil, nil)
	if nav.Backend(pathfinding.KindNone).IsReady() {
		t.Fatalf("expected the mesh to start not ready")
	}
	if err := nav.InitMesh(context.Background(), cfg); err != nil {
		t.Fatalf("init mesh: %v", err)
	}
	path, ok := nav.Backend(pathfinding.KindMesh).FindPath(geom.Vec3{-5, 0, -5}, geom.Vec3{5, 0, 5})
	if !ok || len(path.Waypoints) == 0 {
		t.Fatalf("expected a mesh path across the floor")
	}
	grid, ok := nav.Backend(pathfinding.KindGrid).FindPath(geom.Vec3{0, 0, 0}, geom.Vec3{2, 0, 0})
	if !ok || grid.Fallback || len(grid.Waypoints) != 3 {
		t.Fatalf("expected a three-cell grid path, got %+v", grid)
	}
}

func TestNavigationLoadsBakedZone(t *testing.T) {
	cfg := config.Default().Normalized()
	zone, err := BakeZone(cfg)
	if err != nil {
		t.Fatalf("bake: %v", err)
	}
	cfg.NavMesh.ZoneFile = filepath.Join(t.TempDir(), "lobby.msgpack")
	if err := navmesh.SaveZoneFile(cfg.NavMesh.ZoneFile, zone); err != nil {
		t.Fatalf("save zone: %v", err)
	}

	sink := sinks.NewMemorySink()
	nav := NewNavigation(cfg, sink, nil)
	if err := nav.InitMesh(context.Background(), cfg); err != nil {
		t.Fatalf("init from baked zone: %v", err)
	}
	if !nav.Mesh.IsReady() || nav.Mesh.Zone().NodeCount() != zone.NodeCount() {
		t.Fatalf("expected baked zone to be installed")
	}
}

func TestNavigationMissingZoneFile(t *testing.T) {
	cfg := config.Default().Normalized()
	cfg.NavMesh.ZoneFile = filepath.Join(t.TempDir(), "missing.json")
	nav := NewNavigation(cfg, nil, nil)
	if err := nav.InitMesh(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for a missing zone file")
	}
	if nav.Mesh.IsReady() {
		t.Fatalf("expected the mesh to stay not ready")
	}
}

func TestNewRouterSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Sinks = []string{"json", "carrier-pigeon"}
	cfg.Logging.JSONPath = filepath.Join(t.TempDir(), "events.jsonl")

	var warnings int
	logger := telemetry.LoggerFunc(func(string, ...any) { warnings++ })
	router, closers, err := newRouter(cfg.Normalized(), logger)
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}
	defer func() {
		router.Close(context.Background())
		for _, c := range closers {
			c.Close()
		}
	}()
	if router.Sink("json") == nil {
		t.Fatalf("expected json sink")
	}
	if len(closers) != 1 || warnings != 1 {
		t.Fatalf("expected one file and one warning, got %d and %d", len(closers), warnings)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Logging.Sinks = nil
	cfg = cfg.Normalized()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, telemetry.LoggerFunc(nil))
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
