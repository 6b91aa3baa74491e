package pathfinding

import (
	"context"
	"testing"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
)

func TestNoPathSemanticsDifferPerBackend(t *testing.T) {
	sealed := navgrid.New(-3, 3, []navgrid.Cell{{X: 1, Z: 0}, {X: -1, Z: 0}, {X: 0, Z: 1}, {X: 0, Z: -1}})
	grid := Grid(navgrid.NewPathfinder(sealed))
	goal := geom.Vec3{0, 0, 0}
	path, ok := grid.FindPath(geom.Vec3{3, 0, 3}, goal)
	if !ok {
		t.Fatalf("grid backend should always answer")
	}
	if !path.Fallback || len(path.Waypoints) != 1 || path.Waypoints[0] != goal {
		t.Fatalf("expected goal fallback, got %+v", path)
	}

	mesh := Mesh(navmesh.New())
	if mesh.IsReady() {
		t.Fatalf("uninitialised mesh should not be ready")
	}
	if _, ok := mesh.FindPath(geom.Vec3{}, geom.Vec3{1, 0, 1}); ok {
		t.Fatalf("expected no answer from a mesh that is not ready")
	}
	if _, ok := mesh.RandomPoint(nil); ok {
		t.Fatalf("expected no random point from a mesh that is not ready")
	}
}

func TestBackendsAnswerWhenReady(t *testing.T) {
	nm := navmesh.New()
	if err := nm.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10)); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	backends := []Backend{Grid(navgrid.NewPathfinder(navgrid.NewLobby())), Mesh(nm)}
	for _, backend := range backends {
		t.Run(backend.Kind().String(), func(t *testing.T) {
			if !backend.IsReady() {
				t.Fatalf("expected backend to be ready")
			}
			rng := geom.NewDeterministicRNG("test", backend.Kind().String())
			point, ok := backend.RandomPoint(rng)
			if !ok {
				t.Fatalf("expected a random point")
			}
			path, ok := backend.FindPath(geom.Vec3{0, 0, 0}, point)
			if !ok || len(path.Waypoints) == 0 || path.Fallback {
				t.Fatalf("expected a real path to %v, got %+v ok=%v", point, path, ok)
			}
		})
	}
}

func TestZeroBackend(t *testing.T) {
	var backend Backend
	if backend.IsReady() {
		t.Fatalf("zero backend should not be ready")
	}
	if _, ok := backend.FindPath(geom.Vec3{}, geom.Vec3{}); ok {
		t.Fatalf("zero backend should not answer")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		err  bool
	}{
		{in: "grid", want: KindGrid},
		{in: " Mesh ", want: KindMesh},
		{in: "navmesh", want: KindMesh},
		{in: "astar", err: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Fatalf("ParseKind(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestGridRandomPointWithoutRNGVaries(t *testing.T) {
	grid := Grid(navgrid.NewPathfinder(navgrid.NewLobby()))
	seen := make(map[geom.Vec3]struct{})
	for i := 0; i < 16; i++ {
		point, ok := grid.RandomPoint(nil)
		if !ok {
			t.Fatalf("expected a random point")
		}
		seen[point] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected distinct cells across draws, got %d", len(seen))
	}
}
