package physics

import (
	"math"
	"testing"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/geom"
)

var _ agent.Body = (*Body)(nil)

func TestBodyFallsToGround(t *testing.T) {
	w := NewWorld(DefaultConfig())
	body := w.Spawn(geom.Vec3{0, 1, 0})
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60)
	}
	if !body.Grounded() || body.Translation()[1] != 0 {
		t.Fatalf("expected body resting on the ground, got %v", body.Translation())
	}
}

func TestBodyFollowsLinvel(t *testing.T) {
	w := NewWorld(DefaultConfig())
	body := w.Spawn(geom.Vec3{})
	for i := 0; i < 60; i++ {
		body.SetLinvel(geom.Vec3{2, -1, 0})
		w.Step(1.0 / 60)
	}
	if got := body.Translation(); math.Abs(got[0]-2) > 1e-9 || got[1] != 0 {
		t.Fatalf("expected (2, 0, 0) after one second, got %v", got)
	}
}

func TestBoundsClampHorizontalPosition(t *testing.T) {
	w := NewWorld(Config{Gravity: -9.81, HalfExtent: 1})
	body := w.Spawn(geom.Vec3{})
	body.SetLinvel(geom.Vec3{10, 0, -10})
	w.Step(1)
	if got := body.Translation(); got[0] != 1 || got[2] != -1 {
		t.Fatalf("expected clamp to the bounds, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	w := NewWorld(DefaultConfig())
	a := w.Spawn(geom.Vec3{})
	w.Spawn(geom.Vec3{1, 0, 0})
	if !w.Remove(a) || w.Remove(a) {
		t.Fatalf("expected remove to succeed exactly once")
	}
	if w.Len() != 1 {
		t.Fatalf("expected one body left, got %d", w.Len())
	}
}
