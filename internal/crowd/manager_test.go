package crowd

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/physics"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/logging/lifecycle"
	"lobby-crowd/server/logging/sinks"
)

const step = 100 * time.Millisecond

func newLobbyManager(t *testing.T, cfg Config) (*Manager, *navmesh.NavMesh, *physics.World, *sinks.MemorySink) {
	t.Helper()
	mesh := navmesh.New()
	world := physics.NewWorld(physics.DefaultConfig())
	sink := sinks.NewMemorySink()
	m := NewManager(cfg, Deps{
		Nav:       pathfinding.Mesh(mesh),
		Bodies:    world,
		Routes:    routes.NewRegistry(),
		Seed:      "crowd-test",
		Publisher: sink,
	})
	return m, mesh, world, sink
}

func TestSpawnWaitsForNavmesh(t *testing.T) {
	m, mesh, world, sink := newLobbyManager(t, DefaultConfig())
	if !m.SpawnDefault() {
		t.Fatalf("expected spawn request to be accepted")
	}
	if m.SpawnDefault() {
		t.Fatalf("expected a second request to be ignored while pending")
	}

	for tick := uint64(1); tick <= 12; tick++ {
		m.Update(tick, step)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no agents before the navmesh is ready, got %d", m.Len())
	}
	// First check is immediate, then one every 500ms: ticks 1, 6 and 11.
	if got := len(sink.EventsOfType(lifecycle.EventSpawnDeferred)); got != 3 {
		t.Fatalf("expected 3 deferred attempts, got %d", got)
	}

	if err := mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10)); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	for tick := uint64(13); tick <= 18; tick++ {
		m.Update(tick, step)
	}
	if m.Pending() {
		t.Fatalf("expected request to complete")
	}
	if m.Len() != 8 || world.Len() != 8 {
		t.Fatalf("expected 8 agents and bodies, got %d and %d", m.Len(), world.Len())
	}
	for i, a := range m.Agents() {
		if a.Color() != DefaultPalette[i] {
			t.Fatalf("agent %d: expected colour %s, got %s", i, DefaultPalette[i], a.Color())
		}
		wantRoute := ""
		if i == 0 {
			wantRoute = routes.DefaultRouteID
		}
		if a.RouteID() != wantRoute {
			t.Fatalf("agent %d: expected route %q, got %q", i, wantRoute, a.RouteID())
		}
		if y := a.Body().Translation()[1]; y != 1 {
			t.Fatalf("agent %d: expected spawn height 1, got %.2f", i, y)
		}
	}
	spawned := sink.EventsOfType(lifecycle.EventAgentSpawned)
	if len(spawned) != 8 {
		t.Fatalf("expected 8 spawn events, got %d", len(spawned))
	}
	if !spawned[0].Payload.(lifecycle.AgentSpawnedPayload).Sampled {
		t.Fatalf("expected spawn point sampled from the navmesh")
	}
}

func TestSpawnGivesUpAfterBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSpawnAttempts = 3
	m, _, _, sink := newLobbyManager(t, cfg)
	m.SpawnDefault()
	for tick := uint64(1); tick <= 30; tick++ {
		m.Update(tick, step)
	}
	if m.Pending() {
		t.Fatalf("expected request to be abandoned")
	}
	abandoned := sink.EventsOfType(lifecycle.EventSpawnAbandoned)
	if len(abandoned) != 1 {
		t.Fatalf("expected one abandoned event, got %d", len(abandoned))
	}
	if got := abandoned[0].Payload.(lifecycle.SpawnAbandonedPayload).Attempts; got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestCancelDropsRequest(t *testing.T) {
	m, mesh, _, _ := newLobbyManager(t, DefaultConfig())
	m.Spawn(4, "")
	m.Update(1, step)
	if !m.Cancel() || m.Cancel() {
		t.Fatalf("expected cancel to succeed exactly once")
	}
	mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10))
	for tick := uint64(2); tick < 20; tick++ {
		m.Update(tick, step)
	}
	if m.Len() != 0 {
		t.Fatalf("cancelled request spawned %d agents", m.Len())
	}
}

type unsampledNav struct{}

func (unsampledNav) FindPath(geom.Vec3, geom.Vec3) (pathfinding.Path, bool) {
	return pathfinding.Path{}, false
}
func (unsampledNav) IsReady() bool                            { return true }
func (unsampledNav) RandomPoint(*rand.Rand) (geom.Vec3, bool) { return geom.Vec3{}, false }

func TestSpawnFallsBackWhenSamplingUnavailable(t *testing.T) {
	world := physics.NewWorld(physics.DefaultConfig())
	sink := sinks.NewMemorySink()
	m := NewManager(DefaultConfig(), Deps{Nav: unsampledNav{}, Bodies: world, Seed: "fallback", Publisher: sink})
	m.Spawn(3, "")
	m.Update(1, step)
	if m.Len() != 3 {
		t.Fatalf("expected 3 agents, got %d", m.Len())
	}
	for _, a := range m.Agents() {
		p := a.Body().Translation()
		if p[0] < 0 || p[0] >= 5 || p[2] < 0 || p[2] >= 5 || p[1] != 1 {
			t.Fatalf("fallback spawn %v outside the default area", p)
		}
	}
	for _, e := range sink.EventsOfType(lifecycle.EventAgentSpawned) {
		if e.Payload.(lifecycle.AgentSpawnedPayload).Sampled {
			t.Fatalf("expected unsampled spawn events")
		}
	}
}

func TestRemoveReleasesBody(t *testing.T) {
	world := physics.NewWorld(physics.DefaultConfig())
	sink := sinks.NewMemorySink()
	m := NewManager(DefaultConfig(), Deps{Nav: unsampledNav{}, Bodies: world, Publisher: sink})
	m.Spawn(2, "")
	m.Update(1, step)

	if !m.Remove("agent-1", "clicked") {
		t.Fatalf("expected removal to succeed")
	}
	if m.Remove("agent-1", "clicked") {
		t.Fatalf("expected second removal to fail")
	}
	if m.Len() != 1 || world.Len() != 1 {
		t.Fatalf("expected one agent and body left, got %d and %d", m.Len(), world.Len())
	}
	removed := sink.EventsOfType(lifecycle.EventAgentRemoved)
	if len(removed) != 1 || removed[0].Actor.ID != "agent-1" {
		t.Fatalf("unexpected removal events %+v", removed)
	}

	// Indices keep counting so ids are never reused.
	if !m.Spawn(2, "") {
		t.Fatalf("expected a refill request to be accepted")
	}
	m.Update(2, step)
	if _, ok := m.Agent("agent-2"); !ok {
		t.Fatalf("expected the next agent to be agent-2")
	}
}

func TestSpawnIsIdempotent(t *testing.T) {
	m, mesh, world, sink := newLobbyManager(t, DefaultConfig())
	if err := mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10)); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !m.Spawn(8, routes.DefaultRouteID) {
		t.Fatalf("expected first spawn to be accepted")
	}
	m.Update(1, step)
	if m.Spawn(8, routes.DefaultRouteID) {
		t.Fatalf("expected a repeated spawn to be ignored")
	}
	if m.Spawn(5, "") {
		t.Fatalf("expected a smaller spawn to be ignored")
	}
	m.Update(2, step)
	if m.Len() != 8 || world.Len() != 8 {
		t.Fatalf("expected 8 agents and bodies, got %d and %d", m.Len(), world.Len())
	}
	if got := len(sink.EventsOfType(lifecycle.EventAgentSpawned)); got != 8 {
		t.Fatalf("expected 8 spawn events, got %d", got)
	}

	m.Remove("agent-3", "test")
	if !m.Spawn(8, routes.DefaultRouteID) {
		t.Fatalf("expected spawn to refill a short crowd")
	}
	m.Update(3, step)
	if m.Len() != 8 {
		t.Fatalf("expected refill back to 8, got %d", m.Len())
	}
	patrolling := 0
	for _, a := range m.Agents() {
		if a.RouteID() != "" {
			patrolling++
		}
	}
	if patrolling != 1 {
		t.Fatalf("expected one patrolling agent after refill, got %d", patrolling)
	}
}
