package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/crowd"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/physics"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/simulation"
	"lobby-crowd/server/logging/sinks"
)

func newLobbyScene(t *testing.T, pub logging.Publisher) (*Scene, *navmesh.NavMesh) {
	t.Helper()
	mesh := navmesh.New()
	world := physics.NewWorld(physics.DefaultConfig())
	reg := routes.NewRegistry()
	manager := crowd.NewManager(crowd.DefaultConfig(), crowd.Deps{
		Nav:         pathfinding.Mesh(mesh),
		Bodies:      world,
		Routes:      reg,
		AgentConfig: agent.DefaultConfig(),
		Seed:        "scene-test",
		Publisher:   pub,
	})
	manager.SpawnDefault()
	scene := NewScene(SceneDeps{
		Grid:    navgrid.NewPathfinder(navgrid.NewLobby()),
		Mesh:    mesh,
		Backend: pathfinding.KindMesh,
		World:   world,
		Crowd:   manager,
		Routes:  reg,
	})
	return scene, mesh
}

func TestSceneSpawnsOnceMeshIsReady(t *testing.T) {
	scene, mesh := newLobbyScene(t, nil)
	scene.Step(1.0 / 60)
	if snap := scene.Snapshot(); len(snap.Agents) != 0 || !snap.SpawnPending || snap.NavReady {
		t.Fatalf("expected pending spawn before the mesh is ready, got %+v", snap)
	}
	if err := mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10)); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	for i := 0; i < 40; i++ {
		scene.Step(1.0 / 60)
	}
	snap := scene.Snapshot()
	if len(snap.Agents) != 8 || snap.SpawnPending || !snap.NavReady {
		t.Fatalf("expected 8 agents after the mesh is ready, got %d (pending=%v)", len(snap.Agents), snap.SpawnPending)
	}
	if snap.Backend != "navmesh" {
		t.Fatalf("unexpected backend %q", snap.Backend)
	}
}

func TestSceneAppliesCommands(t *testing.T) {
	scene, mesh := newLobbyScene(t, nil)
	mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10))
	scene.Step(1.0 / 60)

	if err := scene.Apply(Command{Type: CommandSetThreat, Threat: &ThreatCommand{X: 1, Z: 2}}); err != nil {
		t.Fatalf("set threat: %v", err)
	}
	if snap := scene.Snapshot(); snap.Threat == nil || snap.Threat[2] != 2 {
		t.Fatalf("expected threat in snapshot, got %+v", snap.Threat)
	}
	if err := scene.Apply(Command{Type: CommandClearThreat}); err != nil || scene.Snapshot().Threat != nil {
		t.Fatalf("expected threat cleared, err=%v", err)
	}

	route := &RouteCommand{ID: "loop", Points: [][]float64{{0, 0, 0}, {3, 0, 3}}}
	if err := scene.Apply(Command{Type: CommandSetRoute, Route: route}); err != nil {
		t.Fatalf("set route: %v", err)
	}
	if points, ok := scene.Routes().Get("loop"); !ok || len(points) != 2 {
		t.Fatalf("expected route installed, got %v", points)
	}
	scene.Apply(Command{Type: CommandDeleteRoute, Route: &RouteCommand{ID: "loop"}})
	if _, ok := scene.Routes().Get("loop"); ok {
		t.Fatalf("expected route deleted")
	}

	if err := scene.Apply(Command{Type: CommandRemoveAgent, Remove: &RemoveCommand{AgentID: "agent-3"}}); err != nil {
		t.Fatalf("remove agent: %v", err)
	}
	if got := len(scene.Snapshot().Agents); got != 7 {
		t.Fatalf("expected 7 agents after removal, got %d", got)
	}
	if err := scene.Apply(Command{Type: CommandRemoveAgent, Remove: &RemoveCommand{AgentID: "agent-3"}}); err == nil {
		t.Fatalf("expected error removing a missing agent")
	}
	if err := scene.Apply(Command{Type: "Teleport"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestAgentsWanderOverTime(t *testing.T) {
	scene, mesh := newLobbyScene(t, nil)
	mesh.Init(context.Background(), navmesh.PlaneGeometry(40, 40, 10, 10))
	scene.Step(1.0 / 60)
	start := scene.Snapshot()

	walked := false
	for i := 0; i < 60*6; i++ {
		scene.Step(1.0 / 60)
		for _, v := range scene.Snapshot().Agents {
			if v.State == string(agent.StatePatrol) {
				walked = true
			}
		}
	}
	if !walked {
		t.Fatalf("expected at least one agent to start walking within six seconds")
	}
	moved := 0
	end := scene.Snapshot()
	for i := range start.Agents {
		a, b := start.Agents[i].Position, end.Agents[i].Position
		if (a[0]-b[0])*(a[0]-b[0])+(a[2]-b[2])*(a[2]-b[2]) > 0.25 {
			moved++
		}
	}
	if moved == 0 {
		t.Fatalf("expected agents to move across the floor")
	}
}

type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestLoopReportsBudgetOverrun(t *testing.T) {
	sink := sinks.NewMemorySink()
	scene, _ := newLobbyScene(t, nil)
	clock := &steppingClock{now: time.Unix(0, 0), step: 40 * time.Millisecond}
	loop := NewLoop(scene, LoopConfig{TickRate: 60}, LoopDeps{Clock: clock, Publisher: sink}, LoopHooks{})

	loop.Advance(1.0 / 60)
	loop.Advance(1.0 / 60)
	events := sink.EventsOfType(simulation.EventTickBudgetOverrun)
	if len(events) != 2 {
		t.Fatalf("expected 2 overrun events, got %d", len(events))
	}
	if streak := events[1].Payload.(simulation.TickBudgetOverrunPayload).Streak; streak != 2 {
		t.Fatalf("expected streak 2, got %d", streak)
	}
}

func TestLoopAppliesQueuedCommands(t *testing.T) {
	scene, _ := newLobbyScene(t, nil)
	loop := NewLoop(scene, LoopConfig{TickRate: 60, CommandCapacity: 1}, LoopDeps{}, LoopHooks{})
	if !loop.Enqueue(Command{Type: CommandSetThreat, Threat: &ThreatCommand{X: 4}}) {
		t.Fatalf("expected enqueue to succeed")
	}
	if loop.Enqueue(Command{Type: CommandClearThreat}) {
		t.Fatalf("expected enqueue to fail when the queue is full")
	}
	result := loop.Advance(1.0 / 60)
	if result.Commands != 1 || result.Tick != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if snap := loop.Snapshot(); snap.Threat == nil || snap.Threat[0] != 4 {
		t.Fatalf("expected published snapshot with threat, got %+v", snap.Threat)
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	scene, _ := newLobbyScene(t, nil)
	steps := make(chan StepResult, 16)
	loop := NewLoop(scene, LoopConfig{TickRate: 200}, LoopDeps{}, LoopHooks{AfterStep: func(r StepResult) {
		select {
		case steps <- r:
		default:
		}
	}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	select {
	case <-steps:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected at least one tick")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop after cancel")
	}
}
