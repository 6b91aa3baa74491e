package sim

import (
	"errors"
	"fmt"
	"time"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/crowd"
	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/physics"
	"lobby-crowd/server/internal/routes"
)

// ErrUnknownCommand rejects commands the scene cannot apply.
var ErrUnknownCommand = errors.New("sim: unknown command")

// SceneDeps are the long-lived pieces a scene ties together. Grid and Mesh
// are shared read-only with every agent once built.
type SceneDeps struct {
	Grid    *navgrid.Pathfinder
	Mesh    *navmesh.NavMesh
	Backend pathfinding.Kind
	World   *physics.World
	Crowd   *crowd.Manager
	Routes  *routes.Registry
}

// Scene is the single-threaded simulation state. Only the loop goroutine may
// call Apply and Step.
type Scene struct {
	grid    *navgrid.Pathfinder
	mesh    *navmesh.NavMesh
	backend pathfinding.Kind
	world   *physics.World
	crowd   *crowd.Manager
	routes  *routes.Registry

	threat agent.Threat
	tick   uint64
}

func NewScene(deps SceneDeps) *Scene {
	if deps.Routes == nil {
		deps.Routes = routes.NewRegistry()
	}
	if deps.Backend == pathfinding.KindNone {
		deps.Backend = pathfinding.KindMesh
	}
	return &Scene{
		grid:    deps.Grid,
		mesh:    deps.Mesh,
		backend: deps.Backend,
		world:   deps.World,
		crowd:   deps.Crowd,
		routes:  deps.Routes,
	}
}

// Pathfinder returns the backend for kind, or the agents' backend for
// KindNone.
func (s *Scene) Pathfinder(kind pathfinding.Kind) pathfinding.Backend {
	if kind == pathfinding.KindNone {
		kind = s.backend
	}
	switch kind {
	case pathfinding.KindGrid:
		return pathfinding.Grid(s.grid)
	case pathfinding.KindMesh:
		return pathfinding.Mesh(s.mesh)
	default:
		return pathfinding.Backend{}
	}
}

func (s *Scene) Routes() *routes.Registry { return s.routes }

func (s *Scene) Crowd() *crowd.Manager { return s.crowd }

func (s *Scene) Tick() uint64 { return s.tick }

// Apply executes one command.
func (s *Scene) Apply(cmd Command) error {
	switch cmd.Type {
	case CommandSetThreat:
		if cmd.Threat == nil {
			return fmt.Errorf("sim: %s without threat payload", cmd.Type)
		}
		s.threat = agent.Threat{Position: geom.Vec3{cmd.Threat.X, cmd.Threat.Y, cmd.Threat.Z}, Present: true}
	case CommandClearThreat:
		s.threat = agent.Threat{}
	case CommandSetRoute:
		if cmd.Route == nil {
			return fmt.Errorf("sim: %s without route payload", cmd.Type)
		}
		return s.routes.Set(cmd.Route.ID, routes.FromTriples(cmd.Route.Points))
	case CommandDeleteRoute:
		if cmd.Route == nil {
			return fmt.Errorf("sim: %s without route payload", cmd.Type)
		}
		s.routes.Delete(cmd.Route.ID)
	case CommandRemoveAgent:
		if cmd.Remove == nil || s.crowd == nil {
			return fmt.Errorf("sim: %s without agent", cmd.Type)
		}
		reason := cmd.Remove.Reason
		if reason == "" {
			reason = "removed"
		}
		if !s.crowd.Remove(cmd.Remove.AgentID, reason) {
			return fmt.Errorf("sim: no agent %q", cmd.Remove.AgentID)
		}
	case CommandSpawn:
		if cmd.Spawn == nil || s.crowd == nil {
			return fmt.Errorf("sim: %s without spawn payload", cmd.Type)
		}
		s.crowd.Spawn(cmd.Spawn.Count, cmd.Spawn.RouteID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

// Step advances the scene by dt seconds: pending spawns, then every agent in
// spawn order, then physics.
func (s *Scene) Step(dt float64) {
	s.tick++
	if s.crowd != nil {
		s.crowd.Update(s.tick, time.Duration(dt*float64(time.Second)))
		for _, a := range s.crowd.Agents() {
			a.Tick(s.tick, dt, s.threat)
		}
	}
	if s.world != nil {
		s.world.Step(dt)
	}
}

// Snapshot is the observer view of one tick.
type Snapshot struct {
	Tick         uint64       `json:"tick"`
	NavReady     bool         `json:"navReady"`
	Backend      string       `json:"backend"`
	SpawnPending bool         `json:"spawnPending"`
	Threat       *[3]float64  `json:"threat,omitempty"`
	Agents       []agent.View `json:"agents"`
}

func (s *Scene) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:     s.tick,
		NavReady: s.Pathfinder(pathfinding.KindNone).IsReady(),
		Backend:  s.backend.String(),
		Agents:   []agent.View{},
	}
	if s.threat.Present {
		pos := [3]float64(s.threat.Position)
		snap.Threat = &pos
	}
	if s.crowd != nil {
		snap.SpawnPending = s.crowd.Pending()
		for _, a := range s.crowd.Agents() {
			snap.Agents = append(snap.Agents, a.View())
		}
	}
	return snap
}
