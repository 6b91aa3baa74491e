// Package agent drives one crowd member: a per-agent state machine that picks
// targets, follows paths with steering and reacts to a tracked threat.
package agent

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"lobby-crowd/server/internal/fsm"
	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/agents"
)

// StateID names an agent state.
type StateID string

const (
	StateIdle     StateID = "IDLE"
	StatePatrol   StateID = "PATROL"
	StateChase    StateID = "CHASE"
	StateInteract StateID = "INTERACT"
)

// Params are the inputs to New.
type Params struct {
	ID      string
	Index   int
	Color   string
	Body    Body
	Nav     pathfinding.Pathfinder
	Routes  *routes.Registry
	RouteID string
	Config  Config
	// RNG drives jitter and random targets. It must not be shared with another agent.
	RNG       *rand.Rand
	Publisher logging.Publisher
	// Release runs once when the agent is removed.
	Release func()
}

// Agent owns its path, timers and state. Nothing outside the agent mutates
// them; the navigation handle and route registry are shared read-mostly.
type Agent struct {
	id    string
	index int
	color string
	cfg   Config

	body      Body
	nav       pathfinding.Pathfinder
	routes    *routes.Registry
	cursor    routes.Cursor
	rng       *rand.Rand
	publisher logging.Publisher
	ref       logging.EntityRef

	machine *fsm.Machine[StateID, *Agent]
	reason  string

	timer     float64
	path      []geom.Vec3
	pathIndex int
	fallback  bool

	threat     Threat
	threatDist float64
	lookTarget geom.Vec3
	looking    bool
	heading    float64
	velocity   geom.Vec3
	tick       uint64

	releaseOnce sync.Once
	release     func()
	removed     bool
}

// New builds an agent in IDLE with a jittered first timer.
func New(p Params) *Agent {
	cfg := p.Config.Normalized()
	rng := p.RNG
	if rng == nil {
		rng = geom.NewDeterministicRNG(geom.DefaultSeed, "agent:"+p.ID)
	}
	a := &Agent{
		id:        p.ID,
		index:     p.Index,
		color:     p.Color,
		cfg:       cfg,
		body:      p.Body,
		nav:       p.Nav,
		routes:    p.Routes,
		cursor:    routes.Cursor{RouteID: p.RouteID},
		rng:       rng,
		publisher: logging.OrNop(p.Publisher),
		ref:       logging.AgentRef(p.ID),
		release:   p.Release,
	}
	a.timer = rng.Float64() * cfg.InitialJitter
	a.machine = fsm.New(a, fsm.Hooks[StateID, *Agent]{
		Changed: publishTransition,
		Unknown: publishUnknown,
	})
	a.machine.Add(StateIdle, idleState{})
	a.machine.Add(StatePatrol, patrolState{})
	a.machine.Add(StateChase, chaseState{})
	a.machine.Add(StateInteract, interactState{})
	a.reason = "spawned"
	a.machine.ChangeState(StateIdle)
	return a
}

func publishTransition(a *Agent, from, to StateID, hadPrevious bool) {
	payload := agents.StateChangedPayload{To: string(to), Reason: a.reason}
	if hadPrevious {
		payload.From = string(from)
	}
	agents.StateChanged(context.Background(), a.publisher, a.tick, a.ref, payload)
	a.reason = ""
}

func publishUnknown(a *Agent, id StateID) {
	agents.UnknownState(context.Background(), a.publisher, a.tick, a.ref, agents.UnknownStatePayload{State: string(id)})
}

func (a *Agent) ID() string      { return a.id }
func (a *Agent) Index() int      { return a.index }
func (a *Agent) Color() string   { return a.color }
func (a *Agent) RouteID() string { return a.cursor.RouteID }
func (a *Agent) Body() Body      { return a.body }

// State returns the active state.
func (a *Agent) State() StateID {
	id, _ := a.machine.Current()
	return id
}

// Timer is the active state's countdown in seconds.
func (a *Agent) Timer() float64 { return a.timer }

// SetTimer overrides the countdown.
func (a *Agent) SetTimer(seconds float64) { a.timer = seconds }

// Path returns the remaining waypoints.
func (a *Agent) Path() []geom.Vec3 {
	if a.pathIndex >= len(a.path) {
		return nil
	}
	return append([]geom.Vec3(nil), a.path[a.pathIndex:]...)
}

// ChangeState forces a transition. It is a no-op for the active state and
// for unknown names.
func (a *Agent) ChangeState(id StateID, reason string) bool {
	a.reason = reason
	changed := a.machine.ChangeState(id)
	a.reason = ""
	return changed
}

// Tick advances the agent by dt seconds. threat is the tracked target this
// frame; a zero Threat means nothing is tracked.
func (a *Agent) Tick(tick uint64, dt float64, threat Threat) {
	if a.removed {
		return
	}
	a.tick = tick
	a.timer -= dt
	a.perceive(threat)
	a.machine.Update(dt)
}

func (a *Agent) position() geom.Vec3 {
	if a.body == nil {
		return geom.Vec3{}
	}
	return a.body.Translation()
}

// perceive updates head tracking and starts an engagement when the threat
// comes inside the engage radius. Only horizontal distance counts.
func (a *Agent) perceive(threat Threat) {
	a.threat = threat
	a.looking = false
	if !threat.Present {
		a.threatDist = math.Inf(1)
		return
	}
	a.threatDist = geom.HorizontalDistance(a.position(), threat.Position)
	if a.threatDist < a.cfg.LookRadius {
		a.looking = true
		a.lookTarget = threat.Position.Add(geom.Vec3{0, a.cfg.LookHeight, 0})
	}

	state := a.State()
	if state != StateIdle && state != StatePatrol {
		return
	}
	if a.threatDist >= a.cfg.EngageRadius {
		return
	}
	switch a.cfg.Engage {
	case EngageChase:
		a.ChangeState(StateChase, "threat_in_range")
	case EngageInteract:
		a.ChangeState(StateInteract, "threat_in_range")
	}
}

func (a *Agent) linvel() geom.Vec3 {
	if a.body == nil {
		return a.velocity
	}
	return a.body.Linvel()
}

// drive writes a horizontal velocity plus the configured ground push.
func (a *Agent) drive(horizontal geom.Vec3, push float64) {
	a.velocity = geom.Horizontal(horizontal)
	if a.body == nil {
		return
	}
	a.body.SetLinvel(geom.Vec3{a.velocity[0], push, a.velocity[2]})
}

func (a *Agent) stop() {
	a.drive(geom.Vec3{}, a.linvel()[1])
}

// face turns the heading toward dir at the configured turn rate.
func (a *Agent) face(dir geom.Vec3, dt float64) {
	dir = geom.Horizontal(dir)
	if dir.Len() < 1e-6 {
		return
	}
	target := geom.Yaw(dir)
	delta := math.Remainder(target-a.heading, 2*math.Pi)
	step := geom.Clamp(dt*a.cfg.TurnRate, 0, 1)
	a.heading = math.Remainder(a.heading+delta*step, 2*math.Pi)
}

func (a *Agent) clearPath() {
	a.path = nil
	a.pathIndex = 0
	a.fallback = false
}

// Remove stops the agent and runs its release hook once.
func (a *Agent) Remove() {
	if a.removed {
		return
	}
	a.removed = true
	a.clearPath()
	a.velocity = geom.Vec3{}
	if a.body != nil {
		a.body.SetLinvel(geom.Vec3{})
	}
	a.releaseOnce.Do(func() {
		if a.release != nil {
			a.release()
		}
	})
}

// Removed reports whether Remove has run.
func (a *Agent) Removed() bool { return a.removed }

// View is the read-only snapshot handed to rendering and animation.
type View struct {
	ID            string      `json:"id"`
	Index         int         `json:"index"`
	Color         string      `json:"color"`
	State         string      `json:"state"`
	Position      [3]float64  `json:"position"`
	Velocity      [3]float64  `json:"velocity"`
	Heading       float64     `json:"heading"`
	IsMoving      bool        `json:"isMoving"`
	Speed         float64     `json:"speed"`
	LookTarget    *[3]float64 `json:"lookTarget,omitempty"`
	RouteID       string      `json:"routeId,omitempty"`
	PathRemaining int         `json:"pathRemaining"`
	DirectRoute   bool        `json:"directRoute,omitempty"`
}

// View snapshots the agent.
func (a *Agent) View() View {
	v := View{
		ID:       a.id,
		Index:    a.index,
		Color:    a.color,
		State:    string(a.State()),
		Position: a.position(),
		Velocity: a.velocity,
		Heading:  a.heading,
		RouteID:  a.cursor.RouteID,
	}
	if a.pathIndex < len(a.path) {
		v.PathRemaining = len(a.path) - a.pathIndex
		v.DirectRoute = a.fallback
	}
	speed := geom.Horizontal(a.velocity).Len()
	switch a.State() {
	case StatePatrol:
		v.IsMoving = true
		v.Speed = a.cfg.MaxSpeed
	case StateChase:
		v.IsMoving = speed > 0.05
		v.Speed = speed
	}
	if a.looking {
		target := [3]float64(a.lookTarget)
		v.LookTarget = &target
	}
	return v
}

// IsMoving drives the walk cycle.
func (a *Agent) IsMoving() bool { return a.View().IsMoving }

// Speed drives walk-cycle blending.
func (a *Agent) Speed() float64 { return a.View().Speed }

// LookTarget is the head-tracking point, if any.
func (a *Agent) LookTarget() (geom.Vec3, bool) { return a.lookTarget, a.looking }
