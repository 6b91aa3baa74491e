package agent

import (
	"context"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/steering"
	"lobby-crowd/server/logging/agents"
)

type idleState struct{}

func (idleState) Enter(a *Agent) {
	a.clearPath()
	a.stop()
}

func (idleState) Update(a *Agent, dt float64) {
	a.stop()
	if a.timer > 0 {
		return
	}
	a.selectTarget()
}

func (idleState) Exit(*Agent) {}

// selectTarget prefers the next patrol waypoint and falls back to a random
// walkable point. Without a path the agent retries after a short jitter.
func (a *Agent) selectTarget() {
	target, ok := a.cursor.Next(a.routes)
	if !ok && a.nav != nil {
		target, ok = a.nav.RandomPoint(a.rng)
	}
	if !ok || a.nav == nil {
		a.timer = geom.RandomRange(a.rng, a.cfg.IdleRetryMin, a.cfg.IdleRetryMax)
		return
	}
	path, found := a.nav.FindPath(a.position(), target)
	if !found || len(path.Waypoints) == 0 {
		a.timer = geom.RandomRange(a.rng, a.cfg.IdleRetryMin, a.cfg.IdleRetryMax)
		return
	}
	a.path = path.Waypoints
	a.pathIndex = 0
	a.fallback = path.Fallback
	a.timer = a.cfg.WalkTimeout
	a.ChangeState(StatePatrol, "target_selected")
}

func (a *Agent) toIdle(wait float64, reason string) {
	a.timer = wait
	a.ChangeState(StateIdle, reason)
}

func (a *Agent) idleWait() float64 {
	return geom.RandomRange(a.rng, a.cfg.IdleWaitMin, a.cfg.IdleWaitMax)
}

type patrolState struct{}

func (patrolState) Enter(*Agent) {}

func (patrolState) Update(a *Agent, dt float64) {
	if a.pathIndex >= len(a.path) {
		a.toIdle(a.idleWait(), "path_complete")
		return
	}
	pos := a.position()
	if geom.HorizontalDistance(pos, a.path[a.pathIndex]) < a.cfg.ReachThreshold {
		a.pathIndex++
		if a.pathIndex >= len(a.path) {
			a.toIdle(a.idleWait(), "path_complete")
			return
		}
	}
	target := a.path[a.pathIndex]

	here := geom.Horizontal(pos)
	goal := geom.Horizontal(target)
	velocity := geom.Horizontal(a.linvel())
	var force geom.Vec3
	if a.pathIndex == len(a.path)-1 {
		force = steering.Arrive(here, goal, velocity, a.cfg.MaxSpeed, a.cfg.SlowingRadius, a.cfg.MaxForce)
	} else {
		force = steering.Seek(here, goal, velocity, a.cfg.MaxSpeed, a.cfg.MaxForce)
	}
	a.drive(steering.Apply(velocity, force, a.cfg.MaxSpeed), a.cfg.GroundPush)
	a.face(goal.Sub(here), dt)

	if a.timer <= 0 {
		a.toIdle(a.cfg.TimeoutWait, "walk_timeout")
	}
}

func (patrolState) Exit(*Agent) {}

// disengaged reports whether the threat left the disengage radius. The gap
// between the engage and disengage radii stops flicker at the boundary.
func (a *Agent) disengaged() bool {
	return !a.threat.Present || a.threatDist > a.cfg.DisengageRadius
}

type chaseState struct{}

func (chaseState) Enter(a *Agent) {
	a.clearPath()
}

func (chaseState) Update(a *Agent, dt float64) {
	if a.disengaged() {
		a.toIdle(a.idleWait(), "disengaged")
		return
	}
	here := geom.Horizontal(a.position())
	toThreat := geom.Horizontal(a.threat.Position).Sub(here)
	a.face(toThreat, dt)
	if toThreat.Len() <= a.cfg.Standoff {
		a.drive(geom.Vec3{}, a.cfg.GroundPush)
		return
	}
	goal := here.Add(toThreat).Sub(geom.Normalize(toThreat).Mul(a.cfg.Standoff))
	velocity := geom.Horizontal(a.linvel())
	force := steering.Arrive(here, goal, velocity, a.cfg.MaxSpeed, a.cfg.SlowingRadius, a.cfg.MaxForce)
	a.drive(steering.Apply(velocity, force, a.cfg.MaxSpeed), a.cfg.GroundPush)
}

func (chaseState) Exit(*Agent) {}

type interactState struct{}

func (interactState) Enter(a *Agent) {
	a.clearPath()
	a.stop()
	agents.Bark(context.Background(), a.publisher, a.tick, a.ref, agents.BarkPayload{Text: a.cfg.Greeting})
}

func (interactState) Update(a *Agent, dt float64) {
	if a.disengaged() {
		a.toIdle(a.idleWait(), "disengaged")
		return
	}
	a.stop()
	a.face(a.threat.Position.Sub(a.position()), dt)
}

func (interactState) Exit(*Agent) {}
