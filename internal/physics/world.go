// Package physics is a kinematic stand-in for the rigid-body collaborator:
// bodies integrate their linear velocity, fall under gravity and rest on a
// flat ground plane inside optional horizontal bounds.
package physics

import (
	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/geom"
)

// Config tunes the world.
type Config struct {
	Gravity      float64 `yaml:"gravity"`
	GroundHeight float64 `yaml:"groundHeight"`
	// HalfExtent clamps bodies to |x|, |z| <= HalfExtent when positive.
	HalfExtent float64 `yaml:"halfExtent"`
}

// DefaultConfig matches the lobby floor.
func DefaultConfig() Config {
	return Config{Gravity: -9.81, GroundHeight: 0, HalfExtent: 20}
}

// Body is a kinematic rigid body. It satisfies the agent body contract.
type Body struct {
	id       uint64
	position geom.Vec3
	velocity geom.Vec3
	grounded bool
}

func (b *Body) ID() uint64 { return b.id }

func (b *Body) Translation() geom.Vec3 { return b.position }

func (b *Body) Linvel() geom.Vec3 { return b.velocity }

func (b *Body) SetLinvel(v geom.Vec3) { b.velocity = v }

// SetTranslation teleports the body.
func (b *Body) SetTranslation(p geom.Vec3) {
	b.position = p
	b.grounded = false
}

// Grounded reports whether the body rested on the ground after the last step.
func (b *Body) Grounded() bool { return b.grounded }

// World owns the bodies and steps them. It is not safe for concurrent use; the
// simulation loop is its only caller.
type World struct {
	cfg    Config
	nextID uint64
	bodies []*Body
}

func NewWorld(cfg Config) *World {
	return &World{cfg: cfg}
}

// Spawn adds a body at position.
func (w *World) Spawn(position geom.Vec3) *Body {
	w.nextID++
	body := &Body{id: w.nextID, position: position}
	w.bodies = append(w.bodies, body)
	return body
}

// Remove detaches the body. Removing twice is harmless.
func (w *World) Remove(body *Body) bool {
	for i, b := range w.bodies {
		if b == body {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			return true
		}
	}
	return false
}

// Len counts live bodies.
func (w *World) Len() int { return len(w.bodies) }

// Step integrates every body by dt seconds.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, b := range w.bodies {
		w.integrate(b, dt)
	}
}

func (w *World) integrate(b *Body, dt float64) {
	if !b.grounded || b.position[1] > w.cfg.GroundHeight {
		b.velocity[1] += w.cfg.Gravity * dt
	}
	b.position = b.position.Add(b.velocity.Mul(dt))
	b.grounded = false
	if b.position[1] <= w.cfg.GroundHeight {
		b.position[1] = w.cfg.GroundHeight
		if b.velocity[1] < 0 {
			b.velocity[1] = 0
		}
		b.grounded = true
	}
	if h := w.cfg.HalfExtent; h > 0 {
		b.position[0] = geom.Clamp(b.position[0], -h, h)
		b.position[2] = geom.Clamp(b.position[2], -h, h)
	}
}

// SpawnBody is Spawn behind the agent body contract.
func (w *World) SpawnBody(position geom.Vec3) agent.Body {
	return w.Spawn(position)
}

// RemoveBody removes a body created by SpawnBody.
func (w *World) RemoveBody(body agent.Body) {
	if b, ok := body.(*Body); ok {
		w.Remove(b)
	}
}
