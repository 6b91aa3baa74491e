package agent

import "lobby-crowd/server/internal/geom"

// Body is the physics collaborator's rigid body. The agent reads position and
// velocity each tick and writes a desired linear velocity; it never touches
// collision.
type Body interface {
	Translation() geom.Vec3
	Linvel() geom.Vec3
	SetLinvel(v geom.Vec3)
}

// Threat is the single externally tracked target agents perceive.
type Threat struct {
	Position geom.Vec3
	Present  bool
}
