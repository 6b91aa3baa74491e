// Package steering holds stateless seek and arrive behaviours. Every function
// is pure: identical inputs always produce identical forces.
package steering

import "lobby-crowd/server/internal/geom"

// Defaults used by the lobby crowd.
const (
	DefaultMaxForce      = 0.5
	DefaultSlowingRadius = 2.0
)

// ClampForce limits force to maxForce by normalising and rescaling.
func ClampForce(force geom.Vec3, maxForce float64) geom.Vec3 {
	return geom.ClampLength(force, maxForce)
}

// Seek steers toward target at full speed.
func Seek(position, target, velocity geom.Vec3, maxSpeed, maxForce float64) geom.Vec3 {
	desired := geom.Normalize(target.Sub(position)).Mul(maxSpeed)
	return ClampForce(desired.Sub(velocity), maxForce)
}

// ArriveSpeed is the desired speed at distance from the target: linear from 0
// at the target to maxSpeed at slowingRadius, and maxSpeed beyond it.
func ArriveSpeed(distance, maxSpeed, slowingRadius float64) float64 {
	if slowingRadius <= 0 || distance >= slowingRadius {
		return maxSpeed
	}
	if distance <= 0 {
		return 0
	}
	return geom.MapLinear(distance, 0, slowingRadius, 0, maxSpeed)
}

// Arrive steers toward target, easing off inside slowingRadius.
func Arrive(position, target, velocity geom.Vec3, maxSpeed, slowingRadius, maxForce float64) geom.Vec3 {
	offset := target.Sub(position)
	speed := ArriveSpeed(offset.Len(), maxSpeed, slowingRadius)
	desired := geom.Normalize(offset).Mul(speed)
	return ClampForce(desired.Sub(velocity), maxForce)
}

// Apply adds force to velocity and caps the result at maxSpeed. Blending and
// capping are the caller's job; this is the caller used by agents.
func Apply(velocity, force geom.Vec3, maxSpeed float64) geom.Vec3 {
	return geom.ClampLength(velocity.Add(force), maxSpeed)
}
