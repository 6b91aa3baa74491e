package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is the world-space vector used across navigation, steering and agents.
// Y is up; the walkable plane is XZ.
type Vec3 = mgl64.Vec3

// Origin is the safe fallback point handed out when sampling fails.
var Origin = Vec3{0, 0, 0}

// Up is the world up axis.
var Up = Vec3{0, 1, 0}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Normalize returns v scaled to unit length, or the zero vector when v has no
// length. mgl64's Normalize divides by zero on a zero vector.
func Normalize(v Vec3) Vec3 {
	length := v.Len()
	if length == 0 || math.IsNaN(length) {
		return Vec3{}
	}
	return v.Mul(1 / length)
}

// ClampLength scales v down to maxLength when it is longer. The clamp is a hard
// normalize-then-scale; shorter vectors are returned untouched.
func ClampLength(v Vec3, maxLength float64) Vec3 {
	if maxLength <= 0 {
		return Vec3{}
	}
	if v.Dot(v) > maxLength*maxLength {
		return Normalize(v).Mul(maxLength)
	}
	return v
}

// Horizontal drops the vertical component.
func Horizontal(v Vec3) Vec3 {
	return Vec3{v[0], 0, v[2]}
}

// HorizontalDistance measures distance on the XZ plane, ignoring height.
func HorizontalDistance(a, b Vec3) float64 {
	return math.Hypot(b[0]-a[0], b[2]-a[2])
}

// Distance is the full 3D distance between two points.
func Distance(a, b Vec3) float64 {
	return b.Sub(a).Len()
}

// DistanceSquared avoids the square root for nearest-point scans.
func DistanceSquared(a, b Vec3) float64 {
	d := b.Sub(a)
	return d.Dot(d)
}

// MapLinear remaps x from [a1, a2] to [b1, b2].
func MapLinear(x, a1, a2, b1, b2 float64) float64 {
	if a2 == a1 {
		return b1
	}
	return b1 + (x-a1)*(b2-b1)/(a2-a1)
}

// Yaw returns the heading angle of a direction on the XZ plane, measured from +Z.
func Yaw(dir Vec3) float64 {
	return math.Atan2(dir[0], dir[2])
}
