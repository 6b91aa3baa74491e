package navmesh

import (
	"math"

	"lobby-crowd/server/internal/geom"
)

// Defaults for surface queries.
const (
	DefaultHeightTolerance = 0.5
	DefaultGroupReach      = 50.0
)

// groupFor returns the group holding a polygon under p, or else the group with
// the nearest centroid within reach. The second result is false when nothing
// lies within reach.
func (z *Zone) groupFor(p geom.Vec3, tolerance, reach float64) (int, bool) {
	best := -1
	bestDist := reach * reach
	for gi := range z.Groups {
		for ni := range z.Groups[gi].Nodes {
			node := &z.Groups[gi].Nodes[ni]
			if z.contains(node, p, tolerance) {
				return gi, true
			}
			if d := geom.DistanceSquared(node.Centroid, p); d < bestDist {
				bestDist = d
				best = gi
			}
		}
	}
	return best, best >= 0
}

// closestNode returns the node of group whose centroid is nearest p. With
// inside set only polygons containing p qualify.
func (z *Zone) closestNode(group int, p geom.Vec3, inside bool, tolerance float64) (*Node, bool) {
	if group < 0 || group >= len(z.Groups) {
		return nil, false
	}
	var best *Node
	bestDist := math.MaxFloat64
	for ni := range z.Groups[group].Nodes {
		node := &z.Groups[group].Nodes[ni]
		if inside && !z.contains(node, p, tolerance) {
			continue
		}
		if d := geom.DistanceSquared(node.Centroid, p); d < bestDist {
			bestDist = d
			best = node
		}
	}
	return best, best != nil
}

// contains tests p against the node on the XZ plane, accepting heights within
// tolerance of the polygon's vertical span.
func (z *Zone) contains(node *Node, p geom.Vec3, tolerance float64) bool {
	if len(node.Vertices) < 3 {
		return false
	}
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	var pos, neg bool
	for i, vi := range node.Vertices {
		a := z.Vertices[vi]
		b := z.Vertices[node.Vertices[(i+1)%len(node.Vertices)]]
		minY = math.Min(minY, a[1])
		maxY = math.Max(maxY, a[1])
		c := cross2(a, b, p)
		if c > 1e-9 {
			pos = true
		} else if c < -1e-9 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return p[1] >= minY-tolerance && p[1] <= maxY+tolerance
}

// cross2 is the XZ cross product of (a-o) and (b-o). Positive means b lies
// counter-clockwise of a as seen from o.
func cross2(o, a, b geom.Vec3) float64 {
	return (a[0]-o[0])*(b[2]-o[2]) - (a[2]-o[2])*(b[0]-o[0])
}
