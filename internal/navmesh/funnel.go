package navmesh

import "lobby-crowd/server/internal/geom"

type portal struct {
	left, right geom.Vec3
}

// channel lists the portals crossed along a node corridor, opened and closed
// by degenerate start and end portals. Left is counter-clockwise on XZ.
func (z *Zone) channel(nodes []Node, corridor []int, start, end geom.Vec3) []portal {
	portals := make([]portal, 0, len(corridor)+1)
	portals = append(portals, portal{left: start, right: start})
	for i := 0; i+1 < len(corridor); i++ {
		from := &nodes[corridor[i]]
		edge, ok := portalBetween(from, corridor[i+1])
		if !ok {
			continue
		}
		a, b := z.Vertices[edge[0]], z.Vertices[edge[1]]
		if cross2(from.Centroid, a, b) > 0 {
			portals = append(portals, portal{left: b, right: a})
		} else {
			portals = append(portals, portal{left: a, right: b})
		}
	}
	return append(portals, portal{left: end, right: end})
}

func portalBetween(from *Node, to int) ([2]int, bool) {
	for i, n := range from.Neighbours {
		if n == to {
			return from.Portals[i], true
		}
	}
	return [2]int{}, false
}

// triarea2 is twice the signed XZ area of abc, negated from cross2 so the
// funnel tightens on non-positive values.
func triarea2(a, b, c geom.Vec3) float64 {
	return (c[0]-a[0])*(b[2]-a[2]) - (b[0]-a[0])*(c[2]-a[2])
}

func samePoint(a, b geom.Vec3) bool {
	return geom.DistanceSquared(a, b) < 1e-10
}

// stringPull runs the simple stupid funnel over the portals and returns the
// taut path including both endpoints.
func stringPull(portals []portal) []geom.Vec3 {
	if len(portals) == 0 {
		return nil
	}
	apex := portals[0].left
	left := portals[0].left
	right := portals[0].right
	apexIndex, leftIndex, rightIndex := 0, 0, 0
	points := []geom.Vec3{apex}

	for i := 1; i < len(portals); i++ {
		pl := portals[i].left
		pr := portals[i].right

		if triarea2(apex, right, pr) <= 0 {
			if samePoint(apex, right) || triarea2(apex, left, pr) > 0 {
				right = pr
				rightIndex = i
			} else {
				points = append(points, left)
				apex = left
				apexIndex = leftIndex
				left, right = apex, apex
				leftIndex, rightIndex = apexIndex, apexIndex
				i = apexIndex
				continue
			}
		}

		if triarea2(apex, left, pl) >= 0 {
			if samePoint(apex, left) || triarea2(apex, right, pl) < 0 {
				left = pl
				leftIndex = i
			} else {
				points = append(points, right)
				apex = right
				apexIndex = rightIndex
				left, right = apex, apex
				leftIndex, rightIndex = apexIndex, apexIndex
				i = apexIndex
				continue
			}
		}
	}

	end := portals[len(portals)-1].left
	if !samePoint(points[len(points)-1], end) {
		points = append(points, end)
	}
	return points
}
