package navmesh

import (
	"fmt"
	"math"
	"slices"

	"lobby-crowd/server/internal/geom"
)

// vertexPrecision is the grid vertices are snapped to before welding.
const vertexPrecision = 1e-4

// Node is one walkable triangle. Neighbours and Portals are parallel: Portals[i]
// holds the two zone vertex indices of the edge shared with Neighbours[i].
type Node struct {
	ID         int       `json:"id" msgpack:"id"`
	Centroid   geom.Vec3 `json:"centroid" msgpack:"centroid"`
	Vertices   []int     `json:"vertices" msgpack:"vertices"`
	Neighbours []int     `json:"neighbours" msgpack:"neighbours"`
	Portals    [][2]int  `json:"portals" msgpack:"portals"`
}

// Group is a connected island of nodes; node IDs are local to the group.
type Group struct {
	Nodes []Node `json:"nodes" msgpack:"nodes"`
}

// Zone is the immutable navigation data for one walkable area.
type Zone struct {
	Name     string      `json:"name" msgpack:"name"`
	Vertices []geom.Vec3 `json:"vertices" msgpack:"vertices"`
	Groups   []Group     `json:"groups" msgpack:"groups"`
}

// NodeCount sums nodes across groups.
func (z *Zone) NodeCount() int {
	if z == nil {
		return 0
	}
	total := 0
	for _, group := range z.Groups {
		total += len(group.Nodes)
	}
	return total
}

// Validate checks the cross references a baked zone relies on. A zone that
// passes can be queried without indexing outside its slices.
func (z *Zone) Validate() error {
	if z == nil || len(z.Groups) == 0 {
		return ErrEmptyGeometry
	}
	for gi, group := range z.Groups {
		for ni, node := range group.Nodes {
			if err := z.validateNode(len(group.Nodes), ni, node); err != nil {
				return fmt.Errorf("navmesh: group %d node %d: %w", gi, ni, err)
			}
		}
	}
	return nil
}

func (z *Zone) validateNode(groupSize, index int, node Node) error {
	if node.ID != index {
		return fmt.Errorf("has id %d", node.ID)
	}
	if len(node.Vertices) != 3 {
		return fmt.Errorf("has %d vertices, want 3", len(node.Vertices))
	}
	for _, v := range node.Vertices {
		if v < 0 || v >= len(z.Vertices) {
			return fmt.Errorf("%w: vertex %d", ErrIndexOutOfRange, v)
		}
	}
	if len(node.Neighbours) != len(node.Portals) {
		return fmt.Errorf("has %d neighbours but %d portals", len(node.Neighbours), len(node.Portals))
	}
	for _, n := range node.Neighbours {
		if n < 0 || n >= groupSize {
			return fmt.Errorf("%w: neighbour %d", ErrIndexOutOfRange, n)
		}
	}
	for _, edge := range node.Portals {
		for _, v := range edge {
			if v < 0 || v >= len(z.Vertices) {
				return fmt.Errorf("%w: portal vertex %d", ErrIndexOutOfRange, v)
			}
			if !slices.Contains(node.Vertices, v) {
				return fmt.Errorf("portal vertex %d is not on the node", v)
			}
		}
		if edge[0] == edge[1] {
			return fmt.Errorf("portal %v is degenerate", edge)
		}
	}
	return nil
}

type edgeKey struct {
	a, b int
}

func makeEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

// BuildZone welds the geometry's vertices, drops degenerate triangles, links
// triangles that share an edge and splits them into connected groups.
func BuildZone(name string, g Geometry) (*Zone, error) {
	tris, err := g.triangles()
	if err != nil {
		return nil, err
	}

	vertices, remap := weldVertices(g.Positions)
	faces := make([][3]int, 0, len(tris))
	for _, tri := range tris {
		face := [3]int{remap[tri[0]], remap[tri[1]], remap[tri[2]]}
		if face[0] == face[1] || face[1] == face[2] || face[0] == face[2] {
			continue
		}
		if triangleArea(vertices[face[0]], vertices[face[1]], vertices[face[2]]) < 1e-9 {
			continue
		}
		faces = append(faces, face)
	}
	if len(faces) == 0 {
		return nil, ErrEmptyGeometry
	}

	edges := make(map[edgeKey][]int)
	for fi, face := range faces {
		for k := 0; k < 3; k++ {
			key := makeEdgeKey(face[k], face[(k+1)%3])
			edges[key] = append(edges[key], fi)
		}
	}

	type link struct {
		to     int
		portal [2]int
	}
	links := make([][]link, len(faces))
	for fi, face := range faces {
		for k := 0; k < 3; k++ {
			a, b := face[k], face[(k+1)%3]
			for _, other := range edges[makeEdgeKey(a, b)] {
				if other == fi {
					continue
				}
				links[fi] = append(links[fi], link{to: other, portal: [2]int{a, b}})
			}
		}
	}

	groupOf := make([]int, len(faces))
	localID := make([]int, len(faces))
	for i := range groupOf {
		groupOf[i] = -1
	}
	var members [][]int
	for seed := range faces {
		if groupOf[seed] >= 0 {
			continue
		}
		gid := len(members)
		queue := []int{seed}
		groupOf[seed] = gid
		var group []int
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			localID[current] = len(group)
			group = append(group, current)
			for _, l := range links[current] {
				if groupOf[l.to] < 0 {
					groupOf[l.to] = gid
					queue = append(queue, l.to)
				}
			}
		}
		members = append(members, group)
	}

	zone := &Zone{Name: name, Vertices: vertices, Groups: make([]Group, len(members))}
	for gid, group := range members {
		nodes := make([]Node, len(group))
		for _, fi := range group {
			face := faces[fi]
			node := Node{
				ID:       localID[fi],
				Centroid: centroid(vertices[face[0]], vertices[face[1]], vertices[face[2]]),
				Vertices: []int{face[0], face[1], face[2]},
			}
			for _, l := range links[fi] {
				node.Neighbours = append(node.Neighbours, localID[l.to])
				node.Portals = append(node.Portals, l.portal)
			}
			nodes[node.ID] = node
		}
		zone.Groups[gid] = Group{Nodes: nodes}
	}
	return zone, nil
}

func weldVertices(positions []geom.Vec3) ([]geom.Vec3, []int) {
	type key [3]int64
	index := make(map[key]int, len(positions))
	remap := make([]int, len(positions))
	welded := make([]geom.Vec3, 0, len(positions))
	for i, p := range positions {
		k := key{
			int64(math.Round(p[0] / vertexPrecision)),
			int64(math.Round(p[1] / vertexPrecision)),
			int64(math.Round(p[2] / vertexPrecision)),
		}
		if existing, ok := index[k]; ok {
			remap[i] = existing
			continue
		}
		index[k] = len(welded)
		remap[i] = len(welded)
		welded = append(welded, p)
	}
	return welded, remap
}

func centroid(a, b, c geom.Vec3) geom.Vec3 {
	return a.Add(b).Add(c).Mul(1.0 / 3.0)
}

func triangleArea(a, b, c geom.Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Len() / 2
}
