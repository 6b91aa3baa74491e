package navmesh

import (
	"errors"
	"fmt"

	"lobby-crowd/server/internal/geom"
)

var (
	// ErrEmptyGeometry is returned when the source surface has no triangles.
	ErrEmptyGeometry = errors.New("navmesh: geometry has no triangles")
	// ErrIndexOutOfRange is returned when an index references a missing vertex.
	ErrIndexOutOfRange = errors.New("navmesh: index out of range")
)

// Geometry is a walkable surface as world-space vertex and index buffers. A nil
// Indices slice means the positions are consumed three at a time.
type Geometry struct {
	Positions []geom.Vec3
	Indices   []uint32
}

// triangles validates the buffers and returns vertex index triples.
func (g Geometry) triangles() ([][3]int, error) {
	if len(g.Positions) == 0 {
		return nil, ErrEmptyGeometry
	}
	if g.Indices == nil {
		if len(g.Positions)%3 != 0 {
			return nil, fmt.Errorf("navmesh: %d positions is not a multiple of 3", len(g.Positions))
		}
		tris := make([][3]int, 0, len(g.Positions)/3)
		for i := 0; i < len(g.Positions); i += 3 {
			tris = append(tris, [3]int{i, i + 1, i + 2})
		}
		return tris, nil
	}
	if len(g.Indices) == 0 {
		return nil, ErrEmptyGeometry
	}
	if len(g.Indices)%3 != 0 {
		return nil, fmt.Errorf("navmesh: %d indices is not a multiple of 3", len(g.Indices))
	}
	tris := make([][3]int, 0, len(g.Indices)/3)
	for i := 0; i < len(g.Indices); i += 3 {
		var tri [3]int
		for k := 0; k < 3; k++ {
			idx := int(g.Indices[i+k])
			if idx >= len(g.Positions) {
				return nil, fmt.Errorf("%w: %d (have %d vertices)", ErrIndexOutOfRange, idx, len(g.Positions))
			}
			tri[k] = idx
		}
		tris = append(tris, tri)
	}
	return tris, nil
}

// PlaneGeometry builds a flat floor of width (X) by depth (Z) centred on the
// origin at height 0, split into segmentsX by segmentsZ quads of two triangles.
func PlaneGeometry(width, depth float64, segmentsX, segmentsZ int) Geometry {
	if segmentsX < 1 {
		segmentsX = 1
	}
	if segmentsZ < 1 {
		segmentsZ = 1
	}
	cols := segmentsX + 1
	rows := segmentsZ + 1
	stepX := width / float64(segmentsX)
	stepZ := depth / float64(segmentsZ)

	positions := make([]geom.Vec3, 0, cols*rows)
	for iz := 0; iz < rows; iz++ {
		z := float64(iz)*stepZ - depth/2
		for ix := 0; ix < cols; ix++ {
			x := float64(ix)*stepX - width/2
			positions = append(positions, geom.Vec3{x, 0, z})
		}
	}

	indices := make([]uint32, 0, segmentsX*segmentsZ*6)
	for iz := 0; iz < segmentsZ; iz++ {
		for ix := 0; ix < segmentsX; ix++ {
			a := uint32(ix + cols*iz)
			b := uint32(ix + cols*(iz+1))
			c := uint32(ix + 1 + cols*(iz+1))
			d := uint32(ix + 1 + cols*iz)
			indices = append(indices, a, b, d, b, c, d)
		}
	}
	return Geometry{Positions: positions, Indices: indices}
}

// Merge concatenates several surfaces into one buffer pair.
func Merge(parts ...Geometry) Geometry {
	var out Geometry
	for _, part := range parts {
		base := uint32(len(out.Positions))
		out.Positions = append(out.Positions, part.Positions...)
		if part.Indices == nil {
			for i := range part.Positions {
				out.Indices = append(out.Indices, base+uint32(i))
			}
			continue
		}
		for _, idx := range part.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
	}
	return out
}

// Translate offsets every vertex by delta.
func (g Geometry) Translate(delta geom.Vec3) Geometry {
	positions := make([]geom.Vec3, len(g.Positions))
	for i, p := range g.Positions {
		positions[i] = p.Add(delta)
	}
	return Geometry{Positions: positions, Indices: append([]uint32(nil), g.Indices...)}
}
