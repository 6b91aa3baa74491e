// Package pathfinding puts the grid and navmesh searches behind one capability
// so agents and the debug surfaces do not care which backend answers.
package pathfinding

import (
	"fmt"
	"math/rand"
	"strings"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
)

// Path is the answer to a path query.
type Path struct {
	Waypoints []geom.Vec3
	// Fallback marks the grid's degenerate single-waypoint answer for an
	// unreachable goal. The point is the goal itself, not a verified route.
	Fallback bool
}

// Pathfinder is implemented by every backend.
type Pathfinder interface {
	// FindPath reports ok=false only when the backend has no answer at all.
	FindPath(start, goal geom.Vec3) (Path, bool)
	IsReady() bool
	RandomPoint(rng *rand.Rand) (geom.Vec3, bool)
}

// Kind tags the backend held by a Backend value.
type Kind uint8

const (
	KindNone Kind = iota
	KindGrid
	KindMesh
)

func (k Kind) String() string {
	switch k {
	case KindGrid:
		return navgrid.BackendName
	case KindMesh:
		return navmesh.BackendName
	default:
		return "none"
	}
}

// ParseKind accepts "grid", "mesh" and "navmesh".
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "grid", "navgrid":
		return KindGrid, nil
	case "mesh", "navmesh":
		return KindMesh, nil
	default:
		return KindNone, fmt.Errorf("pathfinding: unknown backend %q", value)
	}
}

// Backend is a closed variant over the two search backends. The zero value
// is never ready and finds nothing.
type Backend struct {
	kind Kind
	grid *navgrid.Pathfinder
	mesh *navmesh.NavMesh
}

var _ Pathfinder = Backend{}

// Grid wraps a grid pathfinder.
func Grid(p *navgrid.Pathfinder) Backend {
	return Backend{kind: KindGrid, grid: p}
}

// Mesh wraps a navmesh.
func Mesh(m *navmesh.NavMesh) Backend {
	return Backend{kind: KindMesh, mesh: m}
}

func (b Backend) Kind() Kind { return b.kind }

// FindPath routes to the wrapped backend. The grid always answers, possibly
// with Fallback set; the mesh answers nothing when not ready or unreachable.
func (b Backend) FindPath(start, goal geom.Vec3) (Path, bool) {
	switch b.kind {
	case KindGrid:
		if b.grid == nil {
			return Path{}, false
		}
		waypoints, found := b.grid.FindPath(start, goal)
		return Path{Waypoints: waypoints, Fallback: !found}, true
	case KindMesh:
		waypoints := b.mesh.FindPath(start, goal)
		if waypoints == nil {
			return Path{}, false
		}
		return Path{Waypoints: waypoints}, true
	default:
		return Path{}, false
	}
}

// IsReady is always true for a grid; a mesh is ready once initialised.
func (b Backend) IsReady() bool {
	switch b.kind {
	case KindGrid:
		return b.grid != nil && b.grid.Grid() != nil
	case KindMesh:
		return b.mesh.IsReady()
	default:
		return false
	}
}

// RandomPoint samples a walkable position. The grid draws a free cell centre;
// the mesh uses its snap-and-retry sampler.
func (b Backend) RandomPoint(rng *rand.Rand) (geom.Vec3, bool) {
	switch b.kind {
	case KindGrid:
		if b.grid == nil || b.grid.Grid() == nil {
			return geom.Vec3{}, false
		}
		cell, ok := b.grid.Grid().RandomFreeCell(rng)
		if !ok {
			return geom.Vec3{}, false
		}
		return navgrid.WorldPos(cell), true
	case KindMesh:
		return b.mesh.RandomPoint(rng)
	default:
		return geom.Vec3{}, false
	}
}
