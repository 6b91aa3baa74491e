package navgrid

import (
	"math"
	"math/rand"
	"sort"

	"lobby-crowd/server/internal/geom"
)

const (
	DefaultMin = -7
	DefaultMax = 7
)

// Cell is an integer grid coordinate on the XZ plane.
type Cell struct {
	X int `json:"x" yaml:"x"`
	Z int `json:"z" yaml:"z"`
}

// LobbyBlockedCells is the furniture layout of the default scene: the projects
// desk, the about bookshelf and the contact desk.
var LobbyBlockedCells = []Cell{
	{X: 4, Z: -3}, {X: 3, Z: -3}, {X: 5, Z: -3},
	{X: -4, Z: -3}, {X: -3, Z: -3}, {X: -5, Z: -3},
	{X: 0, Z: -5}, {X: -1, Z: -5}, {X: 1, Z: -5},
}

// Grid is a square occupancy grid spanning [Min, Max] on both axes. The blocked
// set is fixed at construction; a Grid is safe to share between agents.
type Grid struct {
	min     int
	max     int
	blocked map[Cell]struct{}
}

// New builds a grid over [min, max] with the provided blocked cells. Swapped
// bounds are reordered.
func New(min, max int, blocked []Cell) *Grid {
	if max < min {
		min, max = max, min
	}
	set := make(map[Cell]struct{}, len(blocked))
	for _, cell := range blocked {
		set[cell] = struct{}{}
	}
	return &Grid{min: min, max: max, blocked: set}
}

// NewLobby returns the default -7..7 grid with the lobby furniture blocked.
func NewLobby() *Grid {
	return New(DefaultMin, DefaultMax, LobbyBlockedCells)
}

func (g *Grid) Min() int { return g.min }

func (g *Grid) Max() int { return g.max }

// Size reports the number of cells along one axis.
func (g *Grid) Size() int {
	return g.max - g.min + 1
}

func (g *Grid) InBounds(c Cell) bool {
	return g != nil && c.X >= g.min && c.X <= g.max && c.Z >= g.min && c.Z <= g.max
}

func (g *Grid) IsBlocked(c Cell) bool {
	if g == nil {
		return false
	}
	_, blocked := g.blocked[c]
	return blocked
}

// Walkable reports whether c is in bounds and free.
func (g *Grid) Walkable(c Cell) bool {
	return g.InBounds(c) && !g.IsBlocked(c)
}

// CellAt maps a world position to its cell by rounding X and Z.
func CellAt(p geom.Vec3) Cell {
	return Cell{X: int(math.Round(p[0])), Z: int(math.Round(p[2]))}
}

// WorldPos returns the floor-level world position of a cell.
func WorldPos(c Cell) geom.Vec3 {
	return geom.Vec3{float64(c.X), 0, float64(c.Z)}
}

// BlockedCells lists the blocked set in a stable order.
func (g *Grid) BlockedCells() []Cell {
	if g == nil || len(g.blocked) == 0 {
		return nil
	}
	cells := make([]Cell, 0, len(g.blocked))
	for cell := range g.blocked {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Z != cells[j].Z {
			return cells[i].Z < cells[j].Z
		}
		return cells[i].X < cells[j].X
	})
	return cells
}

// FreeCells lists every walkable cell, row by row.
func (g *Grid) FreeCells() []Cell {
	if g == nil {
		return nil
	}
	cells := make([]Cell, 0, g.Size()*g.Size())
	for z := g.min; z <= g.max; z++ {
		for x := g.min; x <= g.max; x++ {
			cell := Cell{X: x, Z: z}
			if !g.IsBlocked(cell) {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// RandomFreeCell picks a uniformly random walkable cell.
func (g *Grid) RandomFreeCell(rng *rand.Rand) (Cell, bool) {
	free := g.FreeCells()
	if len(free) == 0 {
		return Cell{}, false
	}
	idx := int(geom.RandomFloat(rng) * float64(len(free)))
	if idx >= len(free) {
		idx = len(free) - 1
	}
	return free[idx], true
}
