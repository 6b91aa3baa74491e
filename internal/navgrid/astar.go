package navgrid

import (
	"container/heap"
	"context"
	"math"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/navigation"
)

// BackendName tags grid results in events and metrics.
const BackendName = "grid"

// Four-connected; no diagonals.
var neighborOffsets = [...]Cell{
	{X: 0, Z: 1},
	{X: 0, Z: -1},
	{X: 1, Z: 0},
	{X: -1, Z: 0},
}

type pathNode struct {
	cell   Cell
	g      int
	f      int
	index  int
	parent *pathNode
}

// pathQueue orders by f only. Equal-f nodes pop in heap order, so the shape of
// a path among equal-cost alternatives is not specified.
type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathNode)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Z-b.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// astar searches from start to goal. The start cell is expanded even when it
// lies outside the grid; only neighbours are bounds- and block-checked.
func (g *Grid) astar(start, goal Cell) ([]Cell, bool) {
	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{cell: start, g: 0, f: manhattan(start, goal)})
	gScore := map[Cell]int{start: 0}
	closed := make(map[Cell]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if current.cell == goal {
			return reconstructPath(current), true
		}

		for _, delta := range neighborOffsets {
			next := Cell{X: current.cell.X + delta.X, Z: current.cell.Z + delta.Z}
			if !g.InBounds(next) || g.IsBlocked(next) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentativeG := current.g + 1
			if prev, ok := gScore[next]; ok && prev <= tentativeG {
				continue
			}
			gScore[next] = tentativeG
			heap.Push(open, &pathNode{
				cell:   next,
				g:      tentativeG,
				f:      tentativeG + manhattan(next, goal),
				parent: current,
			})
		}
	}
	return nil, false
}

func reconstructPath(end *pathNode) []Cell {
	path := make([]Cell, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.cell)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Pathfinder answers grid path queries. It never mutates the grid, so one
// Pathfinder can serve every agent.
type Pathfinder struct {
	grid      *Grid
	publisher logging.Publisher
	metrics   telemetry.Metrics
}

// PathfinderOption customises a Pathfinder.
type PathfinderOption func(*Pathfinder)

// WithPublisher routes path_not_found events to pub.
func WithPublisher(pub logging.Publisher) PathfinderOption {
	return func(p *Pathfinder) {
		p.publisher = logging.OrNop(pub)
	}
}

// WithMetrics records query counters.
func WithMetrics(metrics telemetry.Metrics) PathfinderOption {
	return func(p *Pathfinder) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

func NewPathfinder(grid *Grid, opts ...PathfinderOption) *Pathfinder {
	p := &Pathfinder{
		grid:      grid,
		publisher: logging.NopPublisher(),
		metrics:   telemetry.NopMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Grid exposes the read-only grid.
func (p *Pathfinder) Grid() *Grid {
	if p == nil {
		return nil
	}
	return p.grid
}

// Result describes a grid query.
type Result struct {
	Waypoints []geom.Vec3
	// Found is false when the search could not connect start to goal and
	// Waypoints holds only the degenerate goal fallback.
	Found bool
	// Retargeted reports that the goal cell was blocked and the path ends on
	// the best walkable cell next to it instead.
	Retargeted bool
	// End is the cell the path ends on.
	End Cell
}

// Alternative end cells tried, in order, when the goal cell is blocked.
var retargetOffsets = [...]Cell{
	{X: 1, Z: 0}, {X: -1, Z: 0}, {X: 0, Z: 1}, {X: 0, Z: -1},
	{X: 1, Z: 1}, {X: 1, Z: -1}, {X: -1, Z: 1}, {X: -1, Z: -1},
	{X: 2, Z: 0}, {X: -2, Z: 0}, {X: 0, Z: 2}, {X: 0, Z: -2},
}

// FindPath returns the cell-centre waypoints from start's cell to goal's cell,
// start cell included. The returned slice is never empty: when the search
// cannot connect the two cells it returns the single waypoint goal and
// reports found=false. Callers must not treat that fallback as a clear route.
func (p *Pathfinder) FindPath(start, goal geom.Vec3) (waypoints []geom.Vec3, found bool) {
	result := p.Query(start, goal)
	return result.Waypoints, result.Found
}

// Query is FindPath with the retarget details exposed.
func (p *Pathfinder) Query(start, goal geom.Vec3) Result {
	if p == nil || p.grid == nil {
		return Result{Waypoints: []geom.Vec3{goal}, End: CellAt(goal)}
	}
	startCell := CellAt(start)
	goalCell := CellAt(goal)

	if p.grid.IsBlocked(goalCell) {
		if cells, end, ok := p.retarget(startCell, goalCell); ok {
			p.metrics.Add("grid_paths_retargeted", 1)
			return Result{Waypoints: toWorld(cells), Found: true, Retargeted: true, End: end}
		}
	} else if cells, ok := p.grid.astar(startCell, goalCell); ok {
		p.metrics.Add("grid_paths_found", 1)
		return Result{Waypoints: toWorld(cells), Found: true, End: goalCell}
	}

	p.metrics.Add("grid_path_fallbacks", 1)
	navigation.PathNotFound(context.Background(), p.publisher, navigation.PathNotFoundPayload{
		Backend:  BackendName,
		Start:    start,
		Goal:     goal,
		Fallback: true,
	})
	return Result{Waypoints: []geom.Vec3{goal}, End: goalCell}
}

// retarget picks the walkable cell near a blocked goal that minimises the
// distance to the goal plus the travel cost to reach it.
func (p *Pathfinder) retarget(start, goal Cell) ([]Cell, Cell, bool) {
	bestScore := math.MaxFloat64
	var bestPath []Cell
	var bestEnd Cell
	for _, offset := range retargetOffsets {
		alt := Cell{X: goal.X + offset.X, Z: goal.Z + offset.Z}
		if !p.grid.Walkable(alt) {
			continue
		}
		cells, ok := p.grid.astar(start, alt)
		if !ok {
			continue
		}
		score := math.Hypot(float64(offset.X), float64(offset.Z)) + float64(len(cells)-1)
		if score < bestScore {
			bestScore = score
			bestPath = cells
			bestEnd = alt
		}
	}
	if bestPath == nil {
		return nil, Cell{}, false
	}
	return bestPath, bestEnd, true
}

func toWorld(cells []Cell) []geom.Vec3 {
	waypoints := make([]geom.Vec3, len(cells))
	for i, cell := range cells {
		waypoints[i] = WorldPos(cell)
	}
	return waypoints
}
