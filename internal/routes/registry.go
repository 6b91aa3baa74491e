// Package routes keeps the designer-authored patrol routes agents walk.
package routes

import (
	"errors"
	"sort"
	"sync"

	"lobby-crowd/server/internal/geom"
)

// DefaultRouteID is the route bound to the designated patrol agent.
const DefaultRouteID = "path_01"

// ErrEmptyID rejects routes without a name.
var ErrEmptyID = errors.New("routes: route id is empty")

// Registry maps route ids to ordered waypoints. Readers always get copies so
// an edit never changes a route under an agent mid-read.
type Registry struct {
	mu      sync.RWMutex
	routes  map[string][]geom.Vec3
	version uint64
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string][]geom.Vec3)}
}

// Set adds or replaces a route.
func (r *Registry) Set(id string, points []geom.Vec3) error {
	if id == "" {
		return ErrEmptyID
	}
	r.mu.Lock()
	r.routes[id] = append([]geom.Vec3(nil), points...)
	r.version++
	r.mu.Unlock()
	return nil
}

// Delete removes a route and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[id]; !ok {
		return false
	}
	delete(r.routes, id)
	r.version++
	return true
}

// Get returns a copy of the route's points.
func (r *Registry) Get(id string) ([]geom.Vec3, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	points, ok := r.routes[id]
	if !ok {
		return nil, false
	}
	return append([]geom.Vec3(nil), points...), true
}

// Point returns the waypoint at index modulo the route length. ok is false
// for unknown or empty routes.
func (r *Registry) Point(id string, index int) (geom.Vec3, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	points := r.routes[id]
	if len(points) == 0 {
		return geom.Vec3{}, false
	}
	index %= len(points)
	if index < 0 {
		index += len(points)
	}
	return points[index], true
}

// IDs lists route ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.routes))
	for id := range r.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Version increments on every edit.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot copies every route into the designer file shape.
func (r *Registry) Snapshot() File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	file := File{Routes: make(map[string][][]float64, len(r.routes))}
	for id, points := range r.routes {
		file.Routes[id] = toTriples(points)
	}
	return file
}

// Cursor is one agent's position along a shared route. Agents sharing a route
// id each hold their own cursor.
type Cursor struct {
	RouteID string
	next    int
}

// Next returns the next waypoint and advances. ok is false when the route is
// missing or empty, in which case the cursor does not move.
func (c *Cursor) Next(r *Registry) (geom.Vec3, bool) {
	if c == nil || c.RouteID == "" || r == nil {
		return geom.Vec3{}, false
	}
	point, ok := r.Point(c.RouteID, c.next)
	if !ok {
		return geom.Vec3{}, false
	}
	c.next++
	return point, true
}

// Index is the number of waypoints handed out so far.
func (c *Cursor) Index() int {
	if c == nil {
		return 0
	}
	return c.next
}
