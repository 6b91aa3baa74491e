package navmesh

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/navigation"
)

// BackendName tags navmesh results in events and metrics.
const BackendName = "navmesh"

// DefaultZone is the zone name the lobby floor is registered under.
const DefaultZone = "level1"

// Sampling defaults for RandomPoint.
const (
	DefaultSampleExtent   = 40.0
	DefaultSnapThreshold  = 5.0
	DefaultSampleAttempts = 10
)

// Options tunes surface queries and random sampling.
type Options struct {
	Zone            string
	HeightTolerance float64
	GroupReach      float64
	SampleCenter    geom.Vec3
	SampleExtent    float64
	SnapThreshold   float64
	SampleAttempts  int
	Seed            string
}

func (o Options) normalized() Options {
	if o.Zone == "" {
		o.Zone = DefaultZone
	}
	if o.HeightTolerance <= 0 {
		o.HeightTolerance = DefaultHeightTolerance
	}
	if o.GroupReach <= 0 {
		o.GroupReach = DefaultGroupReach
	}
	if o.SampleExtent <= 0 {
		o.SampleExtent = DefaultSampleExtent
	}
	if o.SnapThreshold <= 0 {
		o.SnapThreshold = DefaultSnapThreshold
	}
	if o.SampleAttempts <= 0 {
		o.SampleAttempts = DefaultSampleAttempts
	}
	if o.Seed == "" {
		o.Seed = geom.DefaultSeed
	}
	return o
}

// NavMesh is a read-mostly navigation surface that becomes ready exactly once.
// Queries before that report not-ready instead of failing.
type NavMesh struct {
	opts      Options
	zone      atomic.Pointer[Zone]
	publisher logging.Publisher
	metrics   telemetry.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option customises a NavMesh.
type Option func(*NavMesh)

func WithOptions(opts Options) Option {
	return func(n *NavMesh) {
		n.opts = opts
	}
}

func WithPublisher(pub logging.Publisher) Option {
	return func(n *NavMesh) {
		n.publisher = logging.OrNop(pub)
	}
}

func WithMetrics(metrics telemetry.Metrics) Option {
	return func(n *NavMesh) {
		if metrics != nil {
			n.metrics = metrics
		}
	}
}

// New returns a NavMesh that is not yet ready.
func New(opts ...Option) *NavMesh {
	n := &NavMesh{
		publisher: logging.NopPublisher(),
		metrics:   telemetry.NopMetrics(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.opts = n.opts.normalized()
	n.rng = geom.NewDeterministicRNG(n.opts.Seed, "navmesh.sample")
	return n
}

// Init builds the zone from geometry. A second call on a ready mesh is ignored
// with a warning. Geometry that yields no polygons leaves the mesh not ready.
func (n *NavMesh) Init(ctx context.Context, g Geometry) error {
	if n.IsReady() {
		n.warnDoubleInit(ctx)
		return nil
	}
	zone, err := BuildZone(n.opts.Zone, g)
	if err != nil {
		navigation.InitFailed(ctx, n.publisher, navigation.InitFailedPayload{Zone: n.opts.Zone, Reason: err.Error()})
		return err
	}
	n.install(ctx, zone, "geometry")
	return nil
}

// LoadZone installs pre-built navigation data with the same once-only rules
// as Init.
func (n *NavMesh) LoadZone(ctx context.Context, zone *Zone) error {
	if n.IsReady() {
		n.warnDoubleInit(ctx)
		return nil
	}
	if err := zone.Validate(); err != nil {
		name := n.opts.Zone
		if zone != nil && zone.Name != "" {
			name = zone.Name
		}
		navigation.InitFailed(ctx, n.publisher, navigation.InitFailedPayload{Zone: name, Reason: err.Error()})
		return err
	}
	n.install(ctx, zone, "baked")
	return nil
}

func (n *NavMesh) install(ctx context.Context, zone *Zone, source string) {
	if !n.zone.CompareAndSwap(nil, zone) {
		n.warnDoubleInit(ctx)
		return
	}
	n.metrics.Store("navmesh_nodes", uint64(zone.NodeCount()))
	navigation.MeshReady(ctx, n.publisher, navigation.MeshReadyPayload{
		Zone:   zone.Name,
		Groups: len(zone.Groups),
		Nodes:  zone.NodeCount(),
		Source: source,
	})
}

func (n *NavMesh) warnDoubleInit(ctx context.Context) {
	name := n.opts.Zone
	if z := n.zone.Load(); z != nil {
		name = z.Name
	}
	navigation.DoubleInit(ctx, n.publisher, navigation.DoubleInitPayload{Zone: name})
}

// IsReady reports whether a zone has been installed.
func (n *NavMesh) IsReady() bool {
	return n != nil && n.zone.Load() != nil
}

// Zone returns the installed zone or nil.
func (n *NavMesh) Zone() *Zone {
	if n == nil {
		return nil
	}
	return n.zone.Load()
}

// FindPath returns waypoints from start to end along the surface. The start
// position is omitted and the last waypoint is end. It returns nil when the
// mesh is not ready or either endpoint is off the start's island.
func (n *NavMesh) FindPath(start, end geom.Vec3) []geom.Vec3 {
	zone := n.Zone()
	if zone == nil {
		return nil
	}
	path := n.findPath(zone, start, end)
	if path == nil {
		n.metrics.Add("navmesh_paths_missing", 1)
		navigation.PathNotFound(context.Background(), n.publisher, navigation.PathNotFoundPayload{
			Backend: BackendName,
			Start:   start,
			Goal:    end,
		})
		return nil
	}
	n.metrics.Add("navmesh_paths_found", 1)
	return path
}

func (n *NavMesh) findPath(zone *Zone, start, end geom.Vec3) []geom.Vec3 {
	group, ok := zone.groupFor(start, n.opts.HeightTolerance, n.opts.GroupReach)
	if !ok {
		return nil
	}
	from, ok := zone.closestNode(group, start, true, n.opts.HeightTolerance)
	if !ok {
		return nil
	}
	to, ok := zone.closestNode(group, end, true, n.opts.HeightTolerance)
	if !ok {
		return nil
	}
	nodes := zone.Groups[group].Nodes
	corridor, ok := search(nodes, from.ID, to.ID)
	if !ok {
		return nil
	}
	points := stringPull(zone.channel(nodes, corridor, start, end))
	if len(points) <= 1 {
		return []geom.Vec3{end}
	}
	return points[1:]
}

// ClampPosition snaps p to the centroid of the nearest polygon in p's island.
func (n *NavMesh) ClampPosition(p geom.Vec3) (geom.Vec3, bool) {
	zone := n.Zone()
	if zone == nil {
		return geom.Vec3{}, false
	}
	group, ok := zone.groupFor(p, n.opts.HeightTolerance, n.opts.GroupReach)
	if !ok {
		return geom.Vec3{}, false
	}
	node, ok := zone.closestNode(group, p, false, n.opts.HeightTolerance)
	if !ok {
		return geom.Vec3{}, false
	}
	return node.Centroid, true
}

// RandomPoint samples candidates uniformly over the sampling square and keeps
// the first whose snapped position lies within the snap threshold. When every
// attempt is rejected it falls back to the origin. A nil rng uses the mesh's
// own seeded source. The bool is false only when the mesh is not ready.
func (n *NavMesh) RandomPoint(rng *rand.Rand) (geom.Vec3, bool) {
	if !n.IsReady() {
		return geom.Vec3{}, false
	}
	draw := n.sampler(rng)
	half := n.opts.SampleExtent / 2
	for attempt := 0; attempt < n.opts.SampleAttempts; attempt++ {
		dx, dz := draw()
		candidate := geom.Vec3{
			n.opts.SampleCenter[0] + (dx-0.5)*2*half,
			n.opts.SampleCenter[1],
			n.opts.SampleCenter[2] + (dz-0.5)*2*half,
		}
		snapped, ok := n.ClampPosition(candidate)
		if ok && geom.Distance(snapped, candidate) < n.opts.SnapThreshold {
			return snapped, true
		}
	}
	n.metrics.Add("navmesh_sample_fallbacks", 1)
	navigation.SampleFallback(context.Background(), n.publisher, navigation.SampleFallbackPayload{Attempts: n.opts.SampleAttempts})
	return geom.Origin, true
}

func (n *NavMesh) sampler(rng *rand.Rand) func() (float64, float64) {
	if rng != nil {
		return func() (float64, float64) {
			return rng.Float64(), rng.Float64()
		}
	}
	return func() (float64, float64) {
		n.rngMu.Lock()
		defer n.rngMu.Unlock()
		return n.rng.Float64(), n.rng.Float64()
	}
}
