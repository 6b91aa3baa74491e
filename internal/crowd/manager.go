// Package crowd spawns and owns the lobby's agents. Spawning waits for the
// navigation backend cooperatively: each Update re-checks readiness after a
// fixed delay until it proceeds, is cancelled or runs out of attempts.
package crowd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/lifecycle"
)

// DefaultPalette is the shirt colour cycle.
var DefaultPalette = []string{
	"#f44336", "#2196f3", "#4caf50", "#ff9800",
	"#9c27b0", "#795548", "#607d8b", "#e91e63",
}

// Config tunes spawning.
type Config struct {
	Count            int           `yaml:"count"`
	Palette          []string      `yaml:"palette"`
	PatrolRouteID    string        `yaml:"patrolRouteId"`
	PatrolAgentIndex int           `yaml:"patrolAgentIndex"`
	RetryDelay       time.Duration `yaml:"retryDelay"`
	MaxSpawnAttempts int           `yaml:"maxSpawnAttempts"`
	SpawnHeight      float64       `yaml:"spawnHeight"`
	FallbackSpread   float64       `yaml:"fallbackSpread"`
}

// DefaultConfig reproduces the lobby: eight agents, the first on path_01.
func DefaultConfig() Config {
	return Config{
		Count:            8,
		Palette:          append([]string(nil), DefaultPalette...),
		PatrolRouteID:    routes.DefaultRouteID,
		PatrolAgentIndex: 0,
		RetryDelay:       500 * time.Millisecond,
		MaxSpawnAttempts: 120,
		SpawnHeight:      1,
		FallbackSpread:   5,
	}
}

// Normalized fills unusable values with defaults.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.Count < 0 {
		c.Count = 0
	}
	if len(c.Palette) == 0 {
		c.Palette = def.Palette
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxSpawnAttempts <= 0 {
		c.MaxSpawnAttempts = def.MaxSpawnAttempts
	}
	if c.FallbackSpread < 0 {
		c.FallbackSpread = 0
	}
	return c
}

// Bodies creates and destroys physics bodies for agents.
type Bodies interface {
	SpawnBody(position geom.Vec3) agent.Body
	RemoveBody(body agent.Body)
}

// Deps are the collaborators a Manager needs.
type Deps struct {
	Nav         pathfinding.Pathfinder
	Bodies      Bodies
	Routes      *routes.Registry
	AgentConfig agent.Config
	Seed        string
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
}

type request struct {
	count    int
	routeID  string
	wait     time.Duration
	attempts int
}

// Manager owns the agent pool. It is driven from the simulation loop and is
// not safe for concurrent use.
type Manager struct {
	cfg  Config
	deps Deps
	rng  *rand.Rand

	pending   *request
	agents    []*agent.Agent
	nextIndex int
	tick      uint64
}

func NewManager(cfg Config, deps Deps) *Manager {
	cfg = cfg.Normalized()
	if deps.Routes == nil {
		deps.Routes = routes.NewRegistry()
	}
	if deps.Seed == "" {
		deps.Seed = geom.DefaultSeed
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	deps.Publisher = logging.OrNop(deps.Publisher)
	return &Manager{
		cfg:  cfg,
		deps: deps,
		rng:  geom.NewDeterministicRNG(deps.Seed, "crowd.spawn"),
	}
}

// Spawn asks for a crowd of count agents, binding routeID to the designated
// patrol agent. Only the agents missing from count are created, so repeating
// a call is a no-op and a call after removals refills the crowd. The first
// readiness check happens on the next Update. A call while a request is still
// waiting, or when the crowd already has count agents, returns false.
func (m *Manager) Spawn(count int, routeID string) bool {
	if m.pending != nil || count <= len(m.agents) {
		return false
	}
	m.pending = &request{count: count, routeID: routeID}
	return true
}

// SpawnDefault queues the configured crowd.
func (m *Manager) SpawnDefault() bool {
	return m.Spawn(m.cfg.Count, m.cfg.PatrolRouteID)
}

// Pending reports whether a spawn request is waiting.
func (m *Manager) Pending() bool { return m.pending != nil }

// Cancel drops the waiting request, if any.
func (m *Manager) Cancel() bool {
	if m.pending == nil {
		return false
	}
	m.pending = nil
	return true
}

// Update advances the pending request by dt.
func (m *Manager) Update(tick uint64, dt time.Duration) {
	m.tick = tick
	req := m.pending
	if req == nil {
		return
	}
	req.wait -= dt
	if req.wait > 0 {
		return
	}
	req.attempts++
	ctx := context.Background()
	if m.deps.Nav != nil && m.deps.Nav.IsReady() {
		m.pending = nil
		m.spawnBatch(ctx, req)
		return
	}
	if req.attempts >= m.cfg.MaxSpawnAttempts {
		m.pending = nil
		m.deps.Metrics.Add("crowd_spawns_abandoned", 1)
		lifecycle.SpawnAbandoned(ctx, m.deps.Publisher, tick, lifecycle.SpawnAbandonedPayload{
			Attempts:  req.attempts,
			Requested: req.count,
			Reason:    "navigation_not_ready",
		})
		return
	}
	req.wait = m.cfg.RetryDelay
	lifecycle.SpawnDeferred(ctx, m.deps.Publisher, tick, lifecycle.SpawnDeferredPayload{
		Attempt:     req.attempts,
		MaxAttempts: m.cfg.MaxSpawnAttempts,
		RetryMillis: m.cfg.RetryDelay.Milliseconds(),
	})
}

func (m *Manager) spawnBatch(ctx context.Context, req *request) {
	for missing := req.count - len(m.agents); missing > 0; missing-- {
		index := m.nextIndex
		m.nextIndex++
		m.spawnOne(ctx, index, req.routeID)
	}
	m.deps.Metrics.Store("crowd_agents", uint64(len(m.agents)))
}

func (m *Manager) spawnOne(ctx context.Context, index int, routeID string) {
	position, sampled := m.deps.Nav.RandomPoint(m.rng)
	if !sampled {
		position = geom.Vec3{m.rng.Float64() * m.cfg.FallbackSpread, 0, m.rng.Float64() * m.cfg.FallbackSpread}
	}
	position = position.Add(geom.Vec3{0, m.cfg.SpawnHeight, 0})

	id := fmt.Sprintf("agent-%d", index)
	color := m.cfg.Palette[index%len(m.cfg.Palette)]
	boundRoute := ""
	if index == m.cfg.PatrolAgentIndex {
		boundRoute = routeID
	}

	var body agent.Body
	if m.deps.Bodies != nil {
		body = m.deps.Bodies.SpawnBody(position)
	}
	bodies := m.deps.Bodies
	a := agent.New(agent.Params{
		ID:        id,
		Index:     index,
		Color:     color,
		Body:      body,
		Nav:       m.deps.Nav,
		Routes:    m.deps.Routes,
		RouteID:   boundRoute,
		Config:    m.deps.AgentConfig,
		RNG:       geom.NewDeterministicRNG(m.deps.Seed, id),
		Publisher: m.deps.Publisher,
		Release: func() {
			if bodies != nil && body != nil {
				bodies.RemoveBody(body)
			}
		},
	})
	m.agents = append(m.agents, a)
	m.deps.Metrics.Add("crowd_agents_spawned", 1)
	lifecycle.AgentSpawned(ctx, m.deps.Publisher, m.tick, logging.AgentRef(id), lifecycle.AgentSpawnedPayload{
		Position: position,
		Color:    color,
		RouteID:  boundRoute,
		Sampled:  sampled,
	})
}

// Agents returns the live agents in spawn order.
func (m *Manager) Agents() []*agent.Agent {
	return append([]*agent.Agent(nil), m.agents...)
}

// Len counts live agents.
func (m *Manager) Len() int { return len(m.agents) }

// Agent looks an agent up by id.
func (m *Manager) Agent(id string) (*agent.Agent, bool) {
	for _, a := range m.agents {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Remove takes an agent out of the scene and releases its resources.
func (m *Manager) Remove(id, reason string) bool {
	for i, a := range m.agents {
		if a.ID() != id {
			continue
		}
		a.Remove()
		m.agents = append(m.agents[:i], m.agents[i+1:]...)
		m.deps.Metrics.Store("crowd_agents", uint64(len(m.agents)))
		lifecycle.AgentRemoved(context.Background(), m.deps.Publisher, m.tick, logging.AgentRef(id), lifecycle.AgentRemovedPayload{Reason: reason})
		return true
	}
	return false
}
