package sim

import (
	"context"
	"sync"
	"time"

	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
	"lobby-crowd/server/logging/simulation"
)

// LoopConfig tunes the tick loop and command queue.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
}

// LoopDeps carries shared infrastructure.
type LoopDeps struct {
	Clock     logging.Clock
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

// LoopHooks observe the loop.
type LoopHooks struct {
	AfterStep func(StepResult)
}

// StepResult summarises one tick.
type StepResult struct {
	Tick         uint64
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	Commands     int
	Snapshot     Snapshot
}

// Loop owns the scene and is the only goroutine that touches it. Other
// goroutines talk to the scene through Enqueue and Snapshot.
type Loop struct {
	scene     *Scene
	buffer    *CommandBuffer
	config    LoopConfig
	hooks     LoopHooks
	clock     logging.Clock
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	mu     sync.RWMutex
	latest Snapshot

	overrunStreak uint64
}

func NewLoop(scene *Scene, cfg LoopConfig, deps LoopDeps, hooks LoopHooks) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 256
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	l := &Loop{
		scene:     scene,
		buffer:    NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		config:    cfg,
		hooks:     hooks,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		publisher: logging.OrNop(deps.Publisher),
	}
	l.latest = scene.Snapshot()
	return l
}

// Enqueue stages a command for the next tick.
func (l *Loop) Enqueue(cmd Command) bool {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = l.clock.Now()
	}
	if !l.buffer.Push(cmd) {
		l.logger.Printf("[sim] dropping command type=%s source=%s: queue full", cmd.Type, cmd.Source)
		return false
	}
	return true
}

// Snapshot returns the state published after the most recent tick.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest
}

// Scene exposes the scene for read-only navigation queries.
func (l *Loop) Scene() *Scene { return l.scene }

func (l *Loop) budget() time.Duration {
	return time.Second / time.Duration(l.config.TickRate)
}

// Advance applies staged commands and steps the scene once.
func (l *Loop) Advance(dt float64) StepResult {
	start := l.clock.Now()
	commands := l.buffer.Drain()
	for _, cmd := range commands {
		if err := l.scene.Apply(cmd); err != nil {
			l.logger.Printf("[sim] command %s rejected: %v", cmd.Type, err)
		}
	}
	l.scene.Step(dt)
	snapshot := l.scene.Snapshot()

	l.mu.Lock()
	l.latest = snapshot
	l.mu.Unlock()

	result := StepResult{
		Tick:     snapshot.Tick,
		Delta:    dt,
		Duration: l.clock.Now().Sub(start),
		Budget:   l.budget(),
		Commands: len(commands),
		Snapshot: snapshot,
	}
	l.metrics.Store("sim_tick", result.Tick)
	l.metrics.Store("sim_agents", uint64(len(snapshot.Agents)))
	l.checkBudget(result)
	return result
}

func (l *Loop) checkBudget(result StepResult) {
	if result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	l.metrics.Add("sim_tick_budget_overruns", 1)
	simulation.TickBudgetOverrun(context.Background(), l.publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
		Agents:         len(result.Snapshot.Agents),
	})
}

// Run drives the fixed-timestep loop until ctx is cancelled. Large gaps
// between ticks are clamped to CatchupMaxTicks frames.
func (l *Loop) Run(ctx context.Context) {
	budget := l.budget()
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	last := l.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			result := l.Advance(dt)
			result.ClampedDelta = clamped
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}
