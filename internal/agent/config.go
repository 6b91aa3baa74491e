package agent

import "lobby-crowd/server/internal/steering"

// EngageMode selects how an agent reacts to a threat inside its engage radius.
type EngageMode string

const (
	EngageNone     EngageMode = "none"
	EngageChase    EngageMode = "chase"
	EngageInteract EngageMode = "interact"
)

// DefaultGreeting is spoken on entering Interact.
const DefaultGreeting = "Hello there!"

// Config tunes locomotion, timers and perception. Times are seconds and
// distances world units.
type Config struct {
	MaxSpeed      float64 `yaml:"maxSpeed" json:"maxSpeed"`
	MaxForce      float64 `yaml:"maxForce" json:"maxForce"`
	SlowingRadius float64 `yaml:"slowingRadius" json:"slowingRadius"`
	// ReachThreshold is the horizontal distance at which a waypoint counts as reached.
	ReachThreshold float64 `yaml:"reachThreshold" json:"reachThreshold"`
	// GroundPush is the vertical velocity written while walking to keep the body planted.
	GroundPush float64 `yaml:"groundPush" json:"groundPush"`

	WalkTimeout   float64 `yaml:"walkTimeout" json:"walkTimeout"`
	TimeoutWait   float64 `yaml:"timeoutWait" json:"timeoutWait"`
	IdleRetryMin  float64 `yaml:"idleRetryMin" json:"idleRetryMin"`
	IdleRetryMax  float64 `yaml:"idleRetryMax" json:"idleRetryMax"`
	IdleWaitMin   float64 `yaml:"idleWaitMin" json:"idleWaitMin"`
	IdleWaitMax   float64 `yaml:"idleWaitMax" json:"idleWaitMax"`
	InitialJitter float64 `yaml:"initialJitter" json:"initialJitter"`

	Engage          EngageMode `yaml:"engage" json:"engage"`
	EngageRadius    float64    `yaml:"engageRadius" json:"engageRadius"`
	DisengageRadius float64    `yaml:"disengageRadius" json:"disengageRadius"`
	Standoff        float64    `yaml:"standoff" json:"standoff"`
	LookRadius      float64    `yaml:"lookRadius" json:"lookRadius"`
	LookHeight      float64    `yaml:"lookHeight" json:"lookHeight"`
	TurnRate        float64    `yaml:"turnRate" json:"turnRate"`
	Greeting        string     `yaml:"greeting" json:"greeting"`
}

// DefaultConfig reproduces the lobby crowd's tuning.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:        2,
		MaxForce:        steering.DefaultMaxForce,
		SlowingRadius:   steering.DefaultSlowingRadius,
		ReachThreshold:  0.5,
		GroundPush:      -1,
		WalkTimeout:     10,
		TimeoutWait:     2,
		IdleRetryMin:    1,
		IdleRetryMax:    3,
		IdleWaitMin:     2,
		IdleWaitMax:     5,
		InitialJitter:   2,
		Engage:          EngageInteract,
		EngageRadius:    3,
		DisengageRadius: 5,
		Standoff:        1.5,
		LookRadius:      8,
		LookHeight:      1.5,
		TurnRate:        5,
		Greeting:        DefaultGreeting,
	}
}

// Normalized replaces unusable values with defaults and keeps the disengage
// radius strictly outside the engage radius.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	positive := func(v *float64, fallback float64) {
		if *v <= 0 {
			*v = fallback
		}
	}
	positive(&c.MaxSpeed, def.MaxSpeed)
	positive(&c.MaxForce, def.MaxForce)
	positive(&c.SlowingRadius, def.SlowingRadius)
	positive(&c.ReachThreshold, def.ReachThreshold)
	positive(&c.WalkTimeout, def.WalkTimeout)
	positive(&c.TimeoutWait, def.TimeoutWait)
	positive(&c.IdleRetryMin, def.IdleRetryMin)
	positive(&c.IdleWaitMin, def.IdleWaitMin)
	positive(&c.EngageRadius, def.EngageRadius)
	positive(&c.LookRadius, def.LookRadius)
	positive(&c.TurnRate, def.TurnRate)
	if c.IdleRetryMax < c.IdleRetryMin {
		c.IdleRetryMax = c.IdleRetryMin
	}
	if c.IdleWaitMax < c.IdleWaitMin {
		c.IdleWaitMax = c.IdleWaitMin
	}
	if c.InitialJitter < 0 {
		c.InitialJitter = 0
	}
	if c.Standoff < 0 {
		c.Standoff = 0
	}
	if c.DisengageRadius <= c.EngageRadius {
		c.DisengageRadius = c.EngageRadius + 2
	}
	switch c.Engage {
	case EngageNone, EngageChase, EngageInteract:
	default:
		c.Engage = def.Engage
	}
	if c.Greeting == "" {
		c.Greeting = def.Greeting
	}
	return c
}
