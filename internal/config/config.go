package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"lobby-crowd/server/internal/agent"
	"lobby-crowd/server/internal/crowd"
	"lobby-crowd/server/internal/geom"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/physics"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
)

// Config is the full server and scene configuration.
type Config struct {
	Seed    string         `yaml:"seed"`
	Backend string         `yaml:"backend"`
	Server  ServerConfig   `yaml:"server"`
	Grid    GridConfig     `yaml:"grid"`
	NavMesh NavMeshConfig  `yaml:"navmesh"`
	Physics physics.Config `yaml:"physics"`
	Crowd   crowd.Config   `yaml:"crowd"`
	Agent   agent.Config   `yaml:"agent"`
	Routes  RoutesConfig   `yaml:"routes"`
	Logging LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	TickRate        int    `yaml:"tickRate"`
	CatchupMaxTicks int    `yaml:"catchupMaxTicks"`
	CommandCapacity int    `yaml:"commandCapacity"`
}

type GridConfig struct {
	Min     int            `yaml:"min"`
	Max     int            `yaml:"max"`
	Blocked []navgrid.Cell `yaml:"blocked"`
}

// NavMeshConfig describes the walkable floor. ZoneFile, when set, replaces
// the generated plane with a baked zone.
type NavMeshConfig struct {
	Zone            string     `yaml:"zone"`
	Width           float64    `yaml:"width"`
	Depth           float64    `yaml:"depth"`
	SegmentsX       int        `yaml:"segmentsX"`
	SegmentsZ       int        `yaml:"segmentsZ"`
	HeightTolerance float64    `yaml:"heightTolerance"`
	GroupReach      float64    `yaml:"groupReach"`
	SampleCenter    [3]float64 `yaml:"sampleCenter"`
	SampleExtent    float64    `yaml:"sampleExtent"`
	SnapThreshold   float64    `yaml:"snapThreshold"`
	SampleAttempts  int        `yaml:"sampleAttempts"`
	ZoneFile        string     `yaml:"zoneFile"`
}

// RoutesConfig seeds the patrol registry. File entries override Default
// entries with the same id.
type RoutesConfig struct {
	File    string                 `yaml:"file"`
	Default map[string][][]float64 `yaml:"default"`
}

// LoggingConfig selects event sinks. Categories maps an event category to
// its own minimum severity.
type LoggingConfig struct {
	Sinks       []string          `yaml:"sinks"`
	MinSeverity string            `yaml:"minSeverity"`
	Categories  map[string]string `yaml:"categories"`
	Color       bool              `yaml:"color"`
	JSONPath    string            `yaml:"jsonPath"`
	BufferSize  int               `yaml:"bufferSize"`
}

// Default reproduces the lobby scene.
func Default() Config {
	return Config{
		Seed:    "lobby",
		Backend: navmesh.BackendName,
		Server: ServerConfig{
			Addr:            ":8080",
			TickRate:        60,
			CatchupMaxTicks: 5,
			CommandCapacity: 256,
		},
		Grid: GridConfig{
			Min:     navgrid.DefaultMin,
			Max:     navgrid.DefaultMax,
			Blocked: append([]navgrid.Cell(nil), navgrid.LobbyBlockedCells...),
		},
		NavMesh: NavMeshConfig{
			Zone:            navmesh.DefaultZone,
			Width:           40,
			Depth:           40,
			SegmentsX:       10,
			SegmentsZ:       10,
			HeightTolerance: navmesh.DefaultHeightTolerance,
			GroupReach:      navmesh.DefaultGroupReach,
			SampleExtent:    navmesh.DefaultSampleExtent,
			SnapThreshold:   navmesh.DefaultSnapThreshold,
			SampleAttempts:  navmesh.DefaultSampleAttempts,
		},
		Physics: physics.DefaultConfig(),
		Crowd:   crowd.DefaultConfig(),
		Agent:   agent.DefaultConfig(),
		Routes: RoutesConfig{
			Default: map[string][][]float64{
				routes.DefaultRouteID: {{-6, 0, -6}, {6, 0, -6}, {6, 0, 6}, {-6, 0, 6}},
			},
		},
		Logging: LoggingConfig{
			Sinks:       []string{"console"},
			MinSeverity: "info",
			BufferSize:  512,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string, logger telemetry.Logger) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv, logger)
	return cfg.Normalized(), nil
}

// Decode overlays YAML onto cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv reads CROWD_* overrides through lookup. Invalid values are logged
// and ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool), logger telemetry.Logger) {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if raw, ok := lookup("CROWD_ADDR"); ok && raw != "" {
		c.Server.Addr = raw
	}
	if raw, ok := lookup("CROWD_TICK_RATE"); ok && raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			c.Server.TickRate = value
		} else {
			logger.Printf("invalid CROWD_TICK_RATE=%q", raw)
		}
	}
	if raw, ok := lookup("CROWD_AGENT_COUNT"); ok && raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			c.Crowd.Count = value
		} else {
			logger.Printf("invalid CROWD_AGENT_COUNT=%q", raw)
		}
	}
	if raw, ok := lookup("CROWD_SEED"); ok && raw != "" {
		c.Seed = raw
	}
	if raw, ok := lookup("CROWD_LOG_SINKS"); ok {
		var sinks []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sinks = append(sinks, name)
			}
		}
		c.Logging.Sinks = sinks
	}
}

// Normalized fills unusable values with defaults.
func (c Config) Normalized() Config {
	def := Default()
	if c.Seed == "" {
		c.Seed = def.Seed
	}
	if _, err := pathfinding.ParseKind(c.Backend); err != nil {
		c.Backend = def.Backend
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.TickRate <= 0 {
		c.Server.TickRate = def.Server.TickRate
	}
	if c.Server.CatchupMaxTicks <= 0 {
		c.Server.CatchupMaxTicks = def.Server.CatchupMaxTicks
	}
	if c.Server.CommandCapacity <= 0 {
		c.Server.CommandCapacity = def.Server.CommandCapacity
	}
	if c.NavMesh.Width <= 0 {
		c.NavMesh.Width = def.NavMesh.Width
	}
	if c.NavMesh.Depth <= 0 {
		c.NavMesh.Depth = def.NavMesh.Depth
	}
	if c.NavMesh.SegmentsX <= 0 {
		c.NavMesh.SegmentsX = def.NavMesh.SegmentsX
	}
	if c.NavMesh.SegmentsZ <= 0 {
		c.NavMesh.SegmentsZ = def.NavMesh.SegmentsZ
	}
	c.Crowd = c.Crowd.Normalized()
	c.Agent = c.Agent.Normalized()
	if c.Logging.BufferSize <= 0 {
		c.Logging.BufferSize = def.Logging.BufferSize
	}
	if c.Logging.MinSeverity == "" {
		c.Logging.MinSeverity = def.Logging.MinSeverity
	}
	return c
}

// BackendKind is the agents' pathfinding backend.
func (c Config) BackendKind() pathfinding.Kind {
	kind, err := pathfinding.ParseKind(c.Backend)
	if err != nil {
		return pathfinding.KindMesh
	}
	return kind
}

// MeshOptions converts the navmesh section into navmesh.Options.
func (c Config) MeshOptions() navmesh.Options {
	return navmesh.Options{
		Zone:            c.NavMesh.Zone,
		HeightTolerance: c.NavMesh.HeightTolerance,
		GroupReach:      c.NavMesh.GroupReach,
		SampleCenter:    geom.Vec3(c.NavMesh.SampleCenter),
		SampleExtent:    c.NavMesh.SampleExtent,
		SnapThreshold:   c.NavMesh.SnapThreshold,
		SampleAttempts:  c.NavMesh.SampleAttempts,
		Seed:            c.Seed,
	}
}

// FloorGeometry is the generated walkable plane.
func (c Config) FloorGeometry() navmesh.Geometry {
	return navmesh.PlaneGeometry(c.NavMesh.Width, c.NavMesh.Depth, c.NavMesh.SegmentsX, c.NavMesh.SegmentsZ)
}

// LoggingRouter converts the logging section into the router config.
func (c Config) LoggingRouter() logging.Config {
	out := logging.DefaultConfig()
	out.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	out.BufferSize = c.Logging.BufferSize
	out.MinimumSeverity = logging.ParseSeverity(c.Logging.MinSeverity)
	if len(c.Logging.Categories) > 0 {
		out.CategorySeverity = make(map[string]logging.Severity, len(c.Logging.Categories))
		for category, raw := range c.Logging.Categories {
			out.CategorySeverity[category] = logging.ParseSeverity(raw)
		}
	}
	out.Console.UseColor = c.Logging.Color
	out.JSON.FilePath = c.Logging.JSONPath
	out.Fields = map[string]any{"seed": c.Seed}
	return out
}
