package app

import (
	"context"
	"fmt"

	"lobby-crowd/server/internal/config"
	"lobby-crowd/server/internal/navgrid"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
)

// Navigation holds both search backends. The mesh starts not ready until
// InitMesh runs.
type Navigation struct {
	Grid *navgrid.Pathfinder
	Mesh *navmesh.NavMesh
	Kind pathfinding.Kind
}

// NewNavigation builds the grid and an empty mesh from cfg.
func NewNavigation(cfg config.Config, pub logging.Publisher, metrics telemetry.Metrics) Navigation {
	grid := navgrid.New(cfg.Grid.Min, cfg.Grid.Max, cfg.Grid.Blocked)
	return Navigation{
		Grid: navgrid.NewPathfinder(grid, navgrid.WithPublisher(pub), navgrid.WithMetrics(metrics)),
		Mesh: navmesh.New(
			navmesh.WithOptions(cfg.MeshOptions()),
			navmesh.WithPublisher(pub),
			navmesh.WithMetrics(metrics),
		),
		Kind: cfg.BackendKind(),
	}
}

// Backend returns the agents' pathfinder.
func (n Navigation) Backend(kind pathfinding.Kind) pathfinding.Backend {
	if kind == pathfinding.KindNone {
		kind = n.Kind
	}
	if kind == pathfinding.KindGrid {
		return pathfinding.Grid(n.Grid)
	}
	return pathfinding.Mesh(n.Mesh)
}

// InitMesh loads the baked zone when configured, otherwise builds the floor
// plane.
func (n Navigation) InitMesh(ctx context.Context, cfg config.Config) error {
	if cfg.NavMesh.ZoneFile != "" {
		zone, err := navmesh.LoadZoneFile(cfg.NavMesh.ZoneFile)
		if err != nil {
			return fmt.Errorf("load zone: %w", err)
		}
		return n.Mesh.LoadZone(ctx, zone)
	}
	return n.Mesh.Init(ctx, cfg.FloorGeometry())
}

// BakeZone builds the configured floor into a zone without a live mesh.
func BakeZone(cfg config.Config) (*navmesh.Zone, error) {
	return navmesh.BuildZone(cfg.MeshOptions().Zone, cfg.FloorGeometry())
}
