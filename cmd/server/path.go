package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"lobby-crowd/server/internal/app"
	servernet "lobby-crowd/server/internal/net"
	"lobby-crowd/server/internal/pathfinding"
	"lobby-crowd/server/internal/telemetry"
)

// PathCmd answers one path query offline against the configured scene.
func PathCmd() *cobra.Command {
	var backend, from, to string
	c := &cobra.Command{
		Use:   "path",
		Short: "query a path on the grid or navmesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.WrapLogger(log.Default())
			cfg, err := loadConfig(cmd, logger)
			if err != nil {
				return err
			}
			kind, err := pathfinding.ParseKind(backend)
			if err != nil {
				return err
			}
			start, err := servernet.ParseVec3(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			goal, err := servernet.ParseVec3(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			nav := app.NewNavigation(cfg, nil, nil)
			if kind == pathfinding.KindMesh {
				if err := nav.InitMesh(context.Background(), cfg); err != nil {
					return err
				}
			}
			path, found := nav.Backend(kind).FindPath(start, goal)
			out := struct {
				Backend   string       `json:"backend"`
				Found     bool         `json:"found"`
				Fallback  bool         `json:"fallback,omitempty"`
				Waypoints [][3]float64 `json:"waypoints"`
			}{Backend: kind.String(), Found: found, Fallback: path.Fallback, Waypoints: [][3]float64{}}
			for _, p := range path.Waypoints {
				out.Waypoints = append(out.Waypoints, [3]float64(p))
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	c.Flags().StringVar(&backend, "backend", "mesh", "grid or mesh")
	c.Flags().StringVar(&from, "from", "0,0,0", "start point x,y,z")
	c.Flags().StringVar(&to, "to", "5,0,5", "goal point x,y,z")
	return c
}
