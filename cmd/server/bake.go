package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"lobby-crowd/server/internal/app"
	"lobby-crowd/server/internal/navmesh"
	"lobby-crowd/server/internal/telemetry"
)

// BakeCmd writes the configured floor as a zone file (.msgpack or .json).
func BakeCmd() *cobra.Command {
	var outPath string
	c := &cobra.Command{
		Use:   "bake",
		Short: "bake the navmesh zone to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return errors.New("--out is required")
			}
			logger := telemetry.WrapLogger(log.Default())
			cfg, err := loadConfig(cmd, logger)
			if err != nil {
				return err
			}
			zone, err := app.BakeZone(cfg)
			if err != nil {
				return err
			}
			if err := navmesh.SaveZoneFile(outPath, zone); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "baked zone %q: %d nodes, %d groups -> %s\n", zone.Name, zone.NodeCount(), len(zone.Groups), outPath)
			return nil
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "zone file to write")
	return c
}
