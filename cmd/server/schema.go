package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"lobby-crowd/server/internal/routes"
)

// SchemaCmd writes the JSON schema for patrol route files.
func SchemaCmd() *cobra.Command {
	var outPath string
	c := &cobra.Command{
		Use:   "schema",
		Short: "write the patrol route file schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return errors.New("--out is required")
			}
			if err := writeSchema(outPath, routes.Schema()); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "path to write the JSON schema")
	return c
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
