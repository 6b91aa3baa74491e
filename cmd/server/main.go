package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "server",
		Short:        "lobby crowd simulation server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")
	root.AddCommand(ServeCmd(), PathCmd(), BakeCmd(), SchemaCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
