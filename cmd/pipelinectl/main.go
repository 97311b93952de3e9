package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/damageanalysisflow/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipelinectl",
		Short: "pipelinectl - operate the wildfire damage analysis pipeline",
		Long: `pipelinectl drives the damage analysis pipeline from a workstation.
It uploads image pairs and input descriptors, watches for finished reports,
lists persisted routing decisions, and can run the mask comparison offline.`,
	}

	rootCmd.AddCommand(cli.UploadCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.RoutingCmd())
	rootCmd.AddCommand(cli.CompareCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
