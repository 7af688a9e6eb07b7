// Package cli wires the gate's operations into a cobra command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "reqgate",
	Short: "Requirement compliance gate",
	Long:  "Normalizes ReqIF requirement baselines, evaluates them against OPA policy bundles,\nand produces SARIF reports with append-only decision and verification logs.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config YAML (default ~/.reqgate/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
