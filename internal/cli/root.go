// Package cli implements the aegisd command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aegisd",
	Short: "Transaction guardrail for autonomous AI agents",
	Long: "Evaluates blockchain transactions proposed by AI agents before they\n" +
		"execute: risk scoring, intent consistency, spend limits, and manual\n" +
		"approval gates. Runs as an HTTP daemon, an MCP stdio server, or one-shot.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config YAML (default ~/.aegisd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the daemon configuration from --config or the default
// location.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds a stderr logger; --verbose lowers the level to debug.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
