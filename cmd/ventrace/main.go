package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgSeed    int64
	cfgVerbose bool
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "ventrace",
	Short:   "A probabilistic-programming trace core: run a small beta-Bernoulli model",
	Long:    `ventrace exercises the trace/detach/regen core with a concrete beta-Bernoulli coin model, driving it through single-site Metropolis-Hastings inference.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&cfgSeed, "seed", 0, "RNG seed (0 picks a clock-derived seed)")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "debug-level logging")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
