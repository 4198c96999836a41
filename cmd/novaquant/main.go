package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "novaquant",
	Short: "novaquant - deterministic backtesting and live paper trading",
	Long: `novaquant runs deterministic backtests, parameter sweeps and walk-forward
analyses over synthetic or historical market data, and serves them over HTTP
alongside a risk-checked live session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
