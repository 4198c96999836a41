package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/novaquant/internal/engine"
	"github.com/spf13/cobra"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Run the stub order engine on stdin/stdout",
	Long: `Reads one JSON order per line from stdin and writes JSON report lines to
stdout: an engine_status line at startup, then an ack and a fill for every
order. This is the process the serve command spawns by default.`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(engineCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := engine.Serve(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
