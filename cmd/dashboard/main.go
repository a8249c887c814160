package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sentinel/internal/cli"
	"sentinel/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(config.LoadDashboard())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
