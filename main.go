// Command portalshift hosts the portal simulation: a fixed-step world loop, a
// websocket hub for viewers and commands, gRPC health and spectator streams,
// and an optional replay recorder.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"portalshift/engine/internal/config"
	"portalshift/engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHost(cfg, logger)
	if err != nil {
		logger.Error("host setup failed", logging.Error(err))
		os.Exit(1)
	}
	if err := h.Run(ctx); err != nil {
		logger.Error("host stopped with error", logging.Error(err))
		os.Exit(1)
	}
}
