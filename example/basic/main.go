package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/sensorboard"
)

func main() {
	cfg := sensorboard.DefaultConfig()
	cfg.Sources.Synthetic.Enabled = true

	board, err := sensorboard.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("configure board: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Run(ctx); err != nil {
		log.Fatalf("session exited: %v", err)
	}
}
