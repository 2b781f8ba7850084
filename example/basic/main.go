package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/andrewgt3/PlantAGI"
)

func main() {
	cfg, err := plantagi.LoadConfig("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := plantagi.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("dashboard runtime exited: %v", err)
	}
}
