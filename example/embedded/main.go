package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/andrewgt3/PlantAGI"
)

// Runs the feed without the HTTP surface and prints the live window, useful
// when embedding the buffer inside another service.
func main() {
	cfg, err := plantagi.LoadConfig("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := plantagi.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Shutdown(ctx)
	}()

	for i := 0; i < 5; i++ {
		time.Sleep(cfg.Buffer.TickPeriod)
		window := rt.Feed().Window()
		last := window[len(window)-1]
		fmt.Printf("%s window=%d torque=%.1f wear=%.1f\n",
			last.DisplayTime(), len(window),
			last.Value("torque", 0), last.Value("tool_wear", 0))
	}
}
