// Package main runs the platform HTTP server: the slot tree, sponsor
// resolution, points, payments, sanctions, and raffle services behind a
// single REST surface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yigicoin/platform/internal/app/runtime"
	"github.com/yigicoin/platform/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("CONFIG_PATH", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := runtime.NewWithConfig(cfg)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
