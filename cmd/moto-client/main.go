package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"moto/internal/client"
	"moto/internal/config"
	"moto/internal/logging"
)

func main() {
	conf := flag.String("config", "", "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*conf)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("moto-client starting")
	core, err := client.Dial(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect", zap.Error(err))
		os.Exit(1)
	}
	if err := core.Run(ctx); err != nil {
		log.Error("core exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("moto-client stopped")
}
