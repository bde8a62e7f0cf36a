package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"moto/internal/analytics"
	"moto/internal/config"
	"moto/internal/logging"
	"moto/internal/receiver"
	"moto/internal/server"
	"moto/internal/source"
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

	var stats *analytics.Analytics
	if cfg.StatPath != "" {
		stats, err = loadAnalytics(cfg)
		if err != nil {
			log.Error("failed to load stat_path, running without accuracy evaluation", zap.Error(err))
			stats = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Listen:  net.JoinHostPort(cfg.Server, strconv.Itoa(int(cfg.Port))),
		Monitor: receiver.DefaultMonitorConfig(),
	}, stats, log)

	log.Info("moto-server starting")
	if err := srv.Run(ctx); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("moto-server stopped")
}

// loadAnalytics loads the stat and profile CSVs needed to join live-frame
// (frame_num, level) logs against per-frame detector outcomes (§12).
func loadAnalytics(cfg *config.Setting) (*analytics.Analytics, error) {
	frameStats, err := analytics.LoadFrameStats(cfg.StatPath)
	if err != nil {
		return nil, err
	}
	prof, err := source.LoadVideoProfile(cfg.ProfilePath, cfg.Tuning.MaxSticky)
	if err != nil {
		return nil, err
	}
	configs := make(map[int]source.VideoConfig, prof.Len())
	for i := 0; i < prof.Len(); i++ {
		configs[i] = prof.NthConfig(i)
	}
	return analytics.New(frameStats, configs), nil
}
