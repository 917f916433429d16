// cmd/drill/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"videostore/internal/client"
	"videostore/internal/config"
	"videostore/internal/drill"
	"videostore/internal/telemetry"
)

func main() {
	cfg, err := config.LoadDrill()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	var log *zap.Logger
	if cfg.LogFormat == "console" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "videostore-drill")
	if err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}

	engine := drill.NewEngine(log)
	engine.RegisterExperiments(client.New(cfg.TargetURL), cfg.Racers)

	log.Info("starting drill", zap.String("target", cfg.TargetURL), zap.Int("racers", cfg.Racers))
	held := engine.RunAll(ctx)

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(sctx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}

	if !held {
		log.Error("drill failed")
		os.Exit(1)
	}
	log.Info("drill passed")
}
