// Package main provides the entry point for the allocation engine server:
// Kelly-criterion position sizing with portfolio-level CVaR constraints and
// an efficient-frontier allocation path.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfolio/allocation-engine/internal/allocation"
	"github.com/quantfolio/allocation-engine/internal/api"
	"github.com/quantfolio/allocation-engine/internal/config"
	"github.com/quantfolio/allocation-engine/internal/data"
	"github.com/quantfolio/allocation-engine/internal/kelly"
	"github.com/quantfolio/allocation-engine/internal/optimization"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting allocation engine",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Float64("cvar_target", cfg.Constraints.CVaRTarget),
		zap.Float64("max_position_risk", cfg.Constraints.MaxPositionRisk),
	)

	var prices data.PriceSource
	if fps, err := data.NewFilePriceSource(logger, cfg.Data.PricesPath); err != nil {
		logger.Warn("price table unavailable, all positions will use the fallback sentinel",
			zap.String("path", cfg.Data.PricesPath),
			zap.Error(err),
		)
	} else {
		prices = fps
	}

	riskParams := kelly.DefaultRiskParams()
	riskParams.MaxPositionRisk = cfg.Constraints.MaxPositionRisk

	frontierCfg := optimization.DefaultFrontierConfig()
	frontierCfg.AssetBound = cfg.Constraints.FrontierAssetBound

	engine := allocation.NewEngine(logger, cfg.Defaults, riskParams, frontierCfg, prices)

	server := api.NewServer(logger, &cfg.Server, cfg.Data, cfg.Defaults, cfg.Constraints, engine)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
