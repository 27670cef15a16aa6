package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/loqalabs/loqa-till/internal/config"
	"github.com/loqalabs/loqa-till/internal/runtime"
	cli "github.com/spf13/pflag"
)

var version = "0.1.0-dev"

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", "", "Path to configuration file")
	envFile := cli.StringP("env", "e", "", "Env file to load before reading configuration")
	logFormat := cli.String("log-format", "", "Override log format (json, console)")
	showVersion := cli.Bool("version", false, "Print version and exit")
	cli.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logFormat != "" {
		cfg.Telemetry.LogFormat = *logFormat
	}

	logger := newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	rt := runtime.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	level, ok := logLevelMap[strings.ToLower(cfg.LogLevel)]
	if !ok {
		level = slog.LevelInfo
	}
	if cfg.LogFormat == "console" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
