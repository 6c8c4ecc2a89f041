// Command explorerd serves one exported application over HTTP for browsing
// and simulation. It is configured entirely through the environment so it
// drops into a container without flags.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"

	"github.com/maestro-ngs/maestro/internal/app"
	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/explorer"
	"github.com/maestro-ngs/maestro/internal/query"
)

type config struct {
	File      string `env:"MAESTRO_FILE,required"`
	Port      int    `env:"MAESTRO_PORT" envDefault:"8080"`
	LogFormat string `env:"MAESTRO_LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"MAESTRO_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	application, err := app.LoadApplication(ctx, cfg.File)
	if err != nil {
		return err
	}
	logger.Info("Application loaded.", "name", application.Name(), "version", application.Version().String())

	server := explorer.NewServer(logger, query.NewService(application))
	return server.ListenAndServe(ctx, cfg.Port)
}

func newLogger(levelStr, formatStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
