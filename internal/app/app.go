package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/model"
	"github.com/maestro-ngs/maestro/internal/query"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	app     *model.Application
	service *query.Service
}

// NewApp is the constructor for the main application. It loads the protocol
// file named in the configuration and returns a fully initialized App
// instance with its own isolated logger.
func NewApp(outW io.Writer, config *Config) (*App, error) {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	application, err := LoadApplication(ctx, config.FilePath)
	if err != nil {
		return nil, err
	}

	return &App{
		outW:    outW,
		logger:  logger,
		config:  config,
		app:     application,
		service: query.NewService(application),
	}, nil
}

// Application returns the loaded application. This is primarily for testing.
func (a *App) Application() *model.Application {
	return a.app
}
