package app

import (
	"errors"
	"fmt"
)

// Commands understood by App.Run.
const (
	CommandInfo     = "info"
	CommandMethods  = "methods"
	CommandLayout   = "layout"
	CommandSimulate = "simulate"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FilePath string // .eap export or .hcl protocol
	Command  string
	Method   string // simulate entry method; "" means the startup method

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("FilePath is a required configuration field and cannot be empty")
	}
	switch cfg.Command {
	case CommandInfo, CommandMethods, CommandLayout, CommandSimulate:
	default:
		return nil, fmt.Errorf("unknown command %q: must be info, methods, layout or simulate", cfg.Command)
	}
	return &cfg, nil
}
