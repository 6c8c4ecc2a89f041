package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
)

// Run executes the configured command against the loaded application.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	switch a.config.Command {
	case CommandInfo:
		return a.runInfo()
	case CommandMethods:
		return a.runMethods()
	case CommandLayout:
		return a.runLayout()
	case CommandSimulate:
		return a.runSimulate(ctx)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

func (a *App) runInfo() error {
	info := a.service.Info()
	fmt.Fprintf(a.outW, "Application: %s\n", info.Name)
	fmt.Fprintf(a.outW, "Version:     %s\n", info.Version)
	if info.Startup != "" {
		fmt.Fprintf(a.outW, "Startup:     %s\n", info.Startup)
	}
	fmt.Fprintf(a.outW, "Methods:     %d\n", info.Methods)
	return nil
}

func (a *App) runMethods() error {
	for _, summary := range a.service.ListMethods() {
		detail, err := a.service.Method(summary.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "method %q (%d steps)\n", detail.Name, summary.Steps)
		for _, step := range detail.Steps {
			indent := strings.Repeat("  ", step.Depth)
			fmt.Fprintf(a.outW, "  %3d  %s%s\n", step.Index, indent, step.Detail)
		}
	}
	return nil
}

func (a *App) runLayout() error {
	for _, pos := range a.service.DeckLayout() {
		if pos.Labware == "" {
			fmt.Fprintf(a.outW, "%-4s (empty)\n", pos.Position)
			continue
		}
		if pos.Geometry != "" {
			fmt.Fprintf(a.outW, "%-4s %s [%s %s]\n", pos.Position, pos.Labware, pos.Kind, pos.Geometry)
			continue
		}
		fmt.Fprintf(a.outW, "%-4s %s [%s]\n", pos.Position, pos.Labware, pos.Kind)
	}
	return nil
}

func (a *App) runSimulate(ctx context.Context) error {
	entry := a.config.Method
	if entry == "" {
		entry = a.service.Info().Startup
	}
	if entry == "" {
		return fmt.Errorf("no entry method: the application has no startup method, use -method")
	}

	result, err := a.service.Simulate(ctx, entry)
	if err != nil {
		return err
	}

	trace := result.Trace
	for _, event := range trace.Events() {
		fmt.Fprintln(a.outW, event.String())
	}
	fmt.Fprintf(a.outW, "entry: %s, steps: %d, final state: %s\n", trace.Entry(), trace.Len(), trace.FinalState())
	if fatal, ok := trace.FirstFatal(); ok {
		fmt.Fprintf(a.outW, "run halted at step %d: %s\n", fatal.Index, fatal.Outcome.Reason)
	}
	a.logger.Debug("Simulation finished.", "state", trace.FinalState().String())
	return nil
}
