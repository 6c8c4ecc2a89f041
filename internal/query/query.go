// Package query is the read-only surface the front ends consume. It projects
// a built Application and the traces of simulation runs into plain data;
// neither the CLI nor the web explorer ever touches the builder or a run's
// internal state directly.
package query

import (
	"context"
	"fmt"

	"github.com/maestro-ngs/maestro/internal/emulator"
	"github.com/maestro-ngs/maestro/internal/model"
)

// Service answers queries about one loaded Application. It is safe for
// concurrent use: the Application is immutable and every simulation owns its
// private run state.
type Service struct {
	app *model.Application
}

// NewService wraps a built application.
func NewService(app *model.Application) *Service {
	return &Service{app: app}
}

// AppInfo is the application header.
type AppInfo struct {
	Name    string
	Version string
	Startup string
	Methods int
}

// Info returns the application header.
func (s *Service) Info() AppInfo {
	return AppInfo{
		Name:    s.app.Name(),
		Version: s.app.Version().String(),
		Startup: s.app.StartupMethod(),
		Methods: len(s.app.Methods()),
	}
}

// MethodSummary is one row of the method listing.
type MethodSummary struct {
	Name  string
	Steps int
}

// ListMethods lists all methods in file order.
func (s *Service) ListMethods() []MethodSummary {
	methods := s.app.Methods()
	out := make([]MethodSummary, 0, len(methods))
	for _, m := range methods {
		out = append(out, MethodSummary{Name: m.Name(), Steps: m.Len()})
	}
	return out
}

// StepInfo describes one step of a method. Depth is the loop nesting level.
type StepInfo struct {
	Index  int
	Depth  int
	Kind   model.StepKind
	Detail string
}

// MethodDetail is the full step listing of one method.
type MethodDetail struct {
	Name  string
	ID    string
	Steps []StepInfo
}

// Method returns the detailed step listing for a named method.
func (s *Service) Method(name string) (MethodDetail, error) {
	m, err := s.app.MethodByName(name)
	if err != nil {
		return MethodDetail{}, err
	}
	detail := MethodDetail{Name: m.Name(), ID: m.ID().String()}
	detail.Steps = appendSteps(detail.Steps, m.Steps(), 0)
	return detail, nil
}

func appendSteps(out []StepInfo, steps []model.Step, depth int) []StepInfo {
	for i, st := range steps {
		out = append(out, StepInfo{Index: i, Depth: depth, Kind: st.Kind(), Detail: DescribeStep(st)})
		if loop, ok := st.(model.Loop); ok {
			out = appendSteps(out, loop.Body, depth+1)
		}
	}
	return out
}

// PositionInfo is one deck slot in the layout listing.
type PositionInfo struct {
	Position string
	Labware  string // "" for an empty position
	Kind     model.LabwareKind
	Geometry string // "8x12", "" for empty positions
}

// DeckLayout lists the starting deck layout, sorted by position.
func (s *Service) DeckLayout() []PositionInfo {
	positions := s.app.Positions()
	out := make([]PositionInfo, 0, len(positions))
	for _, p := range positions {
		info := PositionInfo{Position: p.Name}
		if p.Labware != nil {
			info.Labware = p.Labware.Name()
			info.Kind = p.Labware.Kind()
			switch lw := p.Labware.(type) {
			case model.LiquidContainer:
				rows, cols := lw.Geometry()
				info.Geometry = fmt.Sprintf("%dx%d", rows, cols)
			case model.TipBox:
				rows, cols := lw.Geometry()
				info.Geometry = fmt.Sprintf("%dx%d", rows, cols)
			}
		}
		out = append(out, info)
	}
	return out
}

// Result couples a finished simulation's trace with the entry method it ran,
// so snapshots can be replayed against the same application later.
type Result struct {
	Entry string
	Trace *emulator.Trace
}

// Simulate runs the named entry method to a terminal state. It is the only
// compute operation on the service; everything else is a pure read.
func (s *Service) Simulate(ctx context.Context, entry string) (*Result, error) {
	trace, err := emulator.Simulate(ctx, s.app, entry)
	if err != nil {
		return nil, err
	}
	return &Result{Entry: entry, Trace: trace}, nil
}

// SnapshotAt replays a result's run and returns the resource state
// immediately after event index executed. Replay is exact because
// simulation is deterministic.
func (s *Service) SnapshotAt(ctx context.Context, res *Result, index int) (emulator.Snapshot, error) {
	if index < 0 || index >= res.Trace.Len() {
		return emulator.Snapshot{}, fmt.Errorf("event index %d out of range [0, %d)", index, res.Trace.Len())
	}
	run, err := emulator.New(s.app, res.Entry)
	if err != nil {
		return emulator.Snapshot{}, err
	}
	for i := 0; i <= index; i++ {
		ev, err := run.Step(ctx)
		if err != nil {
			return emulator.Snapshot{}, err
		}
		if ev == nil {
			return emulator.Snapshot{}, fmt.Errorf("replay ended before event %d", index)
		}
	}
	return run.Snapshot(), nil
}

// DescribeStep renders one step as a short human-readable phrase.
func DescribeStep(step model.Step) string {
	switch st := step.(type) {
	case model.Aspirate:
		return fmt.Sprintf("aspirate %g uL from %s:%s", st.Volume, st.Position, st.Well)
	case model.Dispense:
		if st.All {
			return fmt.Sprintf("dispense all into %s:%s", st.Position, st.Well)
		}
		return fmt.Sprintf("dispense %g uL into %s:%s", st.Volume, st.Position, st.Well)
	case model.Mix:
		return fmt.Sprintf("mix %g uL at %s:%s, %d cycles", st.Volume, st.Position, st.Well, st.Cycles)
	case model.TipPickup:
		return "pick up tips from " + st.Position
	case model.TipEject:
		return "eject tips at " + st.Position
	case model.PlateMove:
		return fmt.Sprintf("move labware %s -> %s", st.From, st.To)
	case model.Wash:
		return fmt.Sprintf("wash %s for %s", st.Position, st.Duration)
	case model.Incubate:
		return fmt.Sprintf("incubate %s at %g C for %s", st.Position, st.Celsius, st.Duration)
	case model.Shake:
		return fmt.Sprintf("shake %s at %d rpm for %s", st.Position, st.RPM, st.Duration)
	case model.Pause:
		if st.Message != "" {
			return fmt.Sprintf("pause %s: %s", st.Duration, st.Message)
		}
		return fmt.Sprintf("pause %s", st.Duration)
	case model.MethodCall:
		return "call method " + st.Method
	case model.Loop:
		return fmt.Sprintf("loop %d times over %d steps", st.Count, len(st.Body))
	case model.Comment:
		return "# " + st.Text
	default:
		return string(step.Kind())
	}
}
