// Package emulator interprets a model.Application step by step, maintaining
// the mutable runtime state a physical run would have (tip inventory, liquid
// volumes, deck occupancy, arm position) and producing a deterministic,
// auditable Trace. Everything that happens "on the deck", including the
// error conditions a real run could hit, is recorded as trace data rather
// than returned as Go errors; a halted run is still a meaningful result.
package emulator

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/model"
)

// maxCallDepth bounds the method call stack, loop frames included.
const maxCallDepth = 64

// Nominal simulated durations for steps that carry no declared duration.
const (
	tipOpDuration     = 5 * time.Second
	liquidOpDuration  = 3 * time.Second
	mixCycleDuration  = 2 * time.Second
	plateMoveDuration = 8 * time.Second
)

// frame is one entry of the interpreter's control stack: a method body or an
// unrolling loop body.
type frame struct {
	method string // owning method name, for events
	steps  []model.Step
	idx    int
	iter   int // current iteration, 1-based
	total  int // total iterations; 1 for method frames
	isLoop bool
}

// Run is one simulation over a shared, immutable Application. Each Run owns
// its RuntimeState and Trace; independent Runs may execute concurrently.
type Run struct {
	app     *model.Application
	rt      *runtimeState
	trace   *Trace
	stack   []frame
	state   RunState
	elapsed time.Duration
}

// New prepares a run of the named entry method. The only failure mode is an
// unknown entry method.
func New(app *model.Application, entry string) (*Run, error) {
	m, err := app.MethodByName(entry)
	if err != nil {
		return nil, err
	}
	r := &Run{
		app:   app,
		rt:    newRuntimeState(app),
		trace: &Trace{entry: entry, state: Ready},
		state: Ready,
	}
	r.stack = append(r.stack, frame{method: m.Name(), steps: m.Steps(), iter: 1, total: 1})
	return r, nil
}

// State returns the run's lifecycle state.
func (r *Run) State() RunState { return r.state }

// Trace returns the run's trace. It grows while the run progresses and is
// read-only for callers.
func (r *Run) Trace() *Trace { return r.trace }

// Simulate runs the named entry method to a terminal state and returns the
// trace. The context is checked between steps, so a caller can cancel a long
// simulation cooperatively.
func Simulate(ctx context.Context, app *model.Application, entry string) (*Trace, error) {
	logger := ctxlog.FromContext(ctx)
	run, err := New(app, entry)
	if err != nil {
		return nil, err
	}
	logger.Debug("Simulation starting.", "entry", entry)
	for {
		ev, err := run.Step(ctx)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			logger.Debug("Simulation finished.", "state", run.State().String(), "events", run.Trace().Len())
			return run.Trace(), nil
		}
	}
}

// Step executes the next step and returns its event. It returns (nil, nil)
// once the run is in a terminal state, and a non-nil error only for context
// cancellation; step failures are trace data, not errors.
func (r *Run) Step(ctx context.Context) (*Event, error) {
	if r.state == Halted || r.state == Completed {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.state = Running
	r.trace.state = Running

	// Unwind exhausted frames; a finishing inner method may finish its
	// callers too.
	for len(r.stack) > 0 {
		top := &r.stack[len(r.stack)-1]
		if top.idx < len(top.steps) {
			break
		}
		if top.isLoop && top.iter < top.total {
			top.iter++
			top.idx = 0
			break
		}
		r.stack = r.stack[:len(r.stack)-1]
	}
	if len(r.stack) == 0 {
		r.state = Completed
		r.trace.state = Completed
		return nil, nil
	}

	top := &r.stack[len(r.stack)-1]
	step := top.steps[top.idx]

	ev := Event{
		Index:     len(r.trace.events),
		Method:    top.method,
		StepIndex: top.idx,
		Kind:      step.Kind(),
	}
	if top.isLoop {
		ev.Iteration = top.iter
	}
	top.idx++

	outcome, deltas, dur, push := r.execute(step, top.method)
	r.elapsed += dur
	ev.Outcome = outcome
	ev.Deltas = deltas
	ev.Elapsed = r.elapsed
	ev.Note = stepNote(step)

	r.trace.events = append(r.trace.events, ev)

	if outcome.Status == Fatal {
		r.state = Halted
		r.trace.state = Halted
		ctxlog.FromContext(ctx).Debug("Run halted.", "step", string(ev.Kind), "reason", outcome.Reason)
		return &r.trace.events[len(r.trace.events)-1], nil
	}
	if push != nil {
		r.stack = append(r.stack, *push)
	}
	return &r.trace.events[len(r.trace.events)-1], nil
}

// Snapshot returns a deterministic view of the run's current resource state.
func (r *Run) Snapshot() Snapshot {
	snap := Snapshot{
		State:       r.state,
		Elapsed:     r.elapsed.String(),
		ArmPosition: r.rt.armAt,
		TipsMounted: r.rt.mounted,
		TipVolume:   r.rt.tipVol,
	}
	positions := make([]string, 0, len(r.rt.deck))
	for pos := range r.rt.deck {
		positions = append(positions, pos)
	}
	sort.Strings(positions)
	for _, pos := range positions {
		slot := DeckSlot{Position: pos}
		if lw := r.rt.labwareAt(pos); lw != nil {
			slot.LabwareName = lw.Name()
			slot.LabwareKind = lw.Kind()
			switch typed := lw.(type) {
			case model.LiquidContainer:
				slot.Rows, slot.Cols = typed.Geometry()
				slot.WellVolumes = append([]float64(nil), r.rt.wells[lw.ID()]...)
			case model.TipBox:
				slot.Rows, slot.Cols = typed.Geometry()
				slot.TipsRemaining = r.rt.tipsRemaining(lw.ID())
			}
		}
		snap.Deck = append(snap.Deck, slot)
	}
	return snap
}

// execute applies one step to the runtime state. It returns the outcome, the
// resource deltas, the simulated duration, and an optional frame to push
// (method calls and loops).
func (r *Run) execute(step model.Step, method string) (Outcome, []Delta, time.Duration, *frame) {
	switch st := step.(type) {
	case model.TipPickup:
		return r.tipPickup(st)
	case model.TipEject:
		return r.tipEject(st)
	case model.Aspirate:
		return r.aspirate(st)
	case model.Dispense:
		return r.dispense(st)
	case model.Mix:
		return r.mix(st)
	case model.PlateMove:
		return r.plateMove(st)
	case model.Wash:
		o, d := r.stationOp(st.Position)
		return o, d, st.Duration, nil
	case model.Incubate:
		o, d := r.stationOp(st.Position)
		return o, d, st.Duration, nil
	case model.Shake:
		o, d := r.stationOp(st.Position)
		return o, d, st.Duration, nil
	case model.Pause:
		return Outcome{Status: Success}, nil, st.Duration, nil
	case model.Comment:
		return Outcome{Status: Success}, nil, 0, nil
	case model.MethodCall:
		return r.methodCall(st)
	case model.Loop:
		if st.Count == 0 || len(st.Body) == 0 {
			return Outcome{Status: Success}, nil, 0, nil
		}
		if len(r.stack) >= maxCallDepth {
			return Outcome{Status: Fatal, Reason: ReasonCallDepthExceeded}, nil, 0, nil
		}
		return Outcome{Status: Success}, nil, 0, &frame{
			method: method, steps: st.Body, iter: 1, total: st.Count, isLoop: true,
		}
	default:
		// The step set is closed; the builder rejects anything else.
		return Outcome{Status: Fatal, Reason: "unknown step kind"}, nil, 0, nil
	}
}

func (r *Run) methodCall(st model.MethodCall) (Outcome, []Delta, time.Duration, *frame) {
	if len(r.stack) >= maxCallDepth {
		return Outcome{Status: Fatal, Reason: ReasonCallDepthExceeded}, nil, 0, nil
	}
	m, err := r.app.MethodByName(st.Method)
	if err != nil {
		// Build-time validation makes this unreachable for built applications.
		return Outcome{Status: Fatal, Reason: err.Error()}, nil, 0, nil
	}
	return Outcome{Status: Success}, nil, 0, &frame{
		method: m.Name(), steps: m.Steps(), iter: 1, total: 1,
	}
}

func (r *Run) tipPickup(st model.TipPickup) (Outcome, []Delta, time.Duration, *frame) {
	deltas := r.rt.moveArm(st.Position)
	if r.rt.mounted {
		return Outcome{Status: Fatal, Reason: ReasonTipsAlreadyMounted}, deltas, tipOpDuration, nil
	}
	lw := r.rt.labwareAt(st.Position)
	if lw == nil {
		return Outcome{Status: Fatal, Reason: ReasonNoLabwareAtPosition}, deltas, tipOpDuration, nil
	}
	box, ok := lw.(model.TipBox)
	if !ok {
		return Outcome{Status: Fatal, Reason: ReasonNotATipBox}, deltas, tipOpDuration, nil
	}
	remaining := r.rt.tipsRemaining(box.ID())
	if remaining == 0 {
		return Outcome{Status: Fatal, Reason: ReasonEmptyTipBox}, deltas, tipOpDuration, nil
	}
	if remaining < headTipCount {
		return Outcome{Status: Fatal, Reason: ReasonNotEnoughTips}, deltas, tipOpDuration, nil
	}
	r.rt.takeTips(box.ID(), headTipCount)
	r.rt.mounted = true
	r.rt.tipVol = 0
	after := remaining - headTipCount
	deltas = append(deltas,
		Delta{Resource: "tips " + st.Position, Before: itoa(remaining), After: itoa(after)},
		Delta{Resource: "head", Before: "empty", After: itoa(headTipCount) + " tips"},
	)
	outcome := Outcome{Status: Success}
	if after < headTipCount {
		outcome = Outcome{Status: Warning, Reason: ReasonTipBoxLow}
	}
	return outcome, deltas, tipOpDuration, nil
}

func (r *Run) tipEject(st model.TipEject) (Outcome, []Delta, time.Duration, *frame) {
	deltas := r.rt.moveArm(st.Position)
	if !r.rt.mounted {
		return Outcome{Status: Warning, Reason: ReasonNoTipsToEject}, deltas, tipOpDuration, nil
	}
	before := itoa(headTipCount) + " tips"
	if r.rt.tipVol > 0 {
		before += " (" + volumeText(r.rt.tipVol) + " held)"
	}
	r.rt.mounted = false
	r.rt.tipVol = 0
	deltas = append(deltas, Delta{Resource: "head", Before: before, After: "empty"})
	return Outcome{Status: Success}, deltas, tipOpDuration, nil
}

// liquidTarget resolves a position+well pair against current deck occupancy.
func (r *Run) liquidTarget(position, well string) (model.LiquidContainer, int, *Outcome) {
	lw := r.rt.labwareAt(position)
	if lw == nil {
		return nil, 0, &Outcome{Status: Fatal, Reason: ReasonNoLabwareAtPosition}
	}
	lc, ok := lw.(model.LiquidContainer)
	if !ok {
		return nil, 0, &Outcome{Status: Fatal, Reason: ReasonNotLiquidContainer}
	}
	idx, ok := wellIndex(lc, well)
	if !ok {
		return nil, 0, &Outcome{Status: Fatal, Reason: ReasonNoSuchWell}
	}
	return lc, idx, nil
}

func (r *Run) aspirate(st model.Aspirate) (Outcome, []Delta, time.Duration, *frame) {
	deltas := r.rt.moveArm(st.Position)
	if !r.rt.mounted {
		return Outcome{Status: Fatal, Reason: ReasonNoTipsMounted}, deltas, liquidOpDuration, nil
	}
	lc, idx, fail := r.liquidTarget(st.Position, st.Well)
	if fail != nil {
		return *fail, deltas, liquidOpDuration, nil
	}
	wells := r.rt.wells[lc.ID()]
	if st.Volume > wells[idx] {
		return Outcome{Status: Fatal, Reason: ReasonInsufficientVolume}, deltas, liquidOpDuration, nil
	}
	before := wells[idx]
	wells[idx] -= st.Volume
	heldBefore := r.rt.tipVol
	r.rt.tipVol += st.Volume
	deltas = append(deltas,
		Delta{Resource: "well " + st.Position + ":" + st.Well, Before: volumeText(before), After: volumeText(wells[idx])},
		Delta{Resource: "head volume", Before: volumeText(heldBefore), After: volumeText(r.rt.tipVol)},
	)
	return Outcome{Status: Success}, deltas, liquidOpDuration, nil
}

func (r *Run) dispense(st model.Dispense) (Outcome, []Delta, time.Duration, *frame) {
	deltas := r.rt.moveArm(st.Position)
	if !r.rt.mounted {
		return Outcome{Status: Fatal, Reason: ReasonNoTipsMounted}, deltas, liquidOpDuration, nil
	}
	lc, idx, fail := r.liquidTarget(st.Position, st.Well)
	if fail != nil {
		return *fail, deltas, liquidOpDuration, nil
	}
	volume := st.Volume
	if st.All {
		if r.rt.tipVol == 0 {
			return Outcome{Status: Warning, Reason: ReasonNothingToDispense}, deltas, liquidOpDuration, nil
		}
		volume = r.rt.tipVol
	} else if volume > r.rt.tipVol {
		return Outcome{Status: Fatal, Reason: ReasonInsufficientTipVolume}, deltas, liquidOpDuration, nil
	}
	wells := r.rt.wells[lc.ID()]
	if wells[idx]+volume > lc.WellCapacity() {
		return Outcome{Status: Fatal, Reason: ReasonWellCapacityExceeded}, deltas, liquidOpDuration, nil
	}
	before := wells[idx]
	wells[idx] += volume
	heldBefore := r.rt.tipVol
	r.rt.tipVol -= volume
	deltas = append(deltas,
		Delta{Resource: "well " + st.Position + ":" + st.Well, Before: volumeText(before), After: volumeText(wells[idx])},
		Delta{Resource: "head volume", Before: volumeText(heldBefore), After: volumeText(r.rt.tipVol)},
	)
	return Outcome{Status: Success}, deltas, liquidOpDuration, nil
}

func (r *Run) mix(st model.Mix) (Outcome, []Delta, time.Duration, *frame) {
	dur := time.Duration(st.Cycles) * mixCycleDuration
	deltas := r.rt.moveArm(st.Position)
	if !r.rt.mounted {
		return Outcome{Status: Fatal, Reason: ReasonNoTipsMounted}, deltas, dur, nil
	}
	lc, idx, fail := r.liquidTarget(st.Position, st.Well)
	if fail != nil {
		return *fail, deltas, dur, nil
	}
	// Mixing cycles liquid in place: the well must hold at least the mix
	// volume, but nothing changes hands.
	if st.Volume > r.rt.wells[lc.ID()][idx] {
		return Outcome{Status: Fatal, Reason: ReasonInsufficientVolume}, deltas, dur, nil
	}
	return Outcome{Status: Success}, deltas, dur, nil
}

func (r *Run) plateMove(st model.PlateMove) (Outcome, []Delta, time.Duration, *frame) {
	deltas := r.rt.moveArm(st.From)
	srcID := r.rt.deck[st.From]
	if srcID == uuid.Nil {
		return Outcome{Status: Fatal, Reason: ReasonNoLabwareAtSource}, deltas, plateMoveDuration, nil
	}
	if r.rt.deck[st.To] != uuid.Nil {
		return Outcome{Status: Fatal, Reason: ReasonDeckCollision}, deltas, plateMoveDuration, nil
	}
	lw, _ := r.app.LabwareByID(srcID)
	r.rt.deck[st.From] = uuid.Nil
	r.rt.deck[st.To] = srcID
	deltas = append(deltas,
		Delta{Resource: "deck " + st.From, Before: lw.Name(), After: "empty"},
		Delta{Resource: "deck " + st.To, Before: "empty", After: lw.Name()},
	)
	deltas = append(deltas, r.rt.moveArm(st.To)...)
	return Outcome{Status: Success}, deltas, plateMoveDuration, nil
}

// stationOp covers wash, incubate, and shake: the step succeeds as long as
// the position actually holds labware; time advance is handled by the caller.
func (r *Run) stationOp(position string) (Outcome, []Delta) {
	deltas := r.rt.moveArm(position)
	if r.rt.labwareAt(position) == nil {
		return Outcome{Status: Fatal, Reason: ReasonNoLabwareAtPosition}, deltas
	}
	return Outcome{Status: Success}, deltas
}

func stepNote(step model.Step) string {
	switch st := step.(type) {
	case model.Comment:
		return st.Text
	case model.Pause:
		return st.Message
	case model.MethodCall:
		return st.Method
	default:
		return ""
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
