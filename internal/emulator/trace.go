package emulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maestro-ngs/maestro/internal/model"
)

// Status is the severity of a step outcome. Warning mirrors the instrument's
// soft alarms: the condition is flagged but the run continues. Fatal mirrors
// its hard interlocks: the run halts at the offending step.
type Status int

const (
	Success Status = iota
	Warning
	Fatal
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Warning:
		return "Warning"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Outcome is the result of executing one step.
type Outcome struct {
	Status Status
	Reason string // empty for plain Success
}

// Stable reason strings. Tools grepping traces rely on these not changing.
const (
	ReasonInsufficientVolume    = "insufficient volume"
	ReasonDeckCollision         = "deck collision"
	ReasonEmptyTipBox           = "empty tip box"
	ReasonNotEnoughTips         = "not enough tips"
	ReasonTipsAlreadyMounted    = "tips already mounted"
	ReasonNoTipsMounted         = "no tips mounted"
	ReasonInsufficientTipVolume = "insufficient tip volume"
	ReasonWellCapacityExceeded  = "well capacity exceeded"
	ReasonNoLabwareAtPosition   = "no labware at position"
	ReasonNotLiquidContainer    = "labware cannot hold liquid"
	ReasonNoSuchWell            = "no such well"
	ReasonNoLabwareAtSource     = "no labware at source"
	ReasonCallDepthExceeded     = "call depth exceeded"
	ReasonNotATipBox            = "labware is not a tip box"

	ReasonTipBoxLow         = "tip box low"
	ReasonNothingToDispense = "tips empty, nothing to dispense"
	ReasonNoTipsToEject     = "no tips to eject"
)

// Delta records one resource change a step caused, rendered as stable text
// so traces stay byte-for-byte reproducible.
type Delta struct {
	Resource string
	Before   string
	After    string
}

// Event is the immutable record of one executed step.
type Event struct {
	Index     int
	Method    string
	StepIndex int
	Iteration int // 1-based loop iteration, 0 outside loops
	Kind      model.StepKind
	Outcome   Outcome
	Elapsed   time.Duration // simulated time after the step
	Deltas    []Delta
	Note      string // comment text, pause message, call target
}

// String renders the event as one stable line.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%03d %s[%d]", e.Index, e.Method, e.StepIndex)
	if e.Iteration > 0 {
		fmt.Fprintf(&b, " iter=%d", e.Iteration)
	}
	fmt.Fprintf(&b, " %s %s", e.Kind, e.Outcome.Status)
	if e.Outcome.Reason != "" {
		fmt.Fprintf(&b, "(%s)", e.Outcome.Reason)
	}
	fmt.Fprintf(&b, " t=%s", e.Elapsed)
	for _, d := range e.Deltas {
		fmt.Fprintf(&b, " [%s: %s -> %s]", d.Resource, d.Before, d.After)
	}
	if e.Note != "" {
		fmt.Fprintf(&b, " %q", e.Note)
	}
	return b.String()
}

// RunState is the emulator's run lifecycle state.
type RunState int

const (
	// Ready means the run has been created but no step has executed.
	Ready RunState = iota
	// Running means at least one step has executed and more remain.
	Running
	// Halted means a Fatal outcome stopped the run. Terminal.
	Halted
	// Completed means the entry method and all descendants are exhausted. Terminal.
	Completed
)

func (s RunState) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Trace is the ordered record of one run's executed steps. It is appended to
// by the producing run and read-only to everyone else.
type Trace struct {
	entry  string
	events []Event
	state  RunState
}

// Entry returns the name of the entry method the run started from.
func (t *Trace) Entry() string { return t.entry }

// Len returns the number of recorded events.
func (t *Trace) Len() int { return len(t.events) }

// Events returns all recorded events in execution order.
func (t *Trace) Events() []Event { return append([]Event(nil), t.events...) }

// Event returns the event at index i. An out-of-range index is a caller bug
// and reported as a plain error, not a trace condition.
func (t *Trace) Event(i int) (Event, error) {
	if i < 0 || i >= len(t.events) {
		return Event{}, fmt.Errorf("trace index %d out of range [0, %d)", i, len(t.events))
	}
	return t.events[i], nil
}

// FinalState returns the run state the trace ended in.
func (t *Trace) FinalState() RunState { return t.state }

// FirstFatal returns the first event with a Fatal outcome, if any.
func (t *Trace) FirstFatal() (Event, bool) {
	for _, e := range t.events {
		if e.Outcome.Status == Fatal {
			return e, true
		}
	}
	return Event{}, false
}

// String renders the whole trace; two identical runs render identically.
func (t *Trace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entry=%s state=%s events=%d\n", t.entry, t.state, len(t.events))
	for _, e := range t.events {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// volumeText renders a volume with no trailing zeros so deltas are stable.
func volumeText(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + " uL"
}
