package model

import "time"

// StepKind names one instruction in the instrument's fixed instruction set.
type StepKind string

const (
	StepAspirate   StepKind = "Aspirate"
	StepDispense   StepKind = "Dispense"
	StepTipPickup  StepKind = "TipPickup"
	StepTipEject   StepKind = "TipEject"
	StepPlateMove  StepKind = "PlateMove"
	StepWash       StepKind = "Wash"
	StepIncubate   StepKind = "Incubate"
	StepShake      StepKind = "Shake"
	StepMethodCall StepKind = "MethodCall"
	StepLoop       StepKind = "Loop"
	StepPause      StepKind = "Pause"
	StepMix        StepKind = "Mix"
	StepComment    StepKind = "Comment"
)

// Step is one instruction within a method. The set of implementations is
// closed: the instrument's instruction set is fixed, and adding a kind is a
// deliberate breaking change that every type switch over Step must absorb.
type Step interface {
	Kind() StepKind

	step()
}

// Aspirate draws liquid from a well into the mounted tips.
type Aspirate struct {
	Position string
	Well     string
	Volume   float64
}

// Dispense expels liquid from the mounted tips into a well. With All set the
// full held volume is dispensed and Volume is ignored.
type Dispense struct {
	Position string
	Well     string
	Volume   float64
	All      bool
}

// Mix cycles liquid in place to homogenize a well's contents.
type Mix struct {
	Position string
	Well     string
	Volume   float64
	Cycles   int
}

// TipPickup mounts a set of fresh tips from a tip box.
type TipPickup struct {
	Position string
}

// TipEject discards the mounted tips at the given position.
type TipEject struct {
	Position string
}

// PlateMove carries labware from one deck position to another.
type PlateMove struct {
	From string
	To   string
}

// Wash runs the wash station over labware at a position.
type Wash struct {
	Position string
	Duration time.Duration
}

// Incubate holds labware at temperature for a duration.
type Incubate struct {
	Position string
	Duration time.Duration
	Celsius  float64
}

// Shake agitates labware at a position.
type Shake struct {
	Position string
	Duration time.Duration
	RPM      int
}

// Pause suspends the protocol for a declared duration.
type Pause struct {
	Duration time.Duration
	Message  string
}

// MethodCall transfers control to another method by name. The reference is a
// lookup key into the application's method table, never a structural edge.
type MethodCall struct {
	Method string
}

// Loop executes its body a bounded number of times.
type Loop struct {
	Count int
	Body  []Step
}

// Comment is a no-op annotation carried through to the trace.
type Comment struct {
	Text string
}

func (Aspirate) Kind() StepKind   { return StepAspirate }
func (Dispense) Kind() StepKind   { return StepDispense }
func (Mix) Kind() StepKind        { return StepMix }
func (TipPickup) Kind() StepKind  { return StepTipPickup }
func (TipEject) Kind() StepKind   { return StepTipEject }
func (PlateMove) Kind() StepKind  { return StepPlateMove }
func (Wash) Kind() StepKind       { return StepWash }
func (Incubate) Kind() StepKind   { return StepIncubate }
func (Shake) Kind() StepKind      { return StepShake }
func (Pause) Kind() StepKind      { return StepPause }
func (MethodCall) Kind() StepKind { return StepMethodCall }
func (Loop) Kind() StepKind       { return StepLoop }
func (Comment) Kind() StepKind    { return StepComment }

func (Aspirate) step()   {}
func (Dispense) step()   {}
func (Mix) step()        {}
func (TipPickup) step()  {}
func (TipEject) step()   {}
func (PlateMove) step()  {}
func (Wash) step()       {}
func (Incubate) step()   {}
func (Shake) step()      {}
func (Pause) step()      {}
func (MethodCall) step() {}
func (Loop) step()       {}
func (Comment) step()    {}
