package model

import (
	"fmt"

	"github.com/google/uuid"
)

// LabwareKind names the closed set of labware classes the instrument knows.
type LabwareKind string

const (
	KindPlate     LabwareKind = "Plate"
	KindTipBox    LabwareKind = "TipBox"
	KindReservoir LabwareKind = "ReagentReservoir"
)

// Labware is a physical consumable or fixture that occupies one deck
// position. Implementations are small value types; the interface is sealed
// so the emulator's type switches stay exhaustive.
type Labware interface {
	ID() uuid.UUID
	Name() string
	Kind() LabwareKind

	labware()
}

// LiquidContainer is implemented by labware whose wells hold liquid.
type LiquidContainer interface {
	Labware

	// Geometry returns the well grid as rows by columns.
	Geometry() (rows, cols int)
	// WellCapacity is the maximum volume of one well, in microliters.
	WellCapacity() float64
	// InitialVolume is the declared per-well volume at protocol start.
	InitialVolume() float64
}

// Plate is a multi-well microplate.
type Plate struct {
	LabwareID uuid.UUID
	Label     string
	Rows      int
	Cols      int
	Capacity  float64 // per well, microliters
	Initial   float64 // per well at protocol start
}

func (p Plate) ID() uuid.UUID          { return p.LabwareID }
func (p Plate) Name() string           { return p.Label }
func (p Plate) Kind() LabwareKind      { return KindPlate }
func (p Plate) Geometry() (int, int)   { return p.Rows, p.Cols }
func (p Plate) WellCapacity() float64  { return p.Capacity }
func (p Plate) InitialVolume() float64 { return p.Initial }
func (Plate) labware()                 {}

// TipBox is a rack of disposable pipette tips.
type TipBox struct {
	LabwareID uuid.UUID
	Label     string
	Rows      int
	Cols      int
}

func (b TipBox) ID() uuid.UUID        { return b.LabwareID }
func (b TipBox) Name() string         { return b.Label }
func (b TipBox) Kind() LabwareKind    { return KindTipBox }
func (b TipBox) Geometry() (int, int) { return b.Rows, b.Cols }
func (b TipBox) TipCount() int        { return b.Rows * b.Cols }
func (TipBox) labware()               {}

// Reservoir is a single-well reagent trough.
type Reservoir struct {
	LabwareID uuid.UUID
	Label     string
	Capacity  float64
	Initial   float64
}

func (r Reservoir) ID() uuid.UUID          { return r.LabwareID }
func (r Reservoir) Name() string           { return r.Label }
func (r Reservoir) Kind() LabwareKind      { return KindReservoir }
func (r Reservoir) Geometry() (int, int)   { return 1, 1 }
func (r Reservoir) WellCapacity() float64  { return r.Capacity }
func (r Reservoir) InitialVolume() float64 { return r.Initial }
func (Reservoir) labware()                 {}

// ParseWell converts an "A1"-style well label into zero-based row and column
// indices. The row is a single letter; the column is a decimal number
// starting at 1.
func ParseWell(label string) (row, col int, err error) {
	if len(label) < 2 {
		return 0, 0, fmt.Errorf("well label %q too short", label)
	}
	r := label[0]
	switch {
	case r >= 'A' && r <= 'Z':
		row = int(r - 'A')
	case r >= 'a' && r <= 'z':
		row = int(r - 'a')
	default:
		return 0, 0, fmt.Errorf("well label %q: row must be a letter", label)
	}
	for _, d := range label[1:] {
		if d < '0' || d > '9' {
			return 0, 0, fmt.Errorf("well label %q: column must be a number", label)
		}
		col = col*10 + int(d-'0')
	}
	if col == 0 {
		return 0, 0, fmt.Errorf("well label %q: columns start at 1", label)
	}
	return row, col - 1, nil
}
