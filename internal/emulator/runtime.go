package emulator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/maestro-ngs/maestro/internal/model"
)

// headTipCount is the number of tips the pipetting head mounts per pickup.
const headTipCount = 8

// runtimeState is the mutable overlay for one run. It is seeded from the
// application's deck layout and never written back; the Application itself
// stays immutable.
type runtimeState struct {
	app *model.Application

	deck    map[string]uuid.UUID // position -> occupying labware, uuid.Nil if empty
	wells   map[uuid.UUID][]float64
	tips    map[uuid.UUID][]bool
	mounted bool
	tipVol  float64
	armAt   string
}

func newRuntimeState(app *model.Application) *runtimeState {
	rt := &runtimeState{
		app:   app,
		deck:  map[string]uuid.UUID{},
		wells: map[uuid.UUID][]float64{},
		tips:  map[uuid.UUID][]bool{},
	}
	for _, p := range app.Positions() {
		if p.Labware == nil {
			rt.deck[p.Name] = uuid.Nil
			continue
		}
		rt.deck[p.Name] = p.Labware.ID()
		switch lw := p.Labware.(type) {
		case model.LiquidContainer:
			rows, cols := lw.Geometry()
			wells := make([]float64, rows*cols)
			for i := range wells {
				wells[i] = lw.InitialVolume()
			}
			rt.wells[lw.ID()] = wells
		case model.TipBox:
			tips := make([]bool, lw.TipCount())
			for i := range tips {
				tips[i] = true
			}
			rt.tips[lw.ID()] = tips
		}
	}
	return rt
}

// labwareAt resolves the labware currently occupying a position.
func (rt *runtimeState) labwareAt(pos string) model.Labware {
	id, ok := rt.deck[pos]
	if !ok || id == uuid.Nil {
		return nil
	}
	lw, err := rt.app.LabwareByID(id)
	if err != nil {
		return nil
	}
	return lw
}

// wellIndex resolves a well label against the labware's geometry.
func wellIndex(lw model.LiquidContainer, well string) (int, bool) {
	row, col, err := model.ParseWell(well)
	if err != nil {
		return 0, false
	}
	rows, cols := lw.Geometry()
	if row >= rows || col >= cols {
		return 0, false
	}
	return row*cols + col, true
}

// tipsRemaining counts available tips in a box's bitmap.
func (rt *runtimeState) tipsRemaining(boxID uuid.UUID) int {
	n := 0
	for _, free := range rt.tips[boxID] {
		if free {
			n++
		}
	}
	return n
}

// takeTips consumes count tips from the bitmap in index order.
func (rt *runtimeState) takeTips(boxID uuid.UUID, count int) {
	tips := rt.tips[boxID]
	for i := range tips {
		if count == 0 {
			return
		}
		if tips[i] {
			tips[i] = false
			count--
		}
	}
}

// moveArm repositions the gripper/head and returns the delta, if it moved.
func (rt *runtimeState) moveArm(pos string) []Delta {
	if rt.armAt == pos {
		return nil
	}
	before := rt.armAt
	if before == "" {
		before = "-"
	}
	rt.armAt = pos
	return []Delta{{Resource: "arm", Before: before, After: pos}}
}

// DeckSlot is one deck position in a snapshot.
type DeckSlot struct {
	Position      string
	LabwareName   string // "" for an empty position
	LabwareKind   model.LabwareKind
	Rows, Cols    int
	TipsRemaining int       // tip boxes only
	WellVolumes   []float64 // liquid containers only, row-major
}

// Snapshot is a read-only view of a run's resource state at a point in time.
type Snapshot struct {
	State       RunState
	Elapsed     string // rendered duration, stable
	ArmPosition string
	TipsMounted bool
	TipVolume   float64
	Deck        []DeckSlot // sorted by position name
}

// WellVolume looks up the current volume of one well by deck position.
func (s Snapshot) WellVolume(position, well string) (float64, error) {
	for _, slot := range s.Deck {
		if slot.Position != position {
			continue
		}
		if slot.WellVolumes == nil {
			return 0, fmt.Errorf("position %s holds no liquid container", position)
		}
		row, col, err := model.ParseWell(well)
		if err != nil {
			return 0, err
		}
		if row >= slot.Rows || col >= slot.Cols {
			return 0, fmt.Errorf("well %s out of range at %s", well, position)
		}
		return slot.WellVolumes[row*slot.Cols+col], nil
	}
	return 0, fmt.Errorf("position %s not in snapshot", position)
}
