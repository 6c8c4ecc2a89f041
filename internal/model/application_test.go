package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	plateID = uuid.MustParse("BB37AAC5-102D-4367-B1BA-98B7D1E47EF0")
	boxID   = uuid.MustParse("3AC47C04-DCCE-4036-8F9F-6AD7D530E220")
)

func testApp(t *testing.T) *Application {
	t.Helper()
	app, err := NewApplication(Config{
		Name:    "Pipette and Mix",
		Version: Version{Major: 6, Minor: 8, Build: 3},
		Startup: "Main",
		Methods: []*Method{
			NewMethod(uuid.New(), "Main", []Step{
				TipPickup{Position: "C3"},
				Aspirate{Position: "C4", Well: "A1", Volume: 50},
			}),
			NewMethod(uuid.New(), "Wash", []Step{
				Wash{Position: "C4"},
			}),
		},
		Labware: []Labware{
			Plate{LabwareID: plateID, Label: "SamplePlate", Rows: 8, Cols: 12, Capacity: 200, Initial: 100},
			TipBox{LabwareID: boxID, Label: "Tips200", Rows: 8, Cols: 12},
		},
		Deck: map[string]uuid.UUID{
			"C3": boxID,
			"C4": plateID,
			"B4": uuid.Nil,
		},
	})
	require.NoError(t, err)
	return app
}

func TestMethodLookup(t *testing.T) {
	app := testApp(t)

	m, err := app.MethodByName("Main")
	require.NoError(t, err)
	assert.Equal(t, "Main", m.Name())
	assert.Equal(t, 2, m.Len())

	_, err = app.MethodByName("Elute")
	require.Error(t, err)
	var modelErr *Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, UnknownMethod, modelErr.Kind)
}

func TestDeckLookup(t *testing.T) {
	app := testApp(t)

	lw, err := app.LabwareAt("C3")
	require.NoError(t, err)
	assert.Equal(t, KindTipBox, lw.Kind())

	// Declared empty position.
	lw, err = app.LabwareAt("B4")
	require.NoError(t, err)
	assert.Nil(t, lw)

	_, err = app.LabwareAt("Z9")
	var modelErr *Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, UnknownPosition, modelErr.Kind)
}

func TestLabwareLookup(t *testing.T) {
	app := testApp(t)

	lw, err := app.LabwareByID(plateID)
	require.NoError(t, err)
	assert.Equal(t, "SamplePlate", lw.Name())

	_, err = app.LabwareByID(uuid.New())
	var modelErr *Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, UnknownLabware, modelErr.Kind)
}

func TestPositionsSorted(t *testing.T) {
	app := testApp(t)

	positions := app.Positions()
	require.Len(t, positions, 3)
	assert.Equal(t, "B4", positions[0].Name)
	assert.Equal(t, "C3", positions[1].Name)
	assert.Equal(t, "C4", positions[2].Name)
}

func TestStepsReturnsCopy(t *testing.T) {
	app := testApp(t)
	m, err := app.MethodByName("Main")
	require.NoError(t, err)

	steps := m.Steps()
	steps[0] = Comment{Text: "tampered"}

	again := m.Steps()
	assert.Equal(t, StepTipPickup, again[0].Kind())
}

func TestConfigValidation(t *testing.T) {
	base := func() Config {
		return Config{
			Startup: "Main",
			Methods: []*Method{NewMethod(uuid.New(), "Main", nil)},
			Labware: []Labware{TipBox{LabwareID: boxID, Label: "Tips", Rows: 8, Cols: 12}},
			Deck:    map[string]uuid.UUID{"C3": boxID},
		}
	}

	t.Run("dangling deck labware", func(t *testing.T) {
		cfg := base()
		cfg.Deck["C4"] = uuid.New()
		_, err := NewApplication(cfg)
		require.Error(t, err)
	})

	t.Run("duplicate method name", func(t *testing.T) {
		cfg := base()
		cfg.Methods = append(cfg.Methods, NewMethod(uuid.New(), "Main", nil))
		_, err := NewApplication(cfg)
		require.Error(t, err)
	})

	t.Run("missing startup method", func(t *testing.T) {
		cfg := base()
		cfg.Startup = "DoesNotExist"
		_, err := NewApplication(cfg)
		require.Error(t, err)
	})
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("6.8", 3)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 6, Minor: 8, Build: 3}, v)
	assert.Equal(t, "6.8 (build 3)", v.String())

	_, err = ParseVersion("six", 0)
	require.Error(t, err)
}

func TestParseWell(t *testing.T) {
	cases := []struct {
		label    string
		row, col int
		wantErr  bool
	}{
		{label: "A1", row: 0, col: 0},
		{label: "H12", row: 7, col: 11},
		{label: "b2", row: 1, col: 1},
		{label: "A0", wantErr: true},
		{label: "11", wantErr: true},
		{label: "A", wantErr: true},
		{label: "AX", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			row, col, err := ParseWell(tc.label)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.row, row)
			assert.Equal(t, tc.col, col)
		})
	}
}
