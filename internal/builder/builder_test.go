package builder

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/maestro-ngs/maestro/internal/document"
	"github.com/maestro-ngs/maestro/internal/model"
)

const (
	mainID  = "3AC47C04-DCCE-4036-8F9F-6AD7D530E220"
	washID  = "9DC99ADE-3702-4D6A-A34C-489E64D46183"
	plateID = "BB37AAC5-102D-4367-B1BA-98B7D1E47EF0"
	boxID   = "68A3020C-9427-4E0E-9235-F8A40FF66969"
)

// testDocument builds a well-formed document with one plate, one tip box,
// and two methods. Tests mutate it to provoke specific build errors.
func testDocument() *document.Node {
	plate := document.New("Labware").
		Set("Type", cty.StringVal("Plate")).
		Set("ID", cty.StringVal(plateID)).
		Set("Name", cty.StringVal("SamplePlate")).
		Set("Rows", cty.NumberIntVal(8)).
		Set("Columns", cty.NumberIntVal(12)).
		Set("WellCapacity", cty.NumberIntVal(200)).
		Set("InitialVolume", cty.NumberIntVal(100))

	box := document.New("Labware").
		Set("Type", cty.StringVal("TipBox")).
		Set("ID", cty.StringVal(boxID)).
		Set("Name", cty.StringVal("Tips200")).
		Set("Rows", cty.NumberIntVal(8)).
		Set("Columns", cty.NumberIntVal(12))

	deck := document.New("DeckLayout").Add(
		document.New("Position").Set("Name", cty.StringVal("C3")).Set("Labware", cty.StringVal(boxID)),
		document.New("Position").Set("Name", cty.StringVal("C4")).Set("Labware", cty.StringVal(plateID)),
		document.New("Position").Set("Name", cty.StringVal("B4")),
	)

	main := document.New("Method").
		Set("Name", cty.StringVal("Main")).
		Set("ID", cty.StringVal(mainID)).
		Add(
			document.New("TipPickup").Set("Position", cty.StringVal("C3")),
			document.New("Aspirate").
				Set("Position", cty.StringVal("C4")).
				Set("Well", cty.StringVal("A1")).
				Set("Volume", cty.NumberIntVal(50)),
			document.New("MethodCall").Set("Method", cty.StringVal("Wash")),
		)

	wash := document.New("Method").
		Set("Name", cty.StringVal("Wash")).
		Set("ID", cty.StringVal(washID)).
		Add(
			document.New("Wash").
				Set("Position", cty.StringVal("C4")).
				Set("Seconds", cty.NumberIntVal(30)),
		)

	app := document.New("Application").
		Set("Name", cty.StringVal("Pipette and Mix")).
		Set("StartupMethod", cty.StringVal(mainID)).
		Add(
			document.New("LabwareLibrary").Add(plate, box),
			deck,
			document.New("Methods").Add(main, wash),
		)

	return document.New("ExportedApplication").
		Set("Version", cty.StringVal("6.8")).
		Set("Build", cty.NumberIntVal(3)).
		Add(app)
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, kind, buildErr.Kind, "got %v", err)
}

func TestBuildWellFormed(t *testing.T) {
	app, err := Build(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Equal(t, "Pipette and Mix", app.Name())
	assert.Equal(t, model.Version{Major: 6, Minor: 8, Build: 3}, app.Version())
	assert.Equal(t, "Main", app.StartupMethod())

	main, err := app.MethodByName("Main")
	require.NoError(t, err)
	want := []model.Step{
		model.TipPickup{Position: "C3"},
		model.Aspirate{Position: "C4", Well: "A1", Volume: 50},
		model.MethodCall{Method: "Wash"},
	}
	if diff := cmp.Diff(want, main.Steps()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	wash, err := app.MethodByName("Wash")
	require.NoError(t, err)
	steps := wash.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, model.Wash{Position: "C4", Duration: 30 * time.Second}, steps[0])

	lw, err := app.LabwareAt("C4")
	require.NoError(t, err)
	assert.Equal(t, "SamplePlate", lw.Name())
}

func TestBuildUnsupportedVersion(t *testing.T) {
	doc := testDocument()
	doc.Set("Version", cty.StringVal("7.0"))

	_, err := Build(context.Background(), doc)
	requireKind(t, err, UnsupportedVersion)
}

func TestBuildMissingVolume(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	aspirate := methods.Children[0].Children[1]
	delete(aspirate.Fields, "Volume")

	_, err := Build(context.Background(), doc)
	requireKind(t, err, MissingField)
}

func TestBuildUnknownMethodReference(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	call := methods.Children[0].Children[2]
	call.Set("Method", cty.StringVal("Wash2"))

	_, err := Build(context.Background(), doc)
	requireKind(t, err, UnresolvedReference)
}

func TestBuildUndeclaredPosition(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	pickup := methods.Children[0].Children[0]
	pickup.Set("Position", cty.StringVal("Z9"))

	_, err := Build(context.Background(), doc)
	requireKind(t, err, UnresolvedReference)
}

func TestBuildCyclicMethodCall(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	// Wash calls Main, closing a Main -> Wash -> Main cycle.
	methods.Children[1].Add(
		document.New("MethodCall").Set("Method", cty.StringVal("Main")),
	)

	_, err := Build(context.Background(), doc)
	requireKind(t, err, CyclicMethodCall)
}

func TestBuildSelfRecursion(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	methods.Children[1].Add(
		document.New("MethodCall").Set("Method", cty.StringVal("Wash")),
	)

	_, err := Build(context.Background(), doc)
	requireKind(t, err, CyclicMethodCall)
}

func TestBuildMalformedStep(t *testing.T) {
	t.Run("unknown step kind", func(t *testing.T) {
		doc := testDocument()
		methods, _ := doc.Children[0].FirstChild("Methods")
		methods.Children[0].Add(document.New("Centrifuge"))
		_, err := Build(context.Background(), doc)
		requireKind(t, err, MalformedStep)
	})

	t.Run("bad well label", func(t *testing.T) {
		doc := testDocument()
		methods, _ := doc.Children[0].FirstChild("Methods")
		methods.Children[0].Children[1].Set("Well", cty.StringVal("99"))
		_, err := Build(context.Background(), doc)
		requireKind(t, err, MalformedStep)
	})

	t.Run("loop count out of range", func(t *testing.T) {
		doc := testDocument()
		methods, _ := doc.Children[0].FirstChild("Methods")
		methods.Children[0].Add(
			document.New("Loop").Set("Count", cty.NumberIntVal(-1)),
		)
		_, err := Build(context.Background(), doc)
		requireKind(t, err, MalformedStep)
	})

	t.Run("non-numeric volume", func(t *testing.T) {
		doc := testDocument()
		methods, _ := doc.Children[0].FirstChild("Methods")
		methods.Children[0].Children[1].Set("Volume", cty.StringVal("plenty"))
		_, err := Build(context.Background(), doc)
		requireKind(t, err, MalformedStep)
	})
}

func TestBuildMalformedLabware(t *testing.T) {
	doc := testDocument()
	lib, _ := doc.Children[0].FirstChild("LabwareLibrary")
	lib.Children[0].Set("Rows", cty.NumberIntVal(0))

	_, err := Build(context.Background(), doc)
	requireKind(t, err, MalformedLabware)
}

func TestBuildStartupMustResolve(t *testing.T) {
	doc := testDocument()
	doc.Children[0].Set("StartupMethod", cty.StringVal("11111111-2222-3333-4444-555555555555"))

	_, err := Build(context.Background(), doc)
	requireKind(t, err, UnresolvedReference)
}

func TestBuildLoopBody(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	methods.Children[1].Add(
		document.New("Loop").Set("Count", cty.NumberIntVal(3)).Add(
			document.New("Shake").
				Set("Position", cty.StringVal("C4")).
				Set("Seconds", cty.NumberIntVal(10)).
				Set("RPM", cty.NumberIntVal(1200)),
		),
	)

	app, err := Build(context.Background(), doc)
	require.NoError(t, err)

	wash, err := app.MethodByName("Wash")
	require.NoError(t, err)
	steps := wash.Steps()
	require.Len(t, steps, 2)
	loop, ok := steps[1].(model.Loop)
	require.True(t, ok)
	assert.Equal(t, 3, loop.Count)
	require.Len(t, loop.Body, 1)
	assert.Equal(t, model.StepShake, loop.Body[0].Kind())
}

func TestBuildPositionInsideLoopValidated(t *testing.T) {
	doc := testDocument()
	methods, _ := doc.Children[0].FirstChild("Methods")
	methods.Children[1].Add(
		document.New("Loop").Set("Count", cty.NumberIntVal(2)).Add(
			document.New("Wash").
				Set("Position", cty.StringVal("Z1")).
				Set("Seconds", cty.NumberIntVal(5)),
		),
	)

	_, err := Build(context.Background(), doc)
	requireKind(t, err, UnresolvedReference)
}
