package hcldoc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ngs/maestro/internal/builder"
	"github.com/maestro-ngs/maestro/internal/hcldoc"
	"github.com/maestro-ngs/maestro/internal/model"
)

const protocol = `
application "Plate Prep" {
  version = "6.8"
  build   = 3
  startup = "Main"

  labware "plate" "Assay Plate" {
    rows           = 8
    cols           = 12
    well_capacity  = 200
    initial_volume = 100
  }

  labware "tipbox" "Tip Box 200" {
    rows = 8
    cols = 12
  }

  deck {
    position "A1" {
      labware = "Tip Box 200"
    }
    position "B2" {
      labware = "Assay Plate"
    }
    position "C3" {}
  }

  method "Main" {
    step "tip_pickup" {
      position = "A1"
    }
    step "aspirate" {
      position = "B2"
      well     = "A1"
      volume   = 50
    }
    step "loop" {
      count = 2
      step "mix" {
        position = "B2"
        well     = "A1"
        volume   = 20
        cycles   = 3
      }
    }
    step "tip_eject" {
      position = "A1"
    }
  }
}
`

func parse(t *testing.T, src string) (*model.Application, error) {
	t.Helper()
	ctx := context.Background()
	doc, err := hcldoc.NewLoader().Parse(ctx, []byte(src), "protocol.hcl")
	if err != nil {
		return nil, err
	}
	return builder.Build(ctx, doc)
}

func TestLoadProtocol(t *testing.T) {
	app, err := parse(t, protocol)
	require.NoError(t, err)

	assert.Equal(t, "Plate Prep", app.Name())
	assert.Equal(t, "6.8 (build 3)", app.Version().String())
	assert.Equal(t, "Main", app.StartupMethod())

	positions := app.Positions()
	require.Len(t, positions, 3)
	assert.Equal(t, "A1", positions[0].Name)
	assert.Equal(t, "Tip Box 200", positions[0].Labware.Name())
	assert.Nil(t, positions[2].Labware)

	main, err := app.MethodByName("Main")
	require.NoError(t, err)
	steps := main.Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, model.TipPickup{Position: "A1"}, steps[0])
	assert.Equal(t, model.Aspirate{Position: "B2", Well: "A1", Volume: 50}, steps[1])
	loop, ok := steps[2].(model.Loop)
	require.True(t, ok)
	assert.Equal(t, 2, loop.Count)
	require.Len(t, loop.Body, 1)
	assert.Equal(t, model.Mix{Position: "B2", Well: "A1", Volume: 20, Cycles: 3}, loop.Body[0])
}

func TestDerivedIDsAreStable(t *testing.T) {
	first, err := parse(t, protocol)
	require.NoError(t, err)
	second, err := parse(t, protocol)
	require.NoError(t, err)

	m1, _ := first.MethodByName("Main")
	m2, _ := second.MethodByName("Main")
	assert.Equal(t, m1.ID(), m2.ID())

	lw1, err := first.LabwareAt("B2")
	require.NoError(t, err)
	lw2, err := second.LabwareAt("B2")
	require.NoError(t, err)
	assert.Equal(t, lw1.ID(), lw2.ID())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protocol.hcl")
	require.NoError(t, os.WriteFile(path, []byte(protocol), 0o644))

	doc, err := hcldoc.NewLoader().LoadFile(context.Background(), path)
	require.NoError(t, err)
	app, err := builder.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Plate Prep", app.Name())
}

func TestRejectsUnknownStepKind(t *testing.T) {
	_, err := parse(t, `
application "Bad" {
  version = "6.8"
  method "Main" {
    step "teleport" {}
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step kind "teleport"`)
}

func TestRejectsUnknownAttribute(t *testing.T) {
	_, err := parse(t, `
application "Bad" {
  version = "6.8"
  method "Main" {
    step "aspirate" {
      position = "B2"
      volume   = 50
      speed    = 11
    }
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown attribute "speed"`)
}

func TestRejectsUnknownLabwareType(t *testing.T) {
	_, err := parse(t, `
application "Bad" {
  version = "6.8"
  labware "centrifuge" "Spinner" {}
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "centrifuge"`)
}

func TestRequiresSingleApplicationBlock(t *testing.T) {
	loader := hcldoc.NewLoader()
	_, err := loader.Parse(context.Background(), []byte(`version = 1`), "empty.hcl")
	require.Error(t, err)
}

func TestMissingGeometrySurfacesAsBuildError(t *testing.T) {
	_, err := parse(t, `
application "Bad" {
  version = "6.8"
  labware "plate" "No Geometry" {
    well_capacity = 200
  }
}
`)
	require.Error(t, err)
	var buildErr *builder.Error
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, builder.MissingField, buildErr.Kind)
}
