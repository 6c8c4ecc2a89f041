package explorer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ngs/maestro/internal/builder"
	"github.com/maestro-ngs/maestro/internal/explorer"
	"github.com/maestro-ngs/maestro/internal/hcldoc"
	"github.com/maestro-ngs/maestro/internal/query"
)

const protocol = `
application "Plate Prep" {
  version = "6.8"
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
    position "A1" { labware = "Tip Box 200" }
    position "B2" { labware = "Assay Plate" }
  }

  method "Main" {
    step "tip_pickup" { position = "A1" }
    step "aspirate" {
      position = "B2"
      well     = "A1"
      volume   = 50
    }
    step "tip_eject" { position = "A1" }
  }
}
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	doc, err := hcldoc.NewLoader().Parse(ctx, []byte(protocol), "protocol.hcl")
	require.NoError(t, err)
	app, err := builder.Build(ctx, doc)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := explorer.NewServer(logger, query.NewService(app))
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInfoEndpoint(t *testing.T) {
	ts := newTestServer(t)
	var info struct {
		Name    string
		Version string
		Startup string
		Methods int
	}
	getJSON(t, ts.URL+"/api/info", &info)
	assert.Equal(t, "Plate Prep", info.Name)
	assert.Equal(t, "Main", info.Startup)
	assert.Equal(t, 1, info.Methods)
}

func TestMethodEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var methods []struct {
		Name  string
		Steps int
	}
	getJSON(t, ts.URL+"/api/methods", &methods)
	require.Len(t, methods, 1)
	assert.Equal(t, "Main", methods[0].Name)
	assert.Equal(t, 3, methods[0].Steps)

	var detail struct {
		Name  string
		Steps []struct {
			Kind string
		}
	}
	getJSON(t, ts.URL+"/api/methods/Main", &detail)
	assert.Equal(t, "Main", detail.Name)
	require.Len(t, detail.Steps, 3)
	assert.Equal(t, "TipPickup", detail.Steps[0].Kind)

	resp, err := http.Get(ts.URL + "/api/methods/Nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLayoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	var layout []struct {
		Position string
		Labware  string
	}
	getJSON(t, ts.URL+"/api/layout", &layout)
	require.Len(t, layout, 2)
	assert.Equal(t, "A1", layout[0].Position)
	assert.Equal(t, "Tip Box 200", layout[0].Labware)
}

func TestSimulateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/simulate", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var trace struct {
		Entry  string `json:"entry"`
		State  string `json:"state"`
		Steps  int    `json:"steps"`
		Events []struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
		} `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trace))
	assert.Equal(t, "Main", trace.Entry)
	assert.Equal(t, "Completed", trace.State)
	require.Equal(t, 3, trace.Steps)
	assert.Equal(t, "TipPickup", trace.Events[0].Kind)
	assert.Equal(t, "Success", trace.Events[0].Status)
}

func TestSimulateUnknownMethod(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/simulate?method=Nope", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
