// Package explorer serves a loaded application over HTTP as JSON, so deck
// layouts, method listings and simulation traces can be inspected without
// the instrument software. It is a read-only surface: every request is
// answered from the immutable application model.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maestro-ngs/maestro/internal/ctxlog"
	"github.com/maestro-ngs/maestro/internal/emulator"
	"github.com/maestro-ngs/maestro/internal/query"
)

// Server answers HTTP requests from a query service.
type Server struct {
	logger  *slog.Logger
	service *query.Service
}

// NewServer creates a Server around an already loaded application.
func NewServer(logger *slog.Logger, service *query.Service) *Server {
	return &Server{logger: logger, service: service}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/methods", s.handleMethods)
	mux.HandleFunc("GET /api/methods/{name}", s.handleMethod)
	mux.HandleFunc("GET /api/layout", s.handleLayout)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Explorer server starting.", "address", fmt.Sprintf("http://localhost%s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down explorer server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Explorer server shutdown failed.", "error", err)
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Info())
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.ListMethods())
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.Method(r.PathValue("name"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.DeckLayout())
}

// traceResponse is the wire form of a finished simulation.
type traceResponse struct {
	Entry  string       `json:"entry"`
	State  string       `json:"state"`
	Steps  int          `json:"steps"`
	Events []traceEvent `json:"events"`
}

type traceEvent struct {
	Index     int          `json:"index"`
	Method    string       `json:"method"`
	StepIndex int          `json:"step_index"`
	Iteration int          `json:"iteration,omitempty"`
	Kind      string       `json:"kind"`
	Status    string       `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Elapsed   string       `json:"elapsed"`
	Note      string       `json:"note,omitempty"`
	Deltas    []traceDelta `json:"deltas,omitempty"`
}

type traceDelta struct {
	Resource string `json:"resource"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.WithLogger(r.Context(), s.logger)

	entry := r.URL.Query().Get("method")
	if entry == "" {
		entry = s.service.Info().Startup
	}
	if entry == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("no entry method: pass ?method= or define a startup method"))
		return
	}

	result, err := s.service.Simulate(ctx, entry)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTraceResponse(result.Trace))
	s.logger.Debug("Simulation served.", "entry", entry, "state", result.Trace.FinalState().String())
}

func toTraceResponse(trace *emulator.Trace) traceResponse {
	resp := traceResponse{
		Entry: trace.Entry(),
		State: trace.FinalState().String(),
		Steps: trace.Len(),
	}
	for _, e := range trace.Events() {
		te := traceEvent{
			Index:     e.Index,
			Method:    e.Method,
			StepIndex: e.StepIndex,
			Iteration: e.Iteration,
			Kind:      string(e.Kind),
			Status:    e.Outcome.Status.String(),
			Reason:    e.Outcome.Reason,
			Elapsed:   e.Elapsed.String(),
			Note:      e.Note,
		}
		for _, d := range e.Deltas {
			te.Deltas = append(te.Deltas, traceDelta{Resource: d.Resource, Before: d.Before, After: d.After})
		}
		resp.Events = append(resp.Events, te)
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response.", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
