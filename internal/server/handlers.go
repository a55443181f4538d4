package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/runstore"
)

// HandoffRequest starts a routing session. StartAgent defaults to the agent set's start agent.
type HandoffRequest struct {
	Input      string `json:"input"`
	StartAgent string `json:"start_agent,omitempty"`
}

// SequentialRequest runs the configured pipeline
type SequentialRequest struct {
	Input string `json:"input"`
}

// ParallelRequest runs the configured fan-out, optionally with another aggregation strategy
type ParallelRequest struct {
	Input    string `json:"input"`
	Strategy string `json:"strategy,omitempty"`
}

// AgentsResponse describes the served agent set
type AgentsResponse struct {
	Agents     []string `json:"agents"`
	StartAgent string   `json:"start_agent"`
	MaxDepth   int      `json:"max_depth"`
	Sequential []string `json:"sequential"`
	Parallel   []string `json:"parallel"`
	Strategy   string   `json:"strategy"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"agents":    s.agents.Registry.Len(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	resp := AgentsResponse{
		Agents:     s.agents.Registry.Names(),
		StartAgent: s.agents.StartAgent,
		MaxDepth:   s.agents.Router.MaxDepth(),
		Strategy:   s.agents.Parallel.Strategy(),
	}
	for _, a := range s.agents.Sequential.Agents() {
		resp.Sequential = append(resp.Sequential, a.Name())
	}
	for _, a := range s.agents.Parallel.Agents() {
		resp.Parallel = append(resp.Parallel, a.Name())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Run endpoints answer 200 with the result whenever the run executed, whether or
// not it succeeded; success and error_kind are in the body.

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var req HandoffRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := req.StartAgent
	if start == "" {
		start = s.agents.StartAgent
	}

	result := s.agents.Router.RunWithHandoff(r.Context(), start, req.Input)
	s.persist(r.Context(), func() (*runstore.RunRecord, error) {
		return runstore.FromHandoff(req.Input, result)
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSequential(w http.ResponseWriter, r *http.Request) {
	var req SequentialRequest
	if !s.decode(w, r, &req) {
		return
	}

	result := s.agents.Sequential.Run(r.Context(), req.Input)
	s.persist(r.Context(), func() (*runstore.RunRecord, error) {
		return runstore.FromOrchestration(req.Input, result)
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleParallel(w http.ResponseWriter, r *http.Request) {
	var req ParallelRequest
	if !s.decode(w, r, &req) {
		return
	}

	parallel, err := s.agents.ParallelWith(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := parallel.Run(r.Context(), req.Input)
	s.persist(r.Context(), func() (*runstore.RunRecord, error) {
		return runstore.FromOrchestration(req.Input, result)
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
		limit = n
	}

	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if records == nil {
		records = []*runstore.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, runstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runstore.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to load run")
		writeError(w, http.StatusInternalServerError, "failed to load run")
	default:
		writeJSON(w, http.StatusOK, record)
	}
}

// decode reads a JSON body into v, writing a 4xx response and returning false on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

// persist saves a finished run. A storage failure is logged and does not fail the request.
func (s *Server) persist(ctx context.Context, build func() (*runstore.RunRecord, error)) {
	if s.store == nil {
		return
	}
	record, err := build()
	if err == nil {
		err = s.store.Save(tracing.Detach(ctx), record)
	}
	if err != nil {
		logger := tracing.PropagateToLogger(ctx, s.logger)
		logger.Error().Err(err).Msg("Failed to save run")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
