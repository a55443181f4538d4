package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/relay/internal/metrics"
	"github.com/harun/relay/pkg/agentset"
	"github.com/harun/relay/pkg/orchestrator"
	"github.com/harun/relay/pkg/runstore"
)

const supportDesk = `
agents:
  - name: triage
    delegate_to: billing
    reason: billing issue
  - name: billing
    answer: "resolved: {{input}}"
  - name: support
    answer: "support here"
  - name: ping
    delegate_to: pong
  - name: pong
    delegate_to: ping
handoff:
  start: triage
sequential:
  agents: [billing, support]
parallel:
  agents: [billing, support]
  strategy: merge
`

type fixture struct {
	server  *Server
	store   runstore.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	loader, err := agentset.NewLoader(nil)
	require.NoError(t, err)
	def, err := loader.Parse([]byte(supportDesk), agentset.FormatYAML)
	require.NoError(t, err)

	m := metrics.NewMetrics()
	set, err := agentset.Build(def, agentset.BuildOptions{Observer: m.Observer()})
	require.NoError(t, err)

	store, err := runstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv, err := NewServer(opts, set, store, m, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{server: srv, store: store, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	t.Run("requires an agent set", func(t *testing.T) {
		_, err := NewServer(Options{}, nil, nil, nil, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t, Options{})
		assert.Equal(t, "127.0.0.1:8080", f.server.Addr())
		assert.Equal(t, int64(1<<20), f.server.options.MaxBodyBytes)
		assert.Nil(t, f.server.rateLimiter)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	w := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 5.0, body["agents"])
}

func TestAgents(t *testing.T) {
	f := newFixture(t, Options{})
	w := f.do(t, http.MethodGet, "/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp AgentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"triage", "billing", "support", "ping", "pong"}, resp.Agents)
	assert.Equal(t, "triage", resp.StartAgent)
	assert.Equal(t, []string{"billing", "support"}, resp.Parallel)
	assert.Equal(t, "merge", resp.Strategy)
}

func TestHandoffEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	t.Run("default start agent", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/handoff", `{"input": "invoice 42"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var result orchestrator.HandoffResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, "billing", result.ExecutedByAgent)
		assert.Equal(t, "resolved: invoice 42", result.FinalResponse.FinalAnswer)
		require.Len(t, result.Chain, 1)
		assert.Equal(t, "triage", result.Chain[0].FromAgent)

		saved, err := f.store.Get(context.Background(), result.RunID)
		require.NoError(t, err)
		assert.Equal(t, "handoff", saved.Mode)
		assert.Equal(t, "invoice 42", saved.Input)
	})

	t.Run("failed run is still 200", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/handoff", `{"input": "x", "start_agent": "ping"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var result orchestrator.HandoffResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.False(t, result.Success)
		assert.Equal(t, orchestrator.KindCycleDetected, result.ErrorKind)
	})

	t.Run("unknown start agent", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/handoff", `{"input": "x", "start_agent": "ghost"}`)
		var result orchestrator.HandoffResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, orchestrator.KindUnknownAgent, result.ErrorKind)
		assert.Empty(t, result.Chain)
	})
}

func TestSequentialEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	w := f.do(t, http.MethodPost, "/v1/sequential", `{"input": "q"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result orchestrator.OrchestratorResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, orchestrator.ModeSequential, result.Mode)
	assert.Equal(t, "support here", result.FinalOutput)
	require.Len(t, result.AgentResults, 2)
	assert.Equal(t, "resolved: q", result.AgentResults[1].Input)
}

func TestParallelEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	t.Run("configured strategy", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/parallel", `{"input": "q"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var result orchestrator.OrchestratorResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, "[billing]: resolved: q\n\n[support]: support here", result.FinalOutput)
	})

	t.Run("strategy override", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/parallel", `{"input": "q", "strategy": "first_success"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var result orchestrator.OrchestratorResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "resolved: q", result.FinalOutput)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/parallel", `{"input": "q", "strategy": "majority"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown aggregation strategy")
	})
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, Options{MaxBodyBytes: 64})

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"empty body", "", http.StatusBadRequest, "request body is required"},
		{"malformed json", "{", http.StatusBadRequest, "invalid request body"},
		{"unknown field", `{"prompt": "x"}`, http.StatusBadRequest, "unknown field"},
		{"too large", `{"input": "` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/handoff", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/handoff", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestRunsEndpoints(t *testing.T) {
	f := newFixture(t, Options{})

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/handoff", `{"input": "q"}`).Code)
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("list with limit", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/runs?limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)

		var records []runstore.RunRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.True(t, !records[0].StartedAt.Before(records[1].StartedAt))
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/runs?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		list := f.do(t, http.MethodGet, "/v1/runs?limit=1", "")
		var records []runstore.RunRecord
		require.NoError(t, json.Unmarshal(list.Body.Bytes(), &records))
		require.Len(t, records, 1)

		w := f.do(t, http.MethodGet, "/v1/runs/"+records[0].ID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var record runstore.RunRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, records[0].ID, record.ID)

		var result orchestrator.HandoffResult
		require.NoError(t, json.Unmarshal(record.Result, &result))
		assert.Equal(t, "billing", result.ExecutedByAgent)
	})

	t.Run("missing id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/runs/does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/runs/a..b", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunsWithoutStore(t *testing.T) {
	f := newFixture(t, Options{})
	f.server.store = nil

	w := f.do(t, http.MethodGet, "/v1/runs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/v1/handoff", `{"input": "q"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	f.do(t, http.MethodPost, "/v1/handoff", `{"input": "q"}`)

	w := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "relay_handoffs_total")

	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "POST /v1/handoff", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("handoff", "success")))
}

func TestRequestIDPassthrough(t *testing.T) {
	f := newFixture(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestRunsCarryRequestTraceID(t *testing.T) {
	f := newFixture(t, Options{})

	first := f.do(t, http.MethodPost, "/v1/handoff", `{"input":"refund"}`)
	second := f.do(t, http.MethodPost, "/v1/handoff", `{"input":"refund"}`)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b orchestrator.HandoffResult
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
	assert.NotEqual(t, first.Header().Get(requestIDHeader), second.Header().Get(requestIDHeader))
}

func TestRateLimitMiddleware(t *testing.T) {
	f := newFixture(t, Options{RateLimitPerMinute: 2})
	defer f.server.rateLimiter.Stop()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/agents", "").Code)
	}

	w := f.do(t, http.MethodGet, "/v1/agents", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code, "health checks are exempt")
}

func TestRateLimitIgnoresSpoofedForwarding(t *testing.T) {
	f := newFixture(t, Options{RateLimitPerMinute: 1})
	defer f.server.rateLimiter.Stop()

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.2"), "a new header value is still the same peer")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     map[string]string
		remote     string
		trustProxy bool
		want       string
	}{
		{"forwarded for behind proxy", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", true, "10.0.0.1"},
		{"real ip behind proxy", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", true, "10.0.0.3"},
		{"forwarded for without proxy", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "1.1.1.1:80", false, "1.1.1.1"},
		{"real ip without proxy", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", false, "1.1.1.1"},
		{"remote addr", nil, "192.168.1.5:5555", false, "192.168.1.5"},
		{"ipv6 remote addr", nil, "[::1]:5555", true, "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}

func TestServeStopsRateLimiterOnFailure(t *testing.T) {
	f := newFixture(t, Options{RateLimitPerMinute: 10})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = f.server.Serve(context.Background(), ln)
	require.Error(t, err)

	select {
	case <-f.server.rateLimiter.stopCleanup:
	default:
		t.Fatal("rate limiter cleanup still running after Serve returned")
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	f := newFixture(t, Options{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.server.Serve(ctx, ln)
	}()

	resp, err := http.Post("http://"+ln.Addr().String()+"/v1/handoff", "application/json",
		strings.NewReader(`{"input": "live"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
