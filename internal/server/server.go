package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/harun/relay/internal/metrics"
	"github.com/harun/relay/pkg/agentset"
	"github.com/harun/relay/pkg/runstore"
)

// Options configures the HTTP API server
type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	MaxBodyBytes       int64
	RateLimitPerMinute int  // 0 disables rate limiting
	TrustProxy         bool // take the client address from X-Forwarded-For / X-Real-IP
	ServiceName        string
}

// Server exposes the router and orchestrators of an agent set over HTTP
type Server struct {
	options     Options
	agents      *agentset.AgentSet
	store       runstore.Store
	metrics     *metrics.Metrics
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startTime   time.Time
	handler     http.Handler
}

// NewServer creates a server. store and m may be nil, which disables run history
// and the /metrics endpoint respectively.
func NewServer(options Options, agents *agentset.AgentSet, store runstore.Store, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if agents == nil {
		return nil, errors.New("agent set is required")
	}

	if options.Port == 0 {
		options.Port = 8080
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 15 * time.Second
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 1 << 20
	}
	if options.ServiceName == "" {
		options.ServiceName = "relay"
	}

	s := &Server{
		options:   options,
		agents:    agents,
		store:     store,
		metrics:   m,
		logger:    logger.With().Str("component", "server").Logger(),
		startTime: time.Now(),
	}
	if options.RateLimitPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(options.RateLimitPerMinute)
	}
	s.handler = s.routes()

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/agents", s.handleAgents)
	mux.HandleFunc("POST /v1/handoff", s.handleHandoff)
	mux.HandleFunc("POST /v1/sequential", s.handleSequential)
	mux.HandleFunc("POST /v1/parallel", s.handleParallel)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.instrument(h)
	h = s.requestContext(h)
	return otelhttp.NewHandler(h, s.options.ServiceName)
}

// Run serves until ctx is cancelled, then drains in-flight requests within the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.rateLimiter != nil {
		defer s.rateLimiter.Stop()
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("agents", s.agents.Registry.Len()).
		Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
