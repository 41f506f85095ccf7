package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shipgate/internal/graphql"
	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// Server is the HTTP server for the shipping gateway.
type Server struct {
	port            int
	shutdownTimeout time.Duration
	gateway         *gateway.Gateway
	executor        *graphql.Executor
	gatherer        prometheus.Gatherer
	logger          *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// New creates a new server instance. Metrics are served from gatherer.
func New(cfg Config, gw *gateway.Gateway, executor *graphql.Executor, gatherer prometheus.Gatherer, logger *otelzap.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:            cfg.Port,
		shutdownTimeout: cfg.ShutdownTimeout,
		gateway:         gw,
		executor:        executor,
		gatherer:        gatherer,
		logger:          logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// GraphQL endpoint
	mux.HandleFunc("/graphql", s.handleGraphQL)

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type healthResponse struct {
	Status   string          `json:"status"`
	Carriers []carrierHealth `json:"carriers"`
}

type carrierHealth struct {
	Carrier   string     `json:"carrier"`
	State     string     `json:"state"`
	LastProbe *time.Time `json:"last_probe,omitempty"`
	LatencyMs int64      `json:"latency_ms"`
	LastError string     `json:"last_error,omitempty"`
	Requests  int64      `json:"requests"`
}

// handleHealth always answers 200: carrier health is advisory and never
// takes the gateway out of rotation.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.gateway.Health(r.Context())
	resp := healthResponse{Status: "ok", Carriers: make([]carrierHealth, 0, len(statuses))}
	for _, st := range statuses {
		ch := carrierHealth{
			Carrier:   st.Carrier,
			State:     string(st.State),
			LatencyMs: st.Latency.Milliseconds(),
			LastError: st.LastError,
			Requests:  st.Requests,
		}
		if !st.LastProbe.IsZero() {
			probe := st.LastProbe
			ch.LastProbe = &probe
		}
		resp.Carriers = append(resp.Carriers, ch)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, graphql.Response{
			Errors: gqlerror.List{gqlerror.Errorf("Method not allowed, use POST")},
		})
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, graphql.Response{
			Errors: gqlerror.List{gqlerror.Errorf("Invalid JSON: %s", err)},
		})
		return
	}

	resp := s.executor.Execute(r.Context(), req)

	// Document and variable errors are client errors; field errors still
	// carry partial data with a 200.
	status := http.StatusOK
	if resp.Data == nil && len(resp.Errors) > 0 {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}
