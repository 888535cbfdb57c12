package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/internal/allocation"
	"github.com/quantfolio/allocation-engine/internal/data"
	"github.com/quantfolio/allocation-engine/pkg/types"
)

// Server is the HTTP/WebSocket API server. It loads inputs at the data
// boundary, hands them to the engine, and keeps completed runs retrievable
// by ID.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	dataConfig types.DataConfig
	defaults   types.EngineDefaults
	baseConstraints types.PortfolioConstraints

	engine  *allocation.Engine
	store   *data.Store
	capital *data.CapitalSource
	kelly   *data.KellyBaseSource

	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	registry   *prometheus.Registry
	metrics    *Metrics
	runs       map[string]*types.RunReport
}

// NewServer creates an API server.
func NewServer(
	logger *zap.Logger,
	config *types.ServerConfig,
	dataConfig types.DataConfig,
	defaults types.EngineDefaults,
	constraints types.PortfolioConstraints,
	engine *allocation.Engine,
) *Server {
	// A per-server registry keeps metric registration from colliding when
	// more than one server lives in a process.
	registry := prometheus.NewRegistry()

	s := &Server{
		logger:          logger,
		config:          config,
		dataConfig:      dataConfig,
		defaults:        defaults,
		baseConstraints: constraints,
		engine:          engine,
		store:           data.NewStore(logger),
		capital:         data.NewCapitalSource(logger, defaults.FallbackCapital),
		kelly:           data.NewKellyBaseSource(logger, defaults.FallbackKellyBase),
		router:          mux.NewRouter(),
		hub:             NewHub(logger),
		registry:        registry,
		metrics:         NewMetrics(registry),
		runs:            make(map[string]*types.RunReport),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/sizing/run", s.handleRunSizing).Methods("POST")
	s.router.HandleFunc("/api/v1/sizing/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/v1/sizing/{id}", s.handleGetRun).Methods("GET")
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server and the WebSocket hub.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for additional handler registration.
func (s *Server) Router() *mux.Router {
	return s.router
}

// runRequest is the POST /sizing/run body. Constraint overrides are
// optional; zero values inherit the configured constraints.
type runRequest struct {
	Method                  string   `json:"method"` // "kelly" (default) or "dual"
	CVaRTarget              *float64 `json:"cvar_target,omitempty"`
	MaxPositionRisk         *float64 `json:"max_position_risk,omitempty"`
	CorrelationAdjustment   *float64 `json:"correlation_adjustment,omitempty"`
	KellyFraction           *float64 `json:"kelly_fraction,omitempty"`
	EfficientFrontierWeight *float64 `json:"efficient_frontier_weight,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleRunSizing(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	constraints := s.baseConstraints
	if req.CVaRTarget != nil {
		constraints.CVaRTarget = *req.CVaRTarget
	}
	if req.MaxPositionRisk != nil {
		constraints.MaxPositionRisk = *req.MaxPositionRisk
	}
	if req.CorrelationAdjustment != nil {
		constraints.CorrelationAdjustment = *req.CorrelationAdjustment
	}
	if req.KellyFraction != nil {
		constraints.KellyFraction = *req.KellyFraction
	}
	if req.EfficientFrontierWeight != nil {
		constraints.EfficientFrontierWeight = *req.EfficientFrontierWeight
	}
	if err := constraints.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	strategies, excluded, err := s.store.LoadMetrics(s.dataConfig.MetricsPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pool, _ := s.capital.Load(s.dataConfig.CapitalPath)
	kellyParams, _ := s.kelly.Load(s.dataConfig.KellyPath)

	input := allocation.Input{
		Strategies:  strategies,
		Capital:     pool,
		Kelly:       kellyParams,
		Constraints: constraints,
		Excluded:    excluded,
	}

	start := time.Now()
	var report *types.RunReport
	switch req.Method {
	case "", string(types.MethodKelly):
		report, err = s.engine.Run(r.Context(), input)
	case string(types.MethodDual):
		report, err = s.engine.RunDual(r.Context(), input)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.observeRun(report, time.Since(start))

	s.mu.Lock()
	s.runs[report.RunID] = report
	s.mu.Unlock()

	s.hub.BroadcastRunComplete(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) observeRun(report *types.RunReport, elapsed time.Duration) {
	s.metrics.RunsTotal.WithLabelValues(string(report.Method)).Inc()
	s.metrics.RunDuration.Observe(elapsed.Seconds())
	s.metrics.StrategiesSized.Add(float64(len(report.Results)))
	s.metrics.StrategiesExcluded.Add(float64(len(report.Excluded)))
	for _, source := range report.DegradedInputs {
		s.metrics.DegradedInputs.WithLabelValues(source).Inc()
	}
	if report.FrontierFallback {
		s.metrics.FrontierFallbacks.Inc()
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	report, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": ids})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(s.upgrader, w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
