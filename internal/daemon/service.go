// Package daemon provides the long-running budget maintenance service: it
// watches for local day rollovers, sweeps budget cycles, and serves a small
// HTTP API for status and manual triggers.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/envelhq/envel/internal/budget"
	"github.com/envelhq/envel/internal/model"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr          string
	WatchInterval time.Duration
	SweepOnStart  bool
}

// Status is served at /v1/status.
type Status struct {
	StartedAt     time.Time          `json:"started_at"`
	Today         model.Date         `json:"today"`
	LastSweepAt   time.Time          `json:"last_sweep_at,omitempty"`
	SweepCount    int64              `json:"sweep_count"`
	LastError     string             `json:"last_error,omitempty"`
	LastSweep     budget.SweepResult `json:"last_sweep"`
	ActiveBudgets int                `json:"active_budgets"`
	ReservedTotal float64            `json:"reserved_total"`
	ReplicaLinked bool               `json:"replica_linked"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	engine *budget.Engine
	log    zerolog.Logger

	registry *prometheus.Registry
	metrics  metrics

	mu         sync.RWMutex
	startedAt  time.Time
	lastSweep  time.Time
	sweepCount int64
	lastError  string
	lastResult budget.SweepResult
}

type metrics struct {
	sweepsTotal       prometheus.Counter
	sweepErrorsTotal  prometheus.Counter
	materializedTotal prometheus.Counter
	cyclesCreated     prometheus.Counter
	cyclesClosed      prometheus.Counter
	activeBudgets     prometheus.Gauge
	reservedTotal     prometheus.Gauge
}

// New returns a new daemon service over the engine.
func New(engine *budget.Engine, cfg Config, log zerolog.Logger) *Service {
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = budget.DefaultWatchInterval
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7480"
	}

	reg := prometheus.NewRegistry()
	m := metrics{
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envel_sweeps_total",
			Help: "Completed budget sweep runs.",
		}),
		sweepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envel_sweep_errors_total",
			Help: "Sweep runs that reported an error.",
		}),
		materializedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envel_materialized_transactions_total",
			Help: "Ledger transactions emitted by the materializer.",
		}),
		cyclesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envel_cycles_created_total",
			Help: "Budget cycles opened by sweeps.",
		}),
		cyclesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envel_cycles_closed_total",
			Help: "Budget cycles closed by sweeps.",
		}),
		activeBudgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envel_active_budgets",
			Help: "Currently active budget records.",
		}),
		reservedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envel_reserved_total",
			Help: "Total virtual reservation as of today.",
		}),
	}
	reg.MustRegister(
		m.sweepsTotal, m.sweepErrorsTotal, m.materializedTotal,
		m.cyclesCreated, m.cyclesClosed, m.activeBudgets, m.reservedTotal,
	)

	return &Service{
		cfg:       cfg,
		engine:    engine,
		log:       log,
		registry:  reg,
		metrics:   m,
		startedAt: time.Now(),
	}
}

// Handler returns the daemon's HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/sweep", s.handleSweep)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// Run serves the HTTP API and sweeps on every local day rollover until ctx
// is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.cfg.SweepOnStart {
		s.sweepOnce(ctx)
	}

	stop := budget.WatchDayChange(s.cfg.WatchInterval, func(d model.Date) {
		s.log.Info().Str("date", d.String()).Msg("day changed, sweeping")
		s.sweepOnce(ctx)
	})
	defer stop()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("daemon http server: %w", err)
	}
}

func (s *Service) sweepOnce(ctx context.Context) budget.SweepResult {
	res, err := s.engine.Sweep(ctx)

	s.metrics.sweepsTotal.Inc()
	s.metrics.materializedTotal.Add(float64(res.Materialized))
	s.metrics.cyclesCreated.Add(float64(res.Created))
	s.metrics.cyclesClosed.Add(float64(res.Closed))
	s.metrics.activeBudgets.Set(float64(len(s.engine.ListActive())))
	s.metrics.reservedTotal.Set(res.ReservedTotal)

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.sweepCount++
	s.lastResult = res
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.sweepErrorsTotal.Inc()
		s.log.Error().Err(err).Msg("sweep failed")
	} else {
		s.log.Info().
			Int("created", res.Created).
			Int("closed", res.Closed).
			Int("materialized", res.Materialized).
			Float64("reserved_total", res.ReservedTotal).
			Msg("sweep complete")
	}
	return res
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:     s.startedAt,
		Today:         s.engine.Today(),
		LastSweepAt:   s.lastSweep,
		SweepCount:    s.sweepCount,
		LastError:     s.lastError,
		LastSweep:     s.lastResult,
		ActiveBudgets: len(s.engine.ListActive()),
		ReservedTotal: s.engine.ReservedTotal(s.engine.Today(), budget.ProjectionOptions{}),
		ReplicaLinked: s.engine.HasReplica(),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleSweep(w http.ResponseWriter, r *http.Request) {
	res := s.sweepOnce(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
