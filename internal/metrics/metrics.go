package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"QuoteKeeper/internal/model"
)

// Metrics holds all Prometheus metrics of the ingest pipeline.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: result=ok|error
	RowsExtracted  prometheus.Counter
	RowsFailed     prometheus.Counter
	QuotesAdded    prometheus.Counter
	QuotesPruned   prometheus.Counter
	SourceFailures prometheus.Counter
	PersistTotal   *prometheus.CounterVec // labels: result=written|skipped
	RunDuration    prometheus.Histogram

	ResolverMisses  prometheus.Gauge
	StoreSecurities prometheus.Gauge
	StoreQuotes     prometheus.Gauge
	LastRun         prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotekeeper_runs_total",
			Help: "Ingest runs by result",
		}, []string{"result"}),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotekeeper_rows_extracted_total",
			Help: "Table rows recovered from fetched markup",
		}),
		RowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotekeeper_rows_failed_total",
			Help: "Extracted rows dropped during conversion",
		}),
		QuotesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotekeeper_quotes_added_total",
			Help: "Quotes inserted or replaced by merge",
		}),
		QuotesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotekeeper_quotes_pruned_total",
			Help: "Quotes removed by the retention window",
		}),
		SourceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotekeeper_source_failures_total",
			Help: "Exchange pages that could not be fetched",
		}),
		PersistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotekeeper_persist_total",
			Help: "Persist decisions by result",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quotekeeper_run_duration_seconds",
			Help:    "Wall time of an ingest run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ResolverMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotekeeper_resolver_misses",
			Help: "Display names without identifier in the last run",
		}),
		StoreSecurities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotekeeper_store_securities",
			Help: "Securities held after the last run",
		}),
		StoreQuotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotekeeper_store_quotes",
			Help: "Quotes held after the last run",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotekeeper_last_run_timestamp_seconds",
			Help: "Unix time the last ingest run finished",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RowsExtracted,
		m.RowsFailed,
		m.QuotesAdded,
		m.QuotesPruned,
		m.SourceFailures,
		m.PersistTotal,
		m.RunDuration,
		m.ResolverMisses,
		m.StoreSecurities,
		m.StoreQuotes,
		m.LastRun,
	)
	return m
}

// Observe records the outcome of a run. r may be partial when err is set.
func (m *Metrics) Observe(r *model.Report, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	if r == nil {
		return
	}
	m.RowsExtracted.Add(float64(r.RowsExtracted))
	m.RowsFailed.Add(float64(r.RowsFailed))
	m.QuotesAdded.Add(float64(r.Added))
	m.QuotesPruned.Add(float64(r.Pruned))
	m.SourceFailures.Add(float64(len(r.SourcesFailed)))
	if r.Persisted {
		m.PersistTotal.WithLabelValues("written").Inc()
	} else if err == nil {
		m.PersistTotal.WithLabelValues("skipped").Inc()
	}
	m.RunDuration.Observe(r.Duration.Seconds())
	m.ResolverMisses.Set(float64(len(r.Misses)))
	m.StoreSecurities.Set(float64(r.Securities))
	m.StoreQuotes.Set(float64(r.Quotes))
	m.LastRun.Set(float64(r.Started.Add(r.Duration).Unix()))
}

// HealthStatus tracks the last run for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt time.Time
	LastRun   time.Time
	LastError string
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetRun records when a run finished and how.
func (h *HealthStatus) SetRun(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastRun = at
	h.LastError = ""
	if err != nil {
		h.LastError = err.Error()
	}
}

// ServeHTTP handles the /healthz endpoint. The last run failing turns it to 503.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := struct {
		Status    string `json:"status"`
		Uptime    string `json:"uptime"`
		LastRun   string `json:"last_run,omitempty"`
		LastError string `json:"last_error,omitempty"`
	}{
		Status:    "healthy",
		Uptime:    time.Since(h.StartedAt).Round(time.Second).String(),
		LastError: h.LastError,
	}
	if !h.LastRun.IsZero() {
		status.LastRun = h.LastRun.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.LastError != "" {
		status.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("[WARN] encode health status: %v", err)
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server for the metrics in gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
