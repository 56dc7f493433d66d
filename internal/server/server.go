package server

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/config"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
)

//go:embed templates/index.html
var indexTemplate string

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second // Maximum duration for reading the entire request
	DefaultWriteTimeout = 15 * time.Second // Maximum duration before timing out writes of the response
	DefaultIdleTimeout  = 60 * time.Second // Maximum amount of time to wait for the next request
)

// PollerStatus is the view of one poll loop the server needs to answer
// readiness and render the index page.
type PollerStatus interface {
	Name() string
	Healthy() bool
	LastPoll() time.Time
	LastError() error
}

// pollerRow holds template data for one poller on the index page
type pollerRow struct {
	Name     string
	State    string
	LastPoll string
}

// indexPageData holds template data for the index page
type indexPageData struct {
	StatusClass string
	StatusText  string
	Pollers     []pollerRow
}

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	statuses []PollerStatus
	cfg      *config.Config
	logger   *logger.Logger
}

// NewServer creates a new HTTP server exposing reg and the given poll loops
func NewServer(cfg *config.Config, reg *prometheus.Registry, statuses []PollerStatus, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:      mux,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		statuses: statuses,
		cfg:      cfg,
		logger:   log,
	}

	// Register handlers
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// ready reports whether every poller has completed a successful pass
func (s *Server) ready() bool {
	for _, status := range s.statuses {
		if !status.Healthy() {
			return false
		}
	}
	return true
}

// handleIndex serves a simple landing page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Parse template
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		s.logger.Error("Failed to parse index template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Prepare template data
	data := indexPageData{
		StatusClass: "not-ready",
		StatusText:  "Not Ready",
	}
	if s.ready() {
		data.StatusClass = "ready"
		data.StatusText = "Ready"
	}
	for _, status := range s.statuses {
		row := pollerRow{Name: status.Name(), State: "ok", LastPoll: "Never"}
		if last := status.LastPoll(); last.IsZero() {
			row.State = "waiting"
		} else {
			row.LastPoll = last.Format("2006-01-02 15:04:05 MST")
			if status.LastError() != nil {
				row.State = "failing"
			}
		}
		data.Pollers = append(data.Pollers, row)
	}

	// Execute template
	w.Header().Set("Content-Type", "text/html")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to execute index template", "error", err)
	}
}

// handleHealth handles health check requests (always returns 200 for liveness)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// handleReady handles readiness check requests (returns 200 only when every
// poller has a successful pass behind it)
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	for _, status := range s.statuses {
		if status.Healthy() {
			continue
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		var err error
		if lastErr := status.LastError(); lastErr != nil {
			_, err = fmt.Fprintf(w, `{"status":"not ready","poller":%q,"error":%q}`, status.Name(), lastErr.Error())
		} else {
			_, err = fmt.Fprintf(w, `{"status":"not ready","poller":%q,"message":"waiting for first successful poll"}`, status.Name())
		}
		if err != nil {
			s.logger.Error("Failed to write ready response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ready"}`)); err != nil {
		s.logger.Error("Failed to write ready response", "error", err)
	}
}
