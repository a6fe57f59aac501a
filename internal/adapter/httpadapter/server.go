package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/dashboard"
	"github.com/couchcryptid/brevet-tracker/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dashboard serves the read models behind the API.
type Dashboard interface {
	Riders(ctx context.Context) (dashboard.Board, error)
	Rider(ctx context.Context, riderNo string) (dashboard.RiderDetail, error)
	Updates(ctx context.Context) (dashboard.UpdatesView, error)
	Route() []domain.Control
	Weather(ctx context.Context, control string) (dashboard.ControlWeatherView, error)
}

// Refresher forces an immediate feed refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server exposes the tracker API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	board      Dashboard
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /api routes, /healthz, /readyz, and /metrics.
func NewServer(addr string, ready sharedobs.ReadinessChecker, board Dashboard, refresher Refresher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		board:     board,
		refresher: refresher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/riders", s.handleRiders)
	mux.HandleFunc("GET /api/riders/{riderNo}", s.handleRider)
	mux.HandleFunc("GET /api/updates", s.handleUpdates)
	mux.HandleFunc("GET /api/route", s.handleRoute)
	mux.HandleFunc("GET /api/weather/{control}", s.handleWeather)
	mux.HandleFunc("GET /api/standings.xlsx", s.handleStandings)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
