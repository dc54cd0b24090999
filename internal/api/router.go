// Package api exposes the tutoring session manager over HTTP.
package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/session"
)

// Server holds the dependencies shared by every handler
type Server struct {
	config   *config.Config
	manager  *session.Manager
	checks   []observability.HealthCheck
	validate *validator.Validate
	upgrader websocket.Upgrader
	origins  map[string]struct{}
	logger   zerolog.Logger
}

// NewServer creates the HTTP surface. checks feed the readiness endpoint.
func NewServer(cfg *config.Config, manager *session.Manager, checks ...observability.HealthCheck) *Server {
	s := &Server{
		config:   cfg,
		manager:  manager,
		checks:   checks,
		validate: newValidator(),
		origins:  make(map[string]struct{}),
		logger:   observability.WithComponent("api"),
	}
	for _, o := range cfg.AllowedOrigins() {
		s.origins[o] = struct{}{}
	}
	s.upgrader = s.newUpgrader()
	return s
}

// Handler returns the routed handler wrapped in CORS and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", observability.HealthCheckHandler())
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(s.checks...))
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/session/{id}/current", s.handleCurrent)
	mux.HandleFunc("POST /api/v1/session/{id}/answer", s.handleAnswer)
	mux.HandleFunc("POST /api/v1/session/{id}/next", s.handleNext)
	mux.HandleFunc("POST /api/v1/session/{id}/practice", s.handlePractice)
	mux.HandleFunc("GET /api/v1/session/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/session/{id}/events", s.handleEvents)

	mux.Handle("GET /audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(s.config.AudioDir))))

	return s.withRequestLogging(s.withCORS(mux))
}
