// Package server is the HTTP transport for the gateway: it maps requests and
// cookies onto gateway operations and writes their responses back.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/MarcoABCardoso/ibmid-login/gateway"
	"github.com/MarcoABCardoso/ibmid-login/internal/config"
)

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	service     *gateway.Service
	logger      zerolog.Logger
	gatherer    prometheus.Gatherer
	fallbackURL string
}

// New builds the handler. gatherer backs /metrics; a nil gatherer serves the
// default registry.
func New(cfg config.Config, service *gateway.Service, logger zerolog.Logger, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		service:     service,
		logger:      logger,
		gatherer:    gatherer,
		fallbackURL: cfg.GetFallbackURL(),
	}
	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Info().Msg(routeLine(method, path))
	}
}

func routeLine(method, path string) string {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s %-7s%s] %s", color, method, ResetColor, path)
}
