// Package api exposes the monitoring state over HTTP: REST endpoints for
// target status, incidents, and reports, Prometheus metrics, and an SSE
// stream of dashboard frames.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/logging"
)

// Server represents the API server
type Server struct {
	app           *fiber.App
	config        *config.Config
	engine        *engine.Engine
	logger        *logging.Logger
	prometheusReg prometheus.Registerer
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, eng *engine.Engine, logger *logging.Logger, prometheusReg prometheus.Registerer) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "NetPulse v1.0",
		DisableStartupMessage: true,
		ServerHeader:          "NetPulse",
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	s := &Server{
		app:           app,
		config:        cfg,
		engine:        eng,
		logger:        logger.WithComponent(logging.ComponentAPI),
		prometheusReg: prometheusReg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Fiber middleware
func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	corsOrigins := "*"
	if len(s.config.Server.CORSOrigins) > 0 {
		corsOrigins = strings.Join(s.config.Server.CORSOrigins, ",")
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/ready", s.readyHandler)
	if s.config.Metrics.Enabled {
		s.app.Get(s.config.Metrics.Path, s.metricsHandler)
	}

	api := s.app.Group("/api/v1")
	api.Get("/targets", s.getTargetsHandler)
	api.Get("/targets/:name", s.getTargetHandler)
	api.Get("/targets/:name/incidents", s.getIncidentsHandler)
	api.Get("/targets/:name/report", s.getReportsHandler)
	api.Get("/stream", s.streamHandler)
}

// Start starts the server
func (s *Server) Start() error {
	address := s.config.Server.Host + ":" + s.config.Server.Port

	s.logger.WithFields(map[string]interface{}{
		"address": address,
	}).Info("Starting HTTP server")

	return s.app.Listen(address)
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")
	return s.app.Shutdown()
}

// App exposes the fiber app for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler handles Fiber errors
func errorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.WithComponent(logging.ComponentAPI).
			WithFields(map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).
			WithError(err).
			Error("HTTP request error")

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}
}
