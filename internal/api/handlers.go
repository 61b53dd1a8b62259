package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netpulse/netpulse/pkg/models"
)

// healthHandler handles health check requests
func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "netpulse",
		"version": "1.0.0",
	})
}

// readyHandler reports readiness: the server only accepts traffic when the
// storage backend answers
func (s *Server) readyHandler(c *fiber.Ctx) error {
	storageStatus := "ok"
	status := fiber.StatusOK
	if err := s.engine.Store().HealthCheck(c.Context()); err != nil {
		storageStatus = err.Error()
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": map[bool]string{true: "ready", false: "not ready"}[status == fiber.StatusOK],
		"checks": fiber.Map{
			"storage": storageStatus,
		},
	})
}

// metricsHandler handles Prometheus metrics endpoint
func (s *Server) metricsHandler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var buf bytes.Buffer
	req, _ := http.NewRequest("GET", s.config.Metrics.Path, nil)
	rw := &responseWriter{Buffer: &buf, header: make(http.Header)}

	gatherer, ok := s.prometheusReg.(prometheus.Gatherer)
	if !ok {
		return c.Status(500).SendString("Error: registry does not implement Gatherer interface")
	}
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	handler.ServeHTTP(rw, req)

	return c.SendString(buf.String())
}

// responseWriter is a simple implementation of http.ResponseWriter for capturing metrics
type responseWriter struct {
	*bytes.Buffer
	header http.Header
}

func (rw *responseWriter) Header() http.Header {
	return rw.header
}

func (rw *responseWriter) WriteHeader(statusCode int) {}

// getTargetsHandler returns snapshots of all monitored targets
func (s *Server) getTargetsHandler(c *fiber.Ctx) error {
	tail := c.QueryInt("tail", s.config.Broadcast.TailSize)
	snapshots := s.engine.Snapshots(tail)

	return c.JSON(fiber.Map{
		"timestamp": time.Now(),
		"targets":   snapshots,
	})
}

// getTargetHandler returns one target's snapshot
func (s *Server) getTargetHandler(c *fiber.Ctx) error {
	name := c.Params("name")
	tail := c.QueryInt("tail", s.config.Broadcast.TailSize)

	snapshot, ok := s.engine.Snapshot(name, tail)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "target not found: "+name)
	}

	return c.JSON(snapshot)
}

// getIncidentsHandler returns recent incidents for a target
func (s *Server) getIncidentsHandler(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, ok := s.engine.Snapshot(name, 0); !ok {
		return fiber.NewError(fiber.StatusNotFound, "target not found: "+name)
	}

	limit := c.QueryInt("limit", 50)
	incidents, err := s.engine.Store().GetIncidents(c.Context(), name, limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load incidents")
	}

	return c.JSON(fiber.Map{
		"target":    name,
		"incidents": incidents,
	})
}

// getReportsHandler returns stored daily reports for a target plus the
// current day's rollup computed on demand
func (s *Server) getReportsHandler(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, ok := s.engine.Snapshot(name, 0); !ok {
		return fiber.NewError(fiber.StatusNotFound, "target not found: "+name)
	}

	limit := c.QueryInt("days", 30)
	reports, err := s.engine.Store().GetDailyReports(c.Context(), name, limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load reports")
	}

	today := time.Now().UTC().Format(models.DateLayout)
	current, err := s.engine.Store().QueryDaySummary(c.Context(), name, today)
	if err != nil {
		s.logger.WithError(err).Error("Failed to compute current day summary")
	}

	return c.JSON(fiber.Map{
		"target":  name,
		"today":   current,
		"reports": reports,
	})
}
