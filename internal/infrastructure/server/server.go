// Package server exposes the daemon's ambient health and metrics surface: a
// small fiber app with /healthz and /metrics, independent of the CDC/scheduler
// control loops. Reducing the teacher's HTTP API down to just this keeps the
// wiring the teacher's own presentation/http/router.go uses while dropping
// everything that belonged to the alerting CRUD API this daemon doesn't serve.
package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/speculare-cloud/alertsd/internal/infrastructure/config"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/database"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/scheduler"
)

// Server wraps the fiber app used for health checks and Prometheus scraping.
type Server struct {
	app *fiber.App
	cfg *config.ServerConfig
}

// New builds the health/metrics app. db and sched are queried by /healthz to
// report both the database connectivity and the scheduler's running-task
// count.
func New(cfg *config.ServerConfig, db *database.PostgresDB, sched *scheduler.Scheduler) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":          "healthy",
			"scheduler_tasks": sched.Running(),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return &Server{app: app, cfg: cfg}
}

// ListenAndServe starts the server, blocking until it stops or errors.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	log.Info().Str("address", addr).Msg("server: health/metrics endpoint listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
