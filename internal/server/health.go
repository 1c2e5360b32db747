package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eliseohh/shelfbot/internal/index"
	"github.com/eliseohh/shelfbot/internal/logger"
)

// IndexProbe is the part of *index.Store the endpoints read.
type IndexProbe interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (index.Stats, error)
}

type HealthServer struct {
	app   *fiber.App
	probe IndexProbe
	log   logger.ILogger
}

func NewHealthServer(probe IndexProbe, log logger.ILogger) *HealthServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})
	s := &HealthServer{app: app, probe: probe, log: log}
	app.Get("/healthz", s.healthz)
	app.Get("/stats", s.stats)
	return s
}

func (s *HealthServer) App() *fiber.App { return s.app }

func (s *HealthServer) Listen(addr string) error {
	s.log.Info("Health", "Health server listening", map[string]interface{}{"addr": addr})
	return s.app.Listen(addr)
}

func (s *HealthServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *HealthServer) healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := s.probe.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *HealthServer) stats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	st, err := s.probe.Stats(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(st)
}
