// Package status exposes a read-only HTTP surface over persisted session
// state. It reads through the stores only; live pipeline internals and the
// wallet are never touched.
package status

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/NitishMaximus/ghost-curve/internal/health"
	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// SessionReader is the slice of the trade store the status surface needs.
type SessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.SimulationSession, error)
	RecentTrades(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.SimulatedTrade, error)
	LatestSnapshot(ctx context.Context, sessionID uuid.UUID) (*models.PerformanceSnapshot, error)
}

// Server serves /health, /api/session, /api/snapshot and /api/trades for
// the current session.
type Server struct {
	app       *fiber.App
	store     SessionReader
	checker   *health.Checker
	sessionID uuid.UUID
	addr      string
}

// NewServer builds the status app. checker may be nil; /health then only
// reports the process as up.
func NewServer(addr string, store SessionReader, checker *health.Checker, sessionID uuid.UUID) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	s := &Server{
		app:       app,
		store:     store,
		checker:   checker,
		sessionID: sessionID,
		addr:      addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":     "ok",
			"session_id": s.sessionID.String(),
			"time":       time.Now().Unix(),
		}
		if s.checker != nil {
			body["components"] = s.checker.Statuses()
			if !s.checker.Healthy() {
				body["status"] = "degraded"
				return c.Status(503).JSON(body)
			}
		}
		return c.JSON(body)
	})

	s.app.Get("/api/session", s.handleSession)
	s.app.Get("/api/snapshot", s.handleSnapshot)
	s.app.Get("/api/trades", s.handleTrades)
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	session, err := s.store.GetSession(c.Context(), s.sessionID)
	if err != nil {
		log.Error().Err(err).Msg("session lookup failed")
		return c.Status(500).JSON(fiber.Map{"error": "session lookup failed"})
	}
	if session == nil {
		return c.Status(404).JSON(fiber.Map{"error": "session not found"})
	}
	return c.JSON(session)
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	snapshot, err := s.store.LatestSnapshot(c.Context(), s.sessionID)
	if err != nil {
		log.Error().Err(err).Msg("snapshot lookup failed")
		return c.Status(500).JSON(fiber.Map{"error": "snapshot lookup failed"})
	}
	if snapshot == nil {
		return c.Status(404).JSON(fiber.Map{"error": "no snapshot yet"})
	}
	return c.JSON(snapshot)
}

func (s *Server) handleTrades(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return c.Status(400).JSON(fiber.Map{"error": "limit must be 1..1000"})
		}
		limit = n
	}

	trades, err := s.store.RecentTrades(c.Context(), s.sessionID, limit)
	if err != nil {
		log.Error().Err(err).Msg("trade listing failed")
		return c.Status(500).JSON(fiber.Map{"error": "trade listing failed"})
	}
	return c.JSON(fiber.Map{
		"session_id": s.sessionID.String(),
		"count":      len(trades),
		"trades":     trades,
	})
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("status server listening")
	return s.app.Listen(s.addr)
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
