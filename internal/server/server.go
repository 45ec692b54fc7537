package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fixit-hub/fixit/internal/config"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/middleware"
	"github.com/fixit-hub/fixit/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	logger   *slog.Logger
	services routes.Services
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	services, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, logger: logger, services: services}, nil
}

// Bootstrap provisions the platform admin. Without configured credentials only
// the admin ledger account is opened, so settlement works but nobody can log in
// as admin.
func (s *Server) Bootstrap(ctx context.Context) error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		if _, err := s.services.Ledger.OpenAccount(ctx, s.cfg.AdminAccountID, ledger.RoleAdmin); err != nil {
			return err
		}
		s.logger.Warn("admin credentials not configured", slog.String("admin_account_id", s.cfg.AdminAccountID))
		return nil
	}
	admin, err := s.services.Identity.EnsureAdmin(ctx, s.cfg.AdminAccountID, s.cfg.AdminEmail, s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	s.logger.Info("platform admin ready", slog.String("admin_id", admin.ID), slog.String("email", admin.Email))
	return nil
}

// RunBackground runs the notification relay until ctx is cancelled. It returns
// immediately when notifications are dispatched in-process.
func (s *Server) RunBackground(ctx context.Context) {
	if s.services.Relay == nil {
		return
	}
	go func() {
		if err := s.services.Relay.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("notification relay stopped", slog.Any("error", err))
		}
	}()
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
