package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fixit-hub/fixit/internal/analytics"
	"github.com/fixit-hub/fixit/internal/auth"
	"github.com/fixit-hub/fixit/internal/booking"
	"github.com/fixit-hub/fixit/internal/catalog"
	"github.com/fixit-hub/fixit/internal/config"
	"github.com/fixit-hub/fixit/internal/identity"
	"github.com/fixit-hub/fixit/internal/ledger"
	"github.com/fixit-hub/fixit/internal/middleware"
	"github.com/fixit-hub/fixit/internal/notification"
	"github.com/fixit-hub/fixit/internal/payout"
	"github.com/fixit-hub/fixit/internal/settlement"
	"github.com/fixit-hub/fixit/internal/txn"
	"github.com/fixit-hub/fixit/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development, in which case in-memory backends are used.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Logger    *slog.Logger
	Disburser payout.Disburser
}

// Services exposes what the process needs beyond the HTTP handlers.
type Services struct {
	Identity *identity.Service
	Ledger   ledger.Store
	// Relay is nil when notifications are dispatched in-process.
	Relay *notification.Relay
}

type backends struct {
	ledger   ledger.Store
	tx       txn.Transactor
	users    identity.Repository
	services catalog.Repository
	bookings booking.Repository
	payouts  payout.Repository
}

func newBackends(db *pgxpool.Pool) backends {
	if db == nil {
		return backends{
			ledger:   ledger.NewInMemory(),
			tx:       txn.NewMemory(),
			users:    identity.NewMemoryRepository(),
			services: catalog.NewMemoryRepository(),
			bookings: booking.NewMemoryRepository(),
			payouts:  payout.NewMemoryRepository(),
		}
	}
	return backends{
		ledger:   ledger.NewPostgresStore(db),
		tx:       txn.NewPostgres(db),
		users:    identity.NewPostgresRepository(db),
		services: catalog.NewPostgresRepository(db),
		bookings: booking.NewPostgresRepository(db),
		payouts:  payout.NewPostgresRepository(db),
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	b := newBackends(d.DB)

	engine, err := settlement.NewEngine(b.ledger, d.Cfg.CommissionRate, d.Cfg.AdminAccountID)
	if err != nil {
		return Services{}, err
	}

	registry := notification.NewRegistry()
	notifier, relay := notifications(d, registry)

	identitySvc := identity.NewService(b.users, b.ledger, b.tx)
	authSvc := auth.NewService(d.Cfg, b.users)
	catalogSvc := catalog.NewService(b.services)
	manager := booking.NewManager(b.bookings, catalogSvc, b.ledger, engine, b.tx, notifier, d.Logger)
	processor := payout.NewProcessor(b.payouts, b.ledger, b.tx, d.Disburser, notifier, d.Logger)
	aggregator := analytics.NewAggregator(b.bookings, catalogSvc, engine.Rate())
	walletSvc := wallet.NewService(b.ledger)

	authHandler := auth.NewHandler(identitySvc, authSvc)
	catalogHandler := catalog.NewHandler(catalogSvc)
	bookingHandler := booking.NewHandler(manager)
	payoutHandler := payout.NewHandler(processor)
	analyticsHandler := analytics.NewHandler(aggregator)
	walletHandler := wallet.NewHandler(walletSvc)
	streamHandler := notification.NewStreamHandler(registry, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit), authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	idem := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	staff := middleware.RequireRoles(ledger.RoleTechnician, ledger.RoleAdmin)
	technician := middleware.RequireRoles(ledger.RoleTechnician)
	customer := middleware.RequireRoles(ledger.RoleCustomer)

	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/me", authHandler.Me)

	protected.Get("/services", catalogHandler.Search)
	protected.Get("/services/:id", catalogHandler.Get)
	protected.Post("/services", staff, catalogHandler.Add)
	protected.Put("/services/:id", staff, catalogHandler.Update)
	protected.Get("/technicians/:id/services", catalogHandler.ListByTechnician)

	protected.Post("/bookings", customer, idem, bookingHandler.Create)
	protected.Put("/bookings/:id/complete", staff, idem, bookingHandler.Complete)
	protected.Get("/customers/:id/bookings", bookingHandler.ListByCustomer)
	protected.Get("/technicians/:id/bookings", bookingHandler.ListByTechnician)

	protected.Post("/payouts", technician, idem, payoutHandler.Request)
	protected.Get("/payouts/mine", technician, payoutHandler.Mine)

	protected.Get("/wallet", walletHandler.Balance)
	protected.Get("/wallet/transactions", walletHandler.Transactions)
	protected.Get("/events", streamHandler.Stream)

	admin := protected.Group("/admin", middleware.RequireRoles(ledger.RoleAdmin))
	admin.Get("/earnings", analyticsHandler.Earnings)
	admin.Get("/most-booked-category", analyticsHandler.MostBookedCategory)
	admin.Get("/payouts/pending", payoutHandler.Pending)
	admin.Post("/payouts/:id/approve", idem, payoutHandler.Approve)
	admin.Post("/payouts/:id/reject", idem, payoutHandler.Reject)
	admin.Get("/ledger/verify", walletHandler.Verify)

	return Services{Identity: identitySvc, Ledger: b.ledger, Relay: relay}, nil
}

// notifications fans every message out to the log and to connected streams.
// With Redis, streams are fed through pub/sub so every instance sees every
// message; otherwise the dispatcher is called in-process.
func notifications(d Deps, registry *notification.Registry) (notification.Notifier, *notification.Relay) {
	dispatcher := notification.NewDispatcher(registry)
	logged := notification.NewLoggerNotifier(d.Logger)
	if d.Cache == nil {
		return notification.Multi{logged, dispatcher}, nil
	}
	publisher := notification.NewPublisher(d.Cache, notification.DefaultChannel)
	relay := notification.NewRelay(d.Cache, notification.DefaultChannel, dispatcher, d.Logger)
	return notification.Multi{logged, publisher}, relay
}
