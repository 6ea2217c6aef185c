package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/audit"
	"grill-backend/internal/auth"
	"grill-backend/internal/catalog"
	"grill-backend/internal/config"
	"grill-backend/internal/finance"
	"grill-backend/internal/inventory"
	"grill-backend/internal/models"
	"grill-backend/internal/recipe"
	"grill-backend/internal/reconcile"
	"grill-backend/internal/square"
	"grill-backend/internal/webhook"
)

// Services is everything the HTTP layer needs, built once at startup.
type Services struct {
	DB         *gorm.DB
	Logger     *zap.Logger
	Processor  *webhook.Processor
	Items      *inventory.ItemStore
	Ledger     *inventory.LedgerStore
	Recipes    *recipe.Store
	Catalog    *catalog.Syncer
	Reconciler *reconcile.Service
	Finance    *finance.Store
}

// Wire builds the service graph on top of an open database and a Square
// client.
func Wire(cfg *config.Config, db *gorm.DB, sq *square.Client, log *zap.Logger) *Services {
	ledger := inventory.NewLedgerStore(db, log)
	recipes := recipe.NewStore(db)
	calc := inventory.NewCalculator(recipes, log)

	verifier := &square.Verifier{
		Key:             cfg.Square.SignatureKey,
		NotificationURL: cfg.Square.NotificationURL,
		AllowUnverified: cfg.Square.AllowUnverifiedWebhooks,
		Logger:          log,
	}

	return &Services{
		DB:         db,
		Logger:     log,
		Processor:  webhook.NewProcessor(verifier, webhook.NewEventStore(db), sq, calc, ledger, log),
		Items:      inventory.NewItemStore(db, ledger, log),
		Ledger:     ledger,
		Recipes:    recipes,
		Catalog:    catalog.NewSyncer(db, sq, log),
		Reconciler: reconcile.NewService(sq, calc, ledger, log),
		Finance:    finance.NewStore(db, log),
	}
}

func New(cfg *config.Config, s *Services) *fiber.App {
	log := s.Logger

	app := fiber.New(fiber.Config{
		AppName:               "grill-backend",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			log.Error("unexpected error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unexpected server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(log))

	origins := strings.Split(cfg.Server.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/healthz", healthz(s.DB))
	if cfg.Server.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Post("/webhooks/square", webhook.SquareHandler(s.Processor))

	api := app.Group("/api")

	authH := auth.NewHandler(s.DB, cfg.Auth.JWTSecret, log)
	api.Post("/auth/register-admin", authH.RegisterAdmin())
	api.Post("/auth/login", authH.Login())

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.Auth.JWTSecret))
	protected.Get("/auth/me", authH.Me())

	inv := inventory.NewHandler(s.DB, s.Items, s.Ledger, log)

	// Read-only stock views, open to staff
	anyRole := auth.RequireRole(models.RoleAdmin, models.RoleStaff)
	protected.Get("/items", anyRole, inv.ListItems())
	protected.Get("/low-stock", anyRole, inv.LowStock())

	admin := protected.Group("/admin")
	admin.Use(auth.RequireRole(models.RoleAdmin))

	admin.Post("/users", authH.CreateUser())
	admin.Get("/users", authH.ListUsers())

	// Stock
	admin.Get("/items", inv.ListItems())
	admin.Post("/items", inv.CreateItem())
	admin.Patch("/items/:id", inv.UpdateItem())
	admin.Post("/items/:id/adjust", inv.AdjustItem())
	admin.Get("/items/:id/ledger", inv.ItemLedger())
	admin.Get("/low-stock", inv.LowStock())
	admin.Get("/ledger", inv.ListLedger())

	// Recipes
	rec := recipe.NewHandler(s.DB, s.Recipes, log)
	admin.Get("/recipes/:variation", rec.Get())
	admin.Post("/recipes", rec.Upsert())

	// Square catalog mirror
	admin.Post("/catalog/sync", catalog.SyncHandler(s.Catalog, log))
	admin.Get("/catalog", catalog.ListHandler(s.Catalog))

	// Bookkeeping
	fin := finance.NewHandler(s.DB, s.Finance, log)
	admin.Get("/finance/tracker", fin.Tracker())
	admin.Get("/finance/expenses", fin.ListExpenses())
	admin.Post("/finance/expenses", fin.CreateExpense())
	admin.Put("/finance/expenses/:id", fin.UpdateExpense())
	admin.Delete("/finance/expenses/:id", fin.DeleteExpense())
	admin.Get("/finance/cash-income", fin.ListCashIncome())
	admin.Post("/finance/cash-income", fin.CreateCashIncome())
	admin.Put("/finance/cash-income/:id", fin.UpdateCashIncome())
	admin.Delete("/finance/cash-income/:id", fin.DeleteCashIncome())
	admin.Get("/finance/electronic-income", fin.ListElectronicIncome())
	admin.Post("/finance/electronic-income", fin.CreateElectronicIncome())
	admin.Put("/finance/electronic-income/:id", fin.UpdateElectronicIncome())
	admin.Delete("/finance/electronic-income/:id", fin.DeleteElectronicIncome())

	admin.Post("/reconcile", reconcile.TriggerHandler(s.DB, s.Reconciler, log))
	admin.Get("/audit-logs", audit.ListAuditLogsHandler(s.DB))

	return app
}

func healthz(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
