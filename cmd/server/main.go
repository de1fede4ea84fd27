package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/auth"
	"medchain-backend/internal/batch"
	"medchain-backend/internal/chain"
	"medchain-backend/internal/config"
	"medchain-backend/internal/database"
	"medchain-backend/internal/distribution"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/lock"
	"medchain-backend/internal/logging"
	"medchain-backend/internal/models"
	"medchain-backend/internal/report"
	"medchain-backend/internal/scan"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.Init(cfg.LogLevel)

	db, err := database.Init(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database init failed")
	}
	defer database.Close(db)

	var locker lock.Locker = lock.Noop{}
	rdb, err := lock.Connect(ctx, cfg.RedisAddress, logger)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, batch lock falls back to row locks only")
	} else if rdb != nil {
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	users := auth.NewGormUsers(db)
	recorder := audit.NewDBRecorder(db)
	svc := ledger.NewService(ledger.NewGormStore(db), ledger.Options{
		Locker:             locker,
		Anchor:             chain.Digest{},
		Directory:          users,
		VerificationSecret: cfg.VerificationSecret,
		Logger:             logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public
	api.Post("/auth/register", auth.RegisterHandler(cfg, users))
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg, users))
	api.Post("/auth/login", auth.LoginHandler(cfg, users))
	api.Get("/auth/check-wallet", auth.CheckWalletHandler(users))
	api.Get("/users/wholesalers", auth.ListParticipantsHandler(users, models.RoleWholesaler, models.RoleDistributor))
	api.Get("/users/retailers", auth.ListParticipantsHandler(users, models.RoleRetailer))
	api.Post("/batches/verify", batch.VerifyBatchHandler(svc))
	api.Get("/supply-chain/batch/:id", batch.HistoryHandler(svc))
	api.Post("/scans", auth.OptionalJWT(cfg), scan.RecordHandler(svc, recorder))

	protected := api.Group("", auth.JWTMiddleware(cfg))
	protected.Get("/auth/me", auth.MeHandler(users))

	// Batches
	protected.Get("/batches", batch.ListBatchesHandler(svc))
	protected.Get("/batches/count", batch.CountBatchesHandler(svc))
	protected.Post("/batches", auth.RequireRole(models.RoleManufacturer), batch.CreateBatchHandler(svc, recorder))
	protected.Get("/batches/:id", batch.GetBatchHandler(svc))
	protected.Get("/batches/:id/quantities", batch.QuantitiesHandler(svc))
	protected.Get("/batches/:id/history", batch.HistoryHandler(svc))
	protected.Get("/batches/:id/report.xlsx", auth.RequireRole(models.RoleManufacturer, models.RoleAdmin), report.BatchReportHandler(svc))
	protected.Post("/batches/:id/sales", auth.RequireRole(models.RoleRetailer), batch.RecordSaleHandler(svc, recorder))
	protected.Post("/batches/:id/recall", auth.RequireRole(models.RoleManufacturer), batch.RecallHandler(svc, recorder))

	// Distributions
	dist := protected.Group("/distributions")
	dist.Post("/", auth.RequireRole(models.RoleManufacturer, models.RoleWholesaler), distribution.CreateHandler(svc, recorder))
	dist.Get("/incoming/:receiverId", distribution.IncomingHandler(svc))
	dist.Get("/sent/:senderId", distribution.SentHandler(svc))
	dist.Get("/by-manufacturer/:manufacturerId", distribution.ByManufacturerHandler(svc))
	dist.Get("/available/:holderId/:batchId", distribution.AvailableHandler(svc))
	dist.Patch("/receive/:id", distribution.ReceiveHandler(svc, recorder)) // older clients
	dist.Get("/:id", distribution.GetHandler(svc))
	dist.Patch("/:id/ship", distribution.ShipHandler(svc, recorder))
	dist.Patch("/:id/in-transit", distribution.InTransitHandler(svc, recorder))
	dist.Patch("/:id/receive", distribution.ReceiveHandler(svc, recorder))
	dist.Post("/:id/verify", distribution.VerifyHandler(svc, recorder))
	dist.Post("/:id/reject", distribution.RejectHandler(svc, recorder))

	// Scans and supply chain
	protected.Get("/scans", scan.ListHandler(svc))
	protected.Post("/supply-chain", scan.EventHandler(svc))
	protected.Get("/supply-chain/stats", auth.RequireRole(models.RoleAdmin, models.RoleManufacturer), scan.StatsHandler(svc))

	// Admin
	adminRoutes := protected.Group("/admin", auth.RequireRole(models.RoleAdmin))
	adminRoutes.Get("/users", auth.ListUsersHandler(users))
	adminRoutes.Post("/users/:id/approve", auth.ApproveUserHandler(users, recorder))
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(recorder))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("shutdown failed")
		}
	}()

	logger.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
