package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"go-stock-ledger/internal/config"
	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/handler"
	"go-stock-ledger/internal/logger"
	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/ws"
	"go-stock-ledger/pkg/database"
	"go-stock-ledger/pkg/jwt"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	db, err := database.Open(database.Options{
		DSN:          cfg.DSN(),
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		LogQueries:   cfg.DBLogQueries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()
	if err := database.Migrate(db, model.Models()...); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	// 3. Repositories and seed data
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	if err := service.NewSeeder(privilegeRepo, roleRepo, userRepo).Seed(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("seed defaults")
	}

	// 4. WebSocket hub, optionally fed through redis so every instance sees every event
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)

	var publisher events.Publisher = wsHub
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()

		bridge := events.NewRedisBridge(rdb, cfg.EventsChannel, wsHub)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event bridge stopped")
			}
		}()
		publisher = bridge
	}

	// 5. Services
	cache := service.NewStatsCache(cfg.StatsCacheTTL)
	tokens := jwt.NewManager(cfg.Secret(), cfg.JWTExpiry)

	ledger := service.NewLedgerService(db, productRepo, txRepo, historyRepo, publisher, cache, cfg.LedgerConfig())
	invService := service.NewInventoryService(db, productRepo, txRepo, historyRepo, ledger, publisher, cache, cfg.LowStockThreshold)
	queryService := service.NewQueryService(txRepo, historyRepo)
	dashService := service.NewDashboardService(invService, txRepo, cache)
	authService := service.NewAuthService(userRepo, tokens, publisher)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	handlers := &handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Inventory:    handler.NewInventoryHandler(invService, ledger),
		Transactions: handler.NewTransactionHandler(ledger, queryService),
		History:      handler.NewHistoryHandler(queryService),
		Dashboard:    handler.NewDashboardHandler(dashService),
		Users:        handler.NewUserHandler(userService),
		Roles:        handler.NewRoleHandler(roleRepo, privilegeRepo),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:   "Stock Ledger v1.0",
		BodyLimit: 20 * 1024 * 1024,
	})
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	// 7. Routes
	handlers.Register(app, authService)
	app.Use("/ws", ws.Upgrade)
	app.Get("/ws", wsHub.Handler())

	// 8. Graceful Shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	log.Info().Msg("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
