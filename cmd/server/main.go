package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/database"
	"bankcore/internal/fees"
	"bankcore/internal/handlers"
	"bankcore/internal/ledger"
	appmiddleware "bankcore/internal/middleware"
	"bankcore/internal/repositories"
	"bankcore/internal/services"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	db, err := database.Initialize(cfg)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		seeder := database.NewSeeder(db, cfg.Security.BCryptCost)
		if err := seeder.Seed(3); err != nil {
			logger.Error("failed to seed database", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db.DB)
	accountRepo := repositories.NewAccountRepository(db.DB)
	transferRepo := repositories.NewTransferRepository(db.DB)
	auditLogRepo := repositories.NewAuditLogRepository(db.DB)

	// The ledger owns balances while the process runs; load the active set.
	balances := ledger.New(cfg.Engine.LockWaitTimeout, logger)
	activeAccounts, err := accountRepo.LoadActive()
	if err != nil {
		logger.Error("failed to load accounts into ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	balances.Load(activeAccounts)

	// Services
	metrics := services.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	metrics.RecordGauge("active_accounts", float64(len(activeAccounts)), nil)
	auditLogger := services.NewAuditLogger(logger)
	passwordService := services.NewPasswordService()
	tokenService := services.NewTokenService(&cfg.JWT)
	authService := services.NewAuthService(userRepo, auditLogRepo, passwordService, tokenService, metrics, logger)
	validator := services.NewTransferValidator(accountRepo)
	tracker := services.NewIdempotencyTracker(cfg.Engine.IdempotencyWaitTimeout, logger)
	breaker := services.NewCircuitBreaker(services.DefaultCircuitBreakerConfig())
	transferService := services.NewTransferService(
		transferRepo,
		accountRepo,
		auditLogRepo,
		validator,
		fees.NewCalculator(),
		balances,
		tracker,
		breaker,
		metrics,
		auditLogger,
		logger,
		cfg.Engine.MaxConcurrentTransfers,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	transferHandler := handlers.NewTransferHandler(transferService)
	healthHandler := handlers.NewHealthCheckHandler(db.DB)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()

	e.Use(appmiddleware.RequestID())
	e.Use(appmiddleware.PanicRecovery())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSAllowOrigins,
	}))
	e.Use(appmiddleware.RateLimiterWithConfig(cfg.Security.RateLimitPerSecond, cfg.Security.RateLimitPerSecond*2))

	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", appmiddleware.RequireAuth(tokenService))
	authed.POST("/transfers", transferHandler.SubmitTransfer)
	authed.GET("/transfers", transferHandler.ListTransfers)
	authed.GET("/transfers/:id", transferHandler.GetTransfer)
	authed.GET("/accounts/balance", transferHandler.GetBalance)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}
