package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faresafe/resale-backend/internal/cache"
	"github.com/faresafe/resale-backend/internal/config"
	"github.com/faresafe/resale-backend/internal/db"
	httpHandlers "github.com/faresafe/resale-backend/internal/http/handlers"
	httpRouter "github.com/faresafe/resale-backend/internal/http/router"
	"github.com/faresafe/resale-backend/internal/logger"
	"github.com/faresafe/resale-backend/internal/payment"
	"github.com/faresafe/resale-backend/internal/pricing"
	"github.com/faresafe/resale-backend/internal/repository"
	"github.com/faresafe/resale-backend/internal/service"
)

func main() {
	// Context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: cannot load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Database and migrations.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: cannot connect to database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("main: cannot connect to redis: %v", err)
	}
	sideCache := cache.New(redisClient)

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	feeSchedule, err := pricing.NewSchedule(cfg.PlatformFeePercent, cfg.BuyerProtectionFeePercent)
	if err != nil {
		log.Fatalf("main: invalid fee schedule: %v", err)
	}

	paymentClient := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentClientID, cfg.PaymentSecretKey)

	// Repositories.
	listingRepo := repository.NewListingRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	transferRepo := repository.NewTransferRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	verificationRepo := repository.NewVerificationRepository(dbConn)

	// Services.
	listingService, err := service.NewListingService(listingRepo, verificationRepo, sideCache, disputeRepo, cfg.MaxMarkupRatio, logger.Log)
	if err != nil {
		log.Fatalf("main: invalid markup ratio: %v", err)
	}
	orderService := service.NewOrderService(orderRepo, listingRepo, paymentClient, sideCache, feeSchedule,
		cfg.CheckoutTTL, cfg.TransferDeadline, cfg.ConfirmationDeadline, logger.Log)
	disputeService := service.NewDisputeService(disputeRepo, orderRepo, cfg.DisputeResponseDeadline, logger.Log)
	transferService := service.NewTransferService(transferRepo, orderRepo, disputeService, cfg.ConfirmationDeadline, logger.Log)
	schedulerService := service.NewSchedulerService(orderRepo, transferRepo, disputeRepo, listingRepo, logger.Log)
	verificationService := service.NewVerificationService(verificationRepo)

	// HTTP handlers.
	listingHandler := httpHandlers.NewListingHandler(listingService)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	transferHandler := httpHandlers.NewTransferHandler(transferService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	verificationHandler := httpHandlers.NewVerificationHandler(verificationService)
	webhookHandler := httpHandlers.NewWebhookHandler(orderService, cfg.PaymentWebhookSecret)
	schedulerHandler := httpHandlers.NewSchedulerHandler(schedulerService, cfg.SchedulerSecret)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	engine := httpRouter.SetupRouter(cfg, listingHandler, orderHandler, transferHandler, disputeHandler,
		verificationHandler, webhookHandler, schedulerHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Stop the server when the shutdown signal arrives.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown error: %v", err)
		}
		if err := redisClient.Close(); err != nil {
			log.Printf("main: redis close error: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

// safeClose closes the database connection.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: database close error: %v", err)
	}
}
