package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faresafe/resale-backend/internal/config"
	"github.com/faresafe/resale-backend/internal/http/handlers"
	"github.com/faresafe/resale-backend/internal/http/middleware"
	"github.com/faresafe/resale-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	listingHandler *handlers.ListingHandler,
	orderHandler *handlers.OrderHandler,
	transferHandler *handlers.TransferHandler,
	disputeHandler *handlers.DisputeHandler,
	verificationHandler *handlers.VerificationHandler,
	webhookHandler *handlers.WebhookHandler,
	schedulerHandler *handlers.SchedulerHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider callbacks authenticate with an HMAC signature, not a JWT.
	r.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

	// Cron trigger, shared-secret authenticated.
	r.POST("/internal/scheduler/run", schedulerHandler.Run)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Public browse surface.
	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Get)
	api.GET("/listings/:id/price-history", middleware.UUIDValidator("id"), listingHandler.PriceHistory)

	auth := api.Group("")
	auth.Use(middleware.AuthMiddleware(tokenManager))
	{
		auth.POST("/listings", listingHandler.Create)
		auth.PATCH("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Update)
		auth.DELETE("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Cancel)

		auth.POST("/orders", orderHandler.Purchase)
		auth.GET("/orders", orderHandler.List)
		auth.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)
		auth.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), orderHandler.Escrow)

		auth.GET("/orders/:id/transfer", middleware.UUIDValidator("id"), transferHandler.Get)
		auth.POST("/orders/:id/transfer/proof", middleware.UUIDValidator("id"), transferHandler.SubmitProof)
		auth.POST("/orders/:id/transfer/confirm", middleware.UUIDValidator("id"), transferHandler.ConfirmReceipt)
		auth.POST("/orders/:id/transfer/report", middleware.UUIDValidator("id"), transferHandler.ReportIssue)

		auth.POST("/disputes", disputeHandler.Open)
		auth.GET("/disputes", disputeHandler.List)
		auth.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		auth.POST("/disputes/:id/respond", middleware.UUIDValidator("id"), disputeHandler.Respond)
		auth.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.AddEvidence)

		auth.GET("/verification", verificationHandler.Get)
		auth.POST("/verification/steps", verificationHandler.CompleteStep)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
		admin.POST("/disputes/:id/close", middleware.UUIDValidator("id"), disputeHandler.Close)
	}

	return r
}
