package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/isml-edu/student-portal-api/api/swagger"
	"github.com/isml-edu/student-portal-api/internal/gateway"
	"github.com/isml-edu/student-portal-api/internal/handler"
	"github.com/isml-edu/student-portal-api/internal/middleware"
	"github.com/isml-edu/student-portal-api/internal/repository"
	"github.com/isml-edu/student-portal-api/internal/service"
	"github.com/isml-edu/student-portal-api/internal/upstream"
	"github.com/isml-edu/student-portal-api/pkg/cache"
	"github.com/isml-edu/student-portal-api/pkg/config"
	"github.com/isml-edu/student-portal-api/pkg/database"
	"github.com/isml-edu/student-portal-api/pkg/jobs"
	"github.com/isml-edu/student-portal-api/pkg/logger"
	corsmiddleware "github.com/isml-edu/student-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/isml-edu/student-portal-api/pkg/middleware/requestid"
	"github.com/isml-edu/student-portal-api/pkg/storage"
)

// @title ISML Student Portal API
// @version 1.0.0
// @description Student portal gateway: auth, batches, classes and payments
// @BasePath /api
// @schemes http

// queueAdapter exposes the jobs queue through the shape the reconcile
// service enqueues with.
type queueAdapter struct {
	queue *jobs.Queue
}

func (a queueAdapter) Enqueue(id, jobType string, payload interface{}) error {
	return a.queue.Enqueue(jobs.Job{ID: id, Type: jobType, Payload: payload})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	upstreamClient := upstream.NewClient(cfg.Upstream, logr)
	upstreamClient.SetObserver(metricsSvc)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	pendingRepo := repository.NewPendingPaymentRepository(db)

	authSvc := service.NewAuthService(upstreamClient, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})
	planSvc := service.NewPlanService(upstreamClient, cacheRepo, service.PlanCacheTTLs{
		Fees: cfg.Cache.FeesTTL,
		Lock: cfg.Cache.LockTTL,
	}, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(upstreamClient, cacheRepo, cfg.Cache.EnrollmentsTTL, validate, logr)
	classSvc := service.NewClassService(upstreamClient, logr)

	reconcileSvc := service.NewReconcileService(pendingRepo, upstreamClient, cacheRepo, service.ReconcileConfig{
		Staleness:       cfg.Payments.Staleness,
		PollInterval:    cfg.Payments.PollInterval,
		PollAttempts:    cfg.Payments.PollAttempts,
		TransactionsTTL: cfg.Cache.TransactionsTTL,
	}, metricsSvc, logr)

	verifyQueue := jobs.NewQueue("payment-verification", func(ctx context.Context, job jobs.Job) error {
		return reconcileSvc.HandleVerifyJob(ctx, job.Payload)
	}, jobs.QueueConfig{
		Workers: cfg.Payments.VerifyWorkers,
		Logger:  logr,
	})
	verifyQueue.Start(ctx)
	defer verifyQueue.Stop()
	reconcileSvc.SetQueue(queueAdapter{queue: verifyQueue})

	scriptLoader := gateway.NewScriptLoader(cfg.Checkout.ScriptURL, logr)
	sessions := gateway.NewSessionRegistry(cfg.Checkout.SessionTTL, cfg.Checkout.GraceWindow, logr)
	checkoutSvc := service.NewCheckoutService(upstreamClient, sessions, scriptLoader, reconcileSvc, service.CheckoutConfig{
		Currency:    cfg.Checkout.Currency,
		DisplayName: cfg.Checkout.DisplayName,
	}, metricsSvc, validate, logr)

	var receiptSvc *service.ReceiptService
	if cfg.Receipts.Enabled {
		receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init receipt storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
		receiptSvc = service.NewReceiptService(reconcileSvc, receiptStore, signer, cfg.Checkout.DisplayName, logr)
		receiptSvc.StartCleanup(ctx, cfg.Receipts.CleanupInterval, 24*time.Hour)
	}

	authHandler := handler.NewAuthHandler(authSvc, reconcileSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	classHandler := handler.NewClassHandler(classSvc)
	paymentHandler := handler.NewPaymentHandler(planSvc, checkoutSvc, reconcileSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.GET("/states", authHandler.States)
		auth.GET("/centers", authHandler.Centers)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/auth/me", authHandler.Profile)

		protected.GET("/batches", enrollmentHandler.Available)
		protected.GET("/batches/enrolled", enrollmentHandler.Enrolled)
		protected.POST("/batches/enroll", enrollmentHandler.Enroll)

		protected.GET("/classes/:batchId/meets", classHandler.Meets)
		protected.GET("/classes/:batchId/notes", classHandler.Notes)
		protected.GET("/classes/:batchId/chat", classHandler.Chat)

		protected.GET("/notifications", classHandler.Notifications)
		protected.PATCH("/notifications/:id", classHandler.MarkNotificationRead)

		protected.GET("/payments", paymentHandler.Transactions)
		protected.GET("/payments/fees", paymentHandler.Fees)
		protected.GET("/payments/plan", paymentHandler.PlanStatus)
		protected.POST("/payments/plan", paymentHandler.LockPlan)
		protected.POST("/payments/checkout", paymentHandler.InitiateCheckout)
		protected.POST("/payments/checkout/complete", paymentHandler.CompleteCheckout)
		protected.POST("/payments/checkout/fail", paymentHandler.FailCheckout)
		protected.POST("/payments/checkout/:orderId/dismiss", paymentHandler.DismissCheckout)
		protected.POST("/payments/reconcile", paymentHandler.Reconcile)
	}

	if receiptSvc != nil {
		receiptHandler := handler.NewReceiptHandler(receiptSvc)
		// Downloads authenticate through the signed token, not the JWT.
		api.GET("/receipts/download", receiptHandler.Download)
		protected.POST("/receipts", receiptHandler.Generate)
		protected.GET("/payments/export", receiptHandler.ExportHistory)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
