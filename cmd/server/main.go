package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grape-store/config"
	"grape-store/internal/api"
	"grape-store/internal/broker"
	"grape-store/internal/notify"
	"grape-store/internal/payment"
	"grape-store/internal/redisclient"
	"grape-store/internal/service"
	"grape-store/internal/store"
	"grape-store/internal/util"
	"grape-store/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting grape store", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("grape-store", cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)

	gateway := payment.NewStripeClient(payment.StripeConfig{
		BaseURL:          cfg.Payment.GatewayURL,
		SecretKey:        cfg.Payment.SecretKey,
		WebhookSecret:    cfg.Payment.WebhookSecret,
		WebhookTolerance: cfg.Payment.WebhookTolerance,
	})

	settingsService := service.NewSettingsService(db)
	catalogService := service.NewCatalogService(db)
	cartService := service.NewCartService(db, db)
	orderService := service.NewOrderService(db, db, cartService, settingsService, redisClient, eventPublisher)
	paymentService := service.NewPaymentService(db, gateway, settingsService, eventPublisher,
		cfg.Payment.SuccessURL, cfg.Payment.CancelURL)
	adminService := service.NewAdminOrderService(db, eventPublisher)
	statsService := service.NewStatsService(db)
	dealerService := service.NewDealerService(db)
	authService := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("Failed to create admin account", zap.Error(err))
	}

	var mailer notify.Mailer
	if cfg.Mail.SMTPHost != "" {
		smtpMailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		if err != nil {
			logger.Fatal("Failed to configure SMTP", zap.Error(err))
		}
		mailer = smtpMailer
	} else {
		logger.Warn("SMTP_HOST not set, notifications will only be logged")
		mailer = notify.NewLogMailer(util.Named("mailer"))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, mailer, settingsService)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Auth:     authService,
		Catalog:  catalogService,
		Carts:    cartService,
		Orders:   orderService,
		Payments: paymentService,
		Admin:    adminService,
		Stats:    statsService,
		Dealers:  dealerService,
		Settings: settingsService,
	}, redisClient, cfg.RateLimit, map[string]api.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.GetDB().PingContext(ctx) },
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
