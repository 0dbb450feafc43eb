package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/veralix/server/internal/module/notify"
	"github.com/veralix/server/internal/module/payment"
	paymentprovider "github.com/veralix/server/internal/module/payment/provider"
	sharedauth "github.com/veralix/server/internal/shared/auth"
	sharedcache "github.com/veralix/server/internal/shared/cache"
	"github.com/veralix/server/internal/shared/config"
	"github.com/veralix/server/internal/shared/database"
	"github.com/veralix/server/internal/shared/logger"
	"github.com/veralix/server/internal/utils/metrics"
	"github.com/veralix/server/internal/utils/middleware"
)

// App wires configuration, storage, gateways, and HTTP routes together.
type App struct {
	config    *config.Config
	db        *gorm.DB
	redis     goredis.UniversalClient
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	metrics   *metrics.Metrics

	jwtManager *sharedauth.JWTManager

	paymentService *payment.Service
	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler
	reconciler     *payment.Reconciler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		metrics:   metrics.New(""),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := db.AutoMigrate(
		&payment.PendingPayment{},
		&payment.WebhookLog{},
		&payment.SettledPurchase{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// Redis is optional; without it the idempotency middleware is skipped.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			zapLog.Warn("redis connection failed, idempotency disabled", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	app.jwtManager = sharedauth.NewJWTManager(cfg.Auth.JWTSecret)

	if err := app.initPaymentModule(); err != nil {
		return nil, fmt.Errorf("init payment module: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	app.reconciler = payment.NewReconciler(app.paymentService, cfg.Payments.ReconcileInterval, zapLog)
	app.reconciler.Start(context.Background())

	return app, nil
}

// initPaymentModule builds the gateway registry, repository, and payment
// service. Gateways are registered only when their credentials are configured.
func (a *App) initPaymentModule() error {
	registry := payment.NewGatewayRegistry()

	if a.config.Bold.APIKey != "" {
		registry.Register(paymentprovider.NewBoldGateway(&paymentprovider.BoldConfig{
			APIBaseURL:     a.config.Bold.APIBaseURL,
			APIKey:         a.config.Bold.APIKey,
			SecretKey:      a.config.Bold.SecretKey,
			WebhookSecret:  a.config.Bold.WebhookSecret,
			PaymentMethods: a.config.Bold.PaymentMethods,
			LinkExpiry:     a.config.Payments.LinkExpiry,
			Timeout:        a.config.Payments.GatewayTimeout,
		}, a.metrics, a.zapLogger))
	}

	if a.config.Wompi.PrivateKey != "" {
		registry.Register(paymentprovider.NewWompiGateway(&paymentprovider.WompiConfig{
			APIBaseURL:   a.config.Wompi.APIBaseURL,
			PublicKey:    a.config.Wompi.PublicKey,
			PrivateKey:   a.config.Wompi.PrivateKey,
			EventsSecret: a.config.Wompi.EventsSecret,
			Timeout:      a.config.Payments.GatewayTimeout,
		}, a.metrics, a.zapLogger))
	}

	if len(registry.List()) == 0 {
		a.zapLogger.Warn("no payment gateways configured")
	}

	var notifier payment.Notifier
	if a.config.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(&notify.SMTPConfig{
			Host:         a.config.SMTP.Host,
			Port:         a.config.SMTP.Port,
			User:         a.config.SMTP.User,
			Password:     a.config.SMTP.Password,
			FromAddress:  a.config.SMTP.FromAddress,
			FromName:     a.config.SMTP.FromName,
			DashboardURL: a.config.SMTP.DashboardURL,
		}, a.zapLogger)
	} else {
		notifier = notify.NewNoOpNotifier(a.zapLogger)
	}

	repo := payment.NewRepository(a.db)
	resolver := payment.NewResolver(repo, a.zapLogger)
	applier := payment.NewApplier(repo, notifier, a.metrics, a.zapLogger)

	a.paymentService = payment.NewService(
		repo,
		registry,
		resolver,
		applier,
		&a.config.Payments,
		a.metrics,
		a.zapLogger,
	)

	a.paymentHandler = payment.NewHandler(a.paymentService)
	a.webhookHandler = payment.NewWebhookHandler(a.paymentService, a.zapLogger)

	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// registerRoutes registers routes for all modules.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	// Payment operations require a valid token from the identity system.
	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(a.jwtManager))
	if a.redis != nil {
		protected.Use(middleware.Idempotency(a.redis, middleware.DefaultIdempotencyConfig()))
	}
	a.paymentHandler.RegisterRoutes(protected)

	// Webhooks authenticate by signature, not by token.
	a.webhookHandler.RegisterRoutes(a.router.Group("/webhooks"))
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	if a.reconciler != nil {
		a.reconciler.Stop()
	}

	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}

	if a.db != nil {
		_ = database.Close(a.db)
	}
}
