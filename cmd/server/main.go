package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/cache"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/database"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/events"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/logging"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/postgres"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/secrets"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/adapters/stripepay"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/auth"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/config"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/deposit"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/quote"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/handlers/webhook"
	apimw "github.com/peiffer1998/EIPR-Portal-sub001/internal/middleware"
	depositsvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/deposit"
	invoicesvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/invoice"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/promotion"
	quotesvc "github.com/peiffer1998/EIPR-Portal-sub001/internal/services/quote"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/services/reconciliation"
	edgemw "github.com/peiffer1998/EIPR-Portal-sub001/pkg/middleware"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/observability"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/resilience"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/shutdown"
	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/timeutil"
)

const (
	version              = "0.1.0"
	poolMonitorInterval  = 30 * time.Second
	healthCheckTimeout   = 2 * time.Second
	bearerTokenLifetime  = time.Hour
	startupSecretTimeout = 15 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Environment, cfg.Logger.Level)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting billing service",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
	)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	// Database
	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbAdapter, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	shutdownMgr.RegisterNoErr("database", dbAdapter.Close)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	dbAdapter.StartPoolMonitoring(monitorCtx, poolMonitorInterval)
	shutdownMgr.RegisterNoErr("pool-monitor", stopMonitor)

	healthChecker := observability.NewHealthChecker(healthCheckTimeout)
	healthChecker.Require("database", dbAdapter.HealthCheck)

	// Secrets
	secretCtx, cancelSecrets := context.WithTimeout(ctx, startupSecretTimeout)
	defer cancelSecrets()
	secretStore, err := secrets.NewSecretStore(secretCtx, secrets.ConfigFrom(cfg.Secrets), logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret store", zap.Error(err))
	}

	jwtKey := mustResolve(secretCtx, logger, secretStore, cfg.Auth.JWTSecretName)
	stripeKey := mustResolve(secretCtx, logger, secretStore, cfg.Stripe.APIKeySecret)
	webhookSecret := mustResolve(secretCtx, logger, secretStore, cfg.Stripe.WebhookSecretName)

	deps := initDependencies(ctx, cfg, logger, dbAdapter, healthChecker, shutdownMgr, jwtKey, stripeKey, webhookSecret)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handlers.NewRouter(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	shutdownMgr.RegisterHTTPServer("http", httpServer)

	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	if errs := shutdownMgr.WaitForShutdown(ctx); len(errs) > 0 {
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Billing service stopped")
}

// initDependencies builds repositories, services and handlers. Components with
// background work are registered with the shutdown manager in start order.
func initDependencies(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	dbAdapter *database.PostgreSQLAdapter,
	healthChecker *observability.HealthChecker,
	shutdownMgr *shutdown.Manager,
	jwtKey, stripeKey, webhookSecret string,
) handlers.RouterDeps {
	svcLogger := logging.NewZapLogger(logger)
	db := postgres.NewDBExecutor(dbAdapter.Pool())
	timeouts := resilience.DefaultTimeoutConfig()

	referenceData := postgres.NewReservationRepository(db)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	depositRepo := postgres.NewDepositRepository(db)
	transactionRepo := postgres.NewPaymentTransactionRepository(db)
	eventRepo := postgres.NewPaymentEventRepository(db)

	var promotionReader ports.PromotionReader = referenceData
	if cfg.Cache.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, promotion cache disabled", zap.Error(err))
		} else {
			promotionReader = cache.NewPromotionCache(referenceData, client, cfg.Cache.PromotionTTL, svcLogger)
			healthChecker.Optional("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			shutdownMgr.RegisterCloser("redis", client)
		}
	}

	var publisher ports.EventPublisher = events.NewNoopPublisher(svcLogger)
	if cfg.Events.AMQPURL != "" {
		amqpPublisher := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      cfg.Events.AMQPURL,
			Exchange: cfg.Events.Exchange,
		}, svcLogger)
		publisher = amqpPublisher
		shutdownMgr.RegisterCloser("amqp", amqpPublisher)
	}

	breaker := stripepay.DefaultCircuitBreakerConfig()
	breaker.MaxFailures = uint32(cfg.Stripe.CircuitMaxFailures)
	breaker.Cooldown = cfg.Stripe.CircuitCooldown
	provider := stripepay.NewClient(stripeKey, &breaker, svcLogger)

	var verifier ports.SignatureVerifier
	switch cfg.Stripe.WebhookVerifier {
	case "hmac":
		verifier = stripepay.NewHMACVerifier(webhookSecret, cfg.Stripe.WebhookHMACHeader)
	default:
		verifier = stripepay.NewWebhookVerifier(webhookSecret)
	}

	var tax ports.TaxPolicy = quotesvc.ZeroTax{}
	if cfg.Billing.TaxRatePercent.IsPositive() {
		tax = quotesvc.NewFlatRateTax(cfg.Billing.TaxRatePercent)
	}

	promotions := promotion.NewService(promotionReader, svcLogger, timeutil.Now)
	quotes := quotesvc.NewService(db, referenceData, referenceData, promotions, tax, svcLogger)
	ledger := invoicesvc.NewService(db, referenceData, invoiceRepo, promotions, svcLogger, timeutil.Now)
	deposits := depositsvc.NewService(db, referenceData, depositRepo, invoiceRepo, svcLogger, timeutil.Now)
	intents := reconciliation.NewIntentService(db, ledger, transactionRepo, provider, cfg.Billing.Currency, svcLogger, timeutil.Now)
	reconciler := reconciliation.NewService(db, eventRepo, transactionRepo, ledger, publisher, svcLogger, timeutil.Now)

	tokens, err := auth.NewTokenManager([]byte(jwtKey), cfg.Auth.Issuer, bearerTokenLifetime)
	if err != nil {
		logger.Fatal("Invalid JWT signing key", zap.Error(err))
	}

	apiLimiter := edgemw.NewRateLimiter(cfg.RateLimit.APIRequestsPerSecond, cfg.RateLimit.APIBurst, apimw.AccountKey, logger)
	webhookLimiter := edgemw.NewRateLimiter(cfg.RateLimit.WebhookRequestsPerSecond, cfg.RateLimit.WebhookBurst, edgemw.ClientIP, logger)
	shutdownMgr.RegisterNoErr("api-rate-limiter", apiLimiter.Shutdown)
	shutdownMgr.RegisterNoErr("webhook-rate-limiter", webhookLimiter.Shutdown)

	return handlers.RouterDeps{
		Invoices:       invoice.NewHandler(ledger, intents, timeouts, logger),
		Deposits:       deposit.NewHandler(deposits, logger),
		Quotes:         quote.NewHandler(quotes, logger),
		Webhooks:       webhook.NewHandler(verifier, reconciler, timeouts, logger),
		Authenticator:  apimw.NewAuthenticator(tokens, logger),
		APILimiter:     apiLimiter,
		WebhookLimiter: webhookLimiter,
		Timeouts:       timeouts,
		Health:         healthChecker,
		Logger:         logger,
		Development:    !cfg.IsProduction(),
	}
}

func mustResolve(ctx context.Context, logger *zap.Logger, store ports.SecretStore, name string) string {
	value, err := secrets.Resolve(ctx, store, name, "")
	if err != nil {
		logger.Fatal("Failed to resolve secret", zap.String("secret", name), zap.Error(err))
	}
	return value
}

