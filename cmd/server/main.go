package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dergipress/payment-service/internal/adapters/email"
	"github.com/dergipress/payment-service/internal/adapters/kuveyt"
	"github.com/dergipress/payment-service/internal/adapters/postgres"
	"github.com/dergipress/payment-service/internal/adapters/secrets"
	"github.com/dergipress/payment-service/internal/config"
	"github.com/dergipress/payment-service/internal/domain/ports"
	adminHandler "github.com/dergipress/payment-service/internal/handlers/admin"
	callbackHandler "github.com/dergipress/payment-service/internal/handlers/callback"
	checkoutHandler "github.com/dergipress/payment-service/internal/handlers/checkout"
	entitlementService "github.com/dergipress/payment-service/internal/services/entitlement"
	paymentService "github.com/dergipress/payment-service/internal/services/payment"
	pkghttp "github.com/dergipress/payment-service/pkg/http"
	"github.com/dergipress/payment-service/pkg/logging"
	"github.com/dergipress/payment-service/pkg/middleware"
	"github.com/dergipress/payment-service/pkg/observability"
	"github.com/dergipress/payment-service/pkg/resilience"
	"github.com/dergipress/payment-service/pkg/shutdown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting payment service",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	secretManager, err := initSecretManager(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}

	// Resolve the merchant password once at startup. An incomplete merchant
	// setup must fail here, never at charge time. The secret backend may still
	// be coming up alongside us, so retry before giving up.
	var merchantPassword string
	err = resilience.Retry(ctx, 5, resilience.StartupBackoff(), func() error {
		var fetchErr error
		merchantPassword, fetchErr = secretManager.GetSecret(ctx, cfg.Bank.PasswordSecret)
		return fetchErr
	})
	if err != nil {
		logger.Fatal("Failed to resolve merchant password", zap.Error(err))
	}

	gatewayCfg := kuveyt.DefaultConfig(cfg.Bank.Environment)
	gatewayCfg.OkCallbackURL = cfg.Bank.OkCallbackURL
	gatewayCfg.FailCallbackURL = cfg.Bank.FailCallbackURL
	gatewayCfg.Timeout = time.Duration(cfg.Bank.TimeoutSeconds) * time.Second

	bankClient := pkghttp.NewClient(pkghttp.BankClientConfig(), gatewayCfg.Timeout)
	gateway, err := kuveyt.NewGateway(gatewayCfg, &kuveyt.MerchantAccount{
		MerchantID: cfg.Bank.MerchantID,
		CustomerID: cfg.Bank.CustomerID,
		Username:   cfg.Bank.Username,
		Password:   merchantPassword,
	}, bankClient, logger)
	if err != nil {
		logger.Fatal("Failed to initialize virtual POS gateway", zap.Error(err))
	}

	logger.Info("Virtual POS gateway initialized",
		zap.String("environment", cfg.Bank.Environment),
	)

	db := postgres.NewDBExecutor(pool)
	paymentRepo := postgres.NewPaymentRepository(db)
	consentRepo := postgres.NewConsentRepository(db)
	planRepo := postgres.NewPlanRepository(db)
	entitlementRepo := postgres.NewEntitlementRepository(db)

	portLogger := logging.NewZapLogger(logger)

	ledger := entitlementService.NewService(planRepo, entitlementRepo, portLogger)

	var notifier ports.Notifier
	if cfg.Email.APIURL != "" {
		notifier = email.NewMailtrapNotifier(email.Config{
			APIURL:   cfg.Email.APIURL,
			APIToken: cfg.Email.APIToken,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, pkghttp.NewClient(pkghttp.NotifierClientConfig(), 15*time.Second))
	} else {
		logger.Warn("Email notifications disabled: MAILTRAP_API_URL not set")
	}

	payments := paymentService.NewService(
		db, paymentRepo, consentRepo, planRepo, gateway, ledger, notifier, portLogger,
	)

	checkout := checkoutHandler.NewHandler(payments, planRepo, logger)
	callback := callbackHandler.NewHandler(payments, logger)
	callback.SuccessURL = cfg.Bank.SuccessURL
	callback.FailureURL = cfg.Bank.FailureURL
	admin := adminHandler.NewHandler(payments, logger)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	health := observability.NewHealthChecker(pool)

	// A callback caught mid-provision must finish before the process exits;
	// cutting it off risks a charged card with no recorded outcome.
	callbackTracker := shutdown.NewCallbackTracker(logger)

	router := buildRouter(checkout, callback, admin, limiter, health, callbackTracker)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	manager := shutdown.NewManager(logger, 30*time.Second)
	manager.Register("database", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	manager.Register("rate-limiter", func(ctx context.Context) error {
		limiter.Shutdown()
		return nil
	})
	manager.Register("bank-callbacks", callbackTracker.Drain)
	manager.Register("http-server", server.Shutdown)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	manager.WaitForShutdown()
	logger.Info("Payment service stopped")
}

func buildRouter(
	checkout *checkoutHandler.Handler,
	callback *callbackHandler.Handler,
	admin *adminHandler.Handler,
	limiter *middleware.RateLimiter,
	health *observability.HealthChecker,
	callbackTracker *shutdown.CallbackTracker,
) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", health.HealthHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(observability.Middleware("/api/v1/plans")).
			Get("/plans", checkout.ListPlans)

		r.With(observability.Middleware("/api/v1/consents")).
			Get("/consents", checkout.ListConsentDocuments)

		r.With(limiter.Middleware, observability.Middleware("/api/v1/checkout")).
			Post("/checkout", checkout.Checkout)

		// The bank posts here; never rate limited, and drained on shutdown.
		r.With(observability.Middleware("/api/v1/payments/callback")).
			Post("/payments/callback", callbackTracker.Wrap(callback.HandleCallback))

		r.Route("/admin", func(r chi.Router) {
			r.Use(observability.Middleware("/api/v1/admin"))
			r.Get("/payments/{id}", admin.GetPayment)
			r.Post("/payments/{id}/cancel", admin.CancelPayment)
			r.Post("/payments/{id}/refund", admin.RefundPayment)
			r.Post("/payments/{id}/sync", admin.SyncPayment)
			r.Get("/users/{userID}/payments", admin.ListUserPayments)
		})
	})

	return r
}

func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretManager, error) {
	switch cfg.Secrets.Backend {
	case "aws":
		return secrets.NewAWSSecretsManager(ctx,
			secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion), logger)
	case "vault":
		vcfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress, cfg.Secrets.VaultToken)
		vcfg.MountPath = cfg.Secrets.VaultMount
		return secrets.NewVaultSecretManager(vcfg, logger)
	case "env":
		return secrets.NewEnvSecretManager(logger), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
	}
}

// initLogger initializes the logger
func initLogger() *zap.Logger {
	env := os.Getenv("ENVIRONMENT")

	if env == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}
