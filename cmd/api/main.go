package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saturn/config"
	httpHandler "saturn/internal/adapter/http/handler"
	pgStorage "saturn/internal/adapter/storage/postgres"
	redisStorage "saturn/internal/adapter/storage/redis"
	"saturn/internal/cache"
	"saturn/internal/core/ports"
	"saturn/internal/lightning"
	"saturn/internal/service"
	"saturn/internal/service/adapter"
	"saturn/internal/service/normalize"
	"saturn/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Saturn gateway")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.RunMigrations(cfg.Database, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	agentRepo := pgStorage.NewAgentRepo(pool)
	policyRepo := pgStorage.NewPolicyRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	txnRepo := pgStorage.NewTransactionRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	serviceRepo := pgStorage.NewServiceRepo(pool)
	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	checkoutRepo := pgStorage.NewCheckoutRepo(pool)

	// Ambient crypto services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	sigSvc := service.NewHMACSignatureService()

	// C1-C9 core
	ledgerSvc := service.NewLedgerService(walletRepo, txnRepo, agentRepo, policyRepo, pgStorage.NewTransactor(pool), log)
	policySvc := service.NewPolicyService(auditRepo, log)
	auditSvc := service.NewAuditService(auditRepo, policySvc, log)
	pricingSvc := service.NewPricingService(serviceRepo, log)
	capabilities := service.NewCapabilityRegistry()
	adapterRegistry := adapter.NewRegistry()
	normalizer := normalize.New()
	authCache := cache.NewAuthCache()

	// Register one GenericHTTPAdapter per active service.
	activeServices, err := serviceRepo.ListActive(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load active services")
	}
	for i := range activeServices {
		svc := &activeServices[i]
		a, err := adapter.NewGenericHTTPAdapter(svc, pricingSvc, cfg.Adapter.RequestsPerSecond, cfg.Adapter.Burst, cfg.Adapter.Timeout)
		if err != nil {
			log.Error().Err(err).Str("service", svc.Slug).Msg("Failed to build adapter for service, skipping")
			continue
		}
		adapterRegistry.Register(svc.Slug, a)
	}

	// Seed the capability registry from config.
	for _, m := range cfg.Capability.Mappings {
		capabilities.Register(m.Capability, m.ServiceSlug, m.Priority)
	}

	proxyExecutor := service.NewProxyExecutor(capabilities, adapterRegistry, pricingSvc, policySvc, ledgerSvc, auditSvc, normalizer, log)

	// Account/agent/auth services
	accountSvc := service.NewAccountService(accountRepo, agentRepo, walletRepo, policyRepo, hashSvc, tokenSvc, log)
	agentSvc := service.NewAgentService(agentRepo, policyRepo, policySvc, authCache, hashSvc, log)
	authSvc := service.NewAuthService(authCache, accountRepo, agentRepo, walletRepo, policyRepo, hashSvc, tokenSvc, log)

	// Lightning client + invoice watcher + checkout webhook service
	lnClient, err := lightning.NewClient(cfg.LightningConfigView())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Lightning node")
	}
	defer lnClient.Close()

	checkoutSvc := service.NewCheckoutService(invoiceRepo, checkoutRepo, walletRepo, accountRepo, ledgerSvc, log)

	// Rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:      accountSvc,
		AgentSvc:        agentSvc,
		AuthSvc:         authSvc,
		ProxyExecutor:   proxyExecutor,
		Capabilities:    capabilities,
		ServiceRepo:     serviceRepo,
		WalletRepo:      walletRepo,
		TransactionRepo: txnRepo,
		InvoiceRepo:     invoiceRepo,
		CheckoutRepo:    checkoutRepo,
		LightningClient: lnClient,
		Pricing:         pricingSvc,
		CheckoutSvc:     checkoutSvc,
		SigSvc:          sigSvc,
		LightningSecret: cfg.Webhook.LightningSecret,
		StripeSecret:    cfg.Webhook.StripeSecret,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Logger:          log,
	})

	// Background workers: BTC/USD rate poller, driven independently of any
	// inbound request.
	pollerCtx, cancelPoller := context.WithCancel(context.Background())
	defer cancelPoller()
	ratePoller := service.NewRatePoller(pricingSvc, cfg.RatePoller.Sources, cfg.RatePoller.Interval, log)
	go func() {
		if err := ratePoller.Run(pollerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Rate poller stopped")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
