package handler

import (
	"saturn/internal/adapter/http/middleware"
	redisStore "saturn/internal/adapter/storage/redis"
	"saturn/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc      ports.AccountService
	AgentSvc        ports.AgentService
	AuthSvc         ports.AuthService
	ProxyExecutor   ports.ProxyExecutor
	Capabilities    ports.CapabilityRegistry
	ServiceRepo     ports.ServiceRepository
	WalletRepo      ports.WalletRepository
	TransactionRepo ports.TransactionRepository
	InvoiceRepo     ports.InvoiceRepository
	CheckoutRepo    ports.CheckoutRepository
	LightningClient ports.LightningClient
	Pricing         ports.PricingService
	CheckoutSvc     ports.CheckoutService
	SigSvc          ports.SignatureService
	LightningSecret string
	StripeSecret    string
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — runs the checkers in deps.HealthCheckers; the API
	// server passes PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules — signup/login only (spec §6).
	rules := middleware.SignupLoginRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	bearerAuth := middleware.BearerAuth(deps.AuthSvc)
	requireAgent := middleware.RequireAgent()
	requirePrimary := middleware.RequirePrimary()

	v1 := r.Group("/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AccountSvc)
	v1.POST("/signup", rl("signup"), authHandler.Signup)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("login"), authHandler.Login)
	}

	// --- Session or agent-key authenticated routes ---
	agentHandler := NewAgentHandler(deps.AgentSvc)
	agents := v1.Group("/agents", bearerAuth, requirePrimary)
	{
		agents.POST("", agentHandler.Create)
		agents.GET("", agentHandler.List)
		agents.GET("/:id/policy", agentHandler.GetPolicy)
		agents.PUT("/:id/policy", agentHandler.ReplacePolicy)
		agents.POST("/:id/policy/kill", agentHandler.Kill)
		agents.POST("/:id/policy/unkill", agentHandler.Unkill)
	}

	walletHandler := NewWalletHandler(deps.WalletRepo, deps.TransactionRepo, deps.InvoiceRepo, deps.CheckoutRepo, deps.LightningClient, deps.Pricing)
	wallet := v1.Group("/wallet", bearerAuth)
	{
		wallet.GET("", walletHandler.GetBalance)
		wallet.POST("/fund", walletHandler.FundInvoice)
		wallet.POST("/fund-card", walletHandler.FundCard)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	// --- Agent-key authenticated routes (the metered call surface) ---
	proxyHandler := NewProxyHandler(deps.ProxyExecutor, deps.Capabilities, deps.ServiceRepo)
	v1.GET("/capabilities", proxyHandler.ListCapabilities)
	v1.GET("/services", proxyHandler.ListServices)

	proxy := v1.Group("", bearerAuth, requireAgent)
	{
		proxy.POST("/proxy/:service_slug", proxyHandler.CallByService)
		proxy.POST("/capabilities/:capability", proxyHandler.CallByCapability)
	}

	// --- Internal webhook routes (signature-authenticated, not bearer) ---
	webhookHandler := NewWebhookHandler(deps.CheckoutSvc, deps.SigSvc, deps.LightningSecret, deps.StripeSecret, deps.Logger)
	internalGroup := r.Group("/internal/webhooks")
	{
		internalGroup.POST("/lightning", webhookHandler.Lightning)
		internalGroup.POST("/stripe", webhookHandler.Stripe)
	}

	return r
}
