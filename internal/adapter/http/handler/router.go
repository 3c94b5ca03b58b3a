package handler

import (
	"wallet-ledger-engine/internal/adapter/http/middleware"
	"wallet-ledger-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	DepositSvc     ports.DepositService
	PurchaseSvc    ports.PurchaseService
	TransferSvc    ports.TransferService
	RefundSvc      ports.RefundService
	WithdrawalSvc  ports.WithdrawalService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if a limiter is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.TokenSvc)
	v1.POST("/auth/token", authHandler.IssueToken)

	depositHandler := NewDepositHandler(deps.DepositSvc)
	// The gateway redirects the user's browser here; the authority parameter
	// is the credential.
	v1.GET("/payments/callback", depositHandler.Callback)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	paymentHandler := NewPaymentHandler(deps.PurchaseSvc, deps.RefundSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc, deps.WithdrawalSvc)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallet"), walletHandler.CreateWallet)
		wallets.GET("/me", rl("wallet"), walletHandler.GetWallet)
		wallets.POST("/me/accounts", rl("wallet"), walletHandler.CreateAccount)
		wallets.POST("/me/bank-accounts", rl("wallet"), walletHandler.AddBankAccount)
		wallets.DELETE("/me/bank-accounts/:id", rl("wallet"), walletHandler.RemoveBankAccount)
		wallets.POST("/me/bank-accounts/:id/verify", rl("wallet"), walletHandler.VerifyBankAccount)
		wallets.POST("/me/credits", rl("wallet"), walletHandler.AssignCredit)
		wallets.POST("/me/credits/settle", rl("wallet"), walletHandler.SettleCredit)
	}

	deposits := v1.Group("/deposits", jwtAuth)
	{
		deposits.POST("", rl("deposits"), depositHandler.Deposit)
		deposits.POST("/direct", rl("deposits"), depositHandler.DirectDeposit)
	}

	purchases := v1.Group("/purchases", jwtAuth)
	{
		purchases.POST("", rl("purchases"), paymentHandler.Purchase)
	}

	refunds := v1.Group("/refunds", jwtAuth)
	{
		refunds.POST("", rl("refunds"), paymentHandler.Refund)
	}

	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), transferHandler.Transfer)
	}

	withdrawals := v1.Group("/withdrawals", jwtAuth)
	{
		withdrawals.POST("", rl("withdrawals"), transferHandler.Withdraw)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.GET("", rl("wallet"), walletHandler.ListTransactions)
	}

	return r
}
