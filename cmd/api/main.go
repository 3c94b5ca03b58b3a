package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger-engine/config"
	"wallet-ledger-engine/internal/adapter/gateway"
	httpHandler "wallet-ledger-engine/internal/adapter/http/handler"
	pgStorage "wallet-ledger-engine/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger-engine/internal/adapter/storage/redis"
	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/internal/service"
	"wallet-ledger-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Ledger Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	outboxRepo := pgStorage.NewEventOutboxRepo()
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis adapters
	callbackCache := redisStorage.NewCallbackCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	eventPublisher := redisStorage.NewEventPublisher(rdb, log)

	// Payment gateway client
	gatewayClient := gateway.NewZarinPalClient(cfg.Gateway, log)

	// Token service
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Wallet policy from configuration
	currencies := make([]domain.Currency, 0, len(cfg.Wallet.SupportedCurrencies))
	for _, c := range cfg.Wallet.SupportedCurrencies {
		currencies = append(currencies, domain.Currency(c))
	}
	policy := domain.WalletPolicy{
		MaxCurrencyAccounts: cfg.Wallet.MaxCurrencyAccounts,
		MaxBankAccounts:     cfg.Wallet.MaxBankAccounts,
		SupportedCurrencies: currencies,
	}
	fees := service.NewTransferFeeSchedule(cfg.Transfer.FeePercent, cfg.Transfer.FeeMin, cfg.Transfer.FeeMax)
	dailyLimit := cfg.Wallet.DailyOutflowLimit

	// Initialize business services
	walletSvc := service.NewWalletService(walletRepo, txRepo, outboxRepo, transactor, eventPublisher, policy, log)
	depositSvc := service.NewDepositService(walletRepo, txRepo, outboxRepo, callbackCache, gatewayClient, transactor, eventPublisher, policy, log)
	purchaseSvc := service.NewPurchaseService(walletRepo, txRepo, outboxRepo, gatewayClient, transactor, eventPublisher, dailyLimit, log)
	transferSvc := service.NewTransferService(walletRepo, txRepo, outboxRepo, transactor, eventPublisher, fees, policy, dailyLimit, log)
	refundSvc := service.NewRefundService(walletRepo, txRepo, outboxRepo, transactor, eventPublisher, log)
	withdrawalSvc := service.NewWithdrawalService(walletRepo, txRepo, outboxRepo, transactor, eventPublisher, dailyLimit, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		DepositSvc:     depositSvc,
		PurchaseSvc:    purchaseSvc,
		TransferSvc:    transferSvc,
		RefundSvc:      refundSvc,
		WithdrawalSvc:  withdrawalSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
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
