package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanchay-service/sanchay_service/internal/api/handlers"
	"github.com/sanchay-service/sanchay_service/internal/api/routes"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/autoinvest"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/autosave"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/bankaccount"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/onboarding"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/cache"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/config"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/database"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/repositories"
	"github.com/sanchay-service/sanchay_service/internal/workers/investsweep"
	"github.com/sanchay-service/sanchay_service/pkg/crypto"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// @title Sanchay Service API
// @version 1.0
// @description Savings and micro-investment platform API

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	zapLog := log.Zap()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	cipher := crypto.NewCipher(cfg.Security.EncryptionKey)

	// Repositories
	userRepo := repositories.NewUserRepository(db, zapLog)
	kycRepo := repositories.NewKYCDocumentRepository(db, userRepo, zapLog)
	bankRepo := repositories.NewBankAccountRepository(db, zapLog)
	walletRepo := repositories.NewWalletRepository(db, zapLog)
	txnRepo := repositories.NewTransactionRepository(db, zapLog)
	ruleRepo := repositories.NewAutoInvestRuleRepository(db, zapLog)
	invRepo := repositories.NewInvestmentRepository(db, zapLog)
	productRepo := repositories.NewProductRepository(db, zapLog)
	prefRepo := repositories.NewPreferenceRepository(db, zapLog)

	// External adapters
	otpStore := cache.NewOTPStore(redisClient, cfg.Identity.OTPTTL())
	priceCache := cache.NewPriceCache(redisClient, cfg.NAV.CacheTTL())
	identity := adapters.NewIdentityProvider(zapLog, adapters.IdentityProviderConfig{
		APIKey:      cfg.Identity.APIKey,
		BaseURL:     cfg.Identity.BaseURL,
		Environment: cfg.Identity.Environment,
		Timeout:     cfg.Identity.Timeout(),
	})
	nav := adapters.NewNAVProvider(zapLog, adapters.NAVProviderConfig{
		APIKey:      cfg.NAV.APIKey,
		BaseURL:     cfg.NAV.BaseURL,
		Environment: cfg.NAV.Environment,
		Timeout:     cfg.NAV.Timeout(),
	}, priceCache)
	notifier := adapters.NewNotificationDispatcher(zapLog, prefRepo)

	// Domain services
	onboardingSvc := onboarding.NewService(
		userRepo, kycRepo, bankRepo, identity, otpStore, cipher, notifier,
		zapLog, cfg.Identity.OTPTTL(), cfg.AutoSave.DefaultPercent)
	autosaveSvc := autosave.NewService(
		userRepo, kycRepo, walletRepo, txnRepo, bankRepo, notifier,
		zapLog, cfg.AutoSave.MinPercent, cfg.AutoSave.MaxPercent)
	autoinvestSvc := autoinvest.NewService(
		userRepo, kycRepo, ruleRepo, productRepo, walletRepo, invRepo, nav,
		notifier, zapLog)
	bankSvc := bankaccount.NewService(bankRepo, kycRepo, identity, cipher, notifier, zapLog)

	// HTTP layer
	router := routes.SetupRoutes(cfg, log, &routes.Handlers{
		Health:     handlers.NewHealthHandler(db, redisClient, log),
		Onboarding: handlers.NewOnboardingHandler(onboardingSvc, cfg, log),
		Payment:    handlers.NewPaymentHandler(autosaveSvc, autoinvestSvc, log),
		AutoInvest: handlers.NewAutoInvestHandler(autoinvestSvc, log),
		Bank:       handlers.NewBankHandler(bankSvc, log),
		Preference: handlers.NewPreferenceHandler(prefRepo, log),
	})

	// Scheduled invest sweep
	sweep := investsweep.NewScheduler(
		autoinvestSvc, cfg.AutoInvest.SweepSchedule, cfg.AutoInvest.SweepConcurrency, zapLog)
	if err := sweep.Start(); err != nil {
		log.Fatal("Failed to start invest sweep scheduler", "error", err)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	sweep.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}
