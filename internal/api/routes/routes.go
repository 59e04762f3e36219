package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanchay-service/sanchay_service/internal/api/handlers"
	"github.com/sanchay-service/sanchay_service/internal/api/middleware"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/config"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// Handlers groups the handler set wired in main
type Handlers struct {
	Health     *handlers.HealthHandler
	Onboarding *handlers.OnboardingHandler
	Payment    *handlers.PaymentHandler
	AutoInvest *handlers.AutoInvestHandler
	Bank       *handlers.BankHandler
	Preference *handlers.PreferenceHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(cfg *config.Config, log *logger.Logger, h *Handlers) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.Recovery(log))

	// Probes and metrics, no auth required
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Onboarding.Register)
		auth.POST("/login", h.Onboarding.Login)
	}

	protected := v1.Group("")
	protected.Use(middleware.Authentication(cfg, log))
	{
		onboarding := protected.Group("/onboarding")
		{
			onboarding.GET("/status", h.Onboarding.GetStatus)
			onboarding.PUT("/profile", h.Onboarding.CompleteProfile)
			onboarding.PUT("/pin", h.Onboarding.SetPIN)
			onboarding.PUT("/biometric", h.Onboarding.EnableBiometric)
		}

		kyc := protected.Group("/kyc")
		{
			kyc.POST("/requirement", h.Onboarding.CheckKYCRequirement)
			kyc.POST("/pan", h.Onboarding.VerifyPAN)
			kyc.POST("/aadhaar/otp", h.Onboarding.InitAadhaarOTP)
			kyc.POST("/aadhaar/confirm", h.Onboarding.ConfirmAadhaarOTP)
			kyc.POST("/liveness", h.Onboarding.VerifyLiveness)
		}

		protected.POST("/payments", h.Payment.RecordPayment)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("", h.Payment.GetWallet)
			wallet.GET("/transactions", h.Payment.ListTransactions)
			wallet.PUT("/autosave-percent", h.Payment.SetAutoSavePercent)
			wallet.POST("/withdraw", h.Payment.Withdraw)
		}

		rules := protected.Group("/autoinvest/rules")
		{
			rules.POST("", h.AutoInvest.CreateRule)
			rules.GET("", h.AutoInvest.ListRules)
			rules.PATCH("/:rule_id", h.AutoInvest.UpdateRule)
			rules.DELETE("/:rule_id", h.AutoInvest.DeleteRule)
		}
		protected.GET("/investments", h.AutoInvest.ListInvestments)
		protected.GET("/products", h.AutoInvest.ListProducts)

		bank := protected.Group("/bank-accounts")
		{
			bank.POST("", h.Bank.Add)
			bank.GET("", h.Bank.List)
			bank.POST("/:account_id/verify", h.Bank.Verify)
			bank.PUT("/:account_id/primary", h.Bank.SetPrimary)
			bank.DELETE("/:account_id", h.Bank.Delete)
		}

		preferences := protected.Group("/preferences")
		{
			preferences.GET("", h.Preference.Get)
			preferences.PUT("", h.Preference.Update)
		}
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth([]string{cfg.Security.AdminAPIKey}))
	{
		admin.POST("/users/:user_id/kyc/reset", h.Onboarding.AdminResetKYC)
	}

	return router
}
