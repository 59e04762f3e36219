package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/onboarding"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/config"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// OnboardingHandler handles registration, onboarding status and the KYC
// verification endpoints
type OnboardingHandler struct {
	service *onboarding.Service
	cfg     *config.Config
	logger  *logger.Logger
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(service *onboarding.Service, cfg *config.Config, logger *logger.Logger) *OnboardingHandler {
	return &OnboardingHandler{service: service, cfg: cfg, logger: logger}
}

// AuthResponse carries the access token issued on registration and login
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in_seconds"`
}

type loginRequest struct {
	Mobile string `json:"mobile" validate:"required,len=10,numeric"`
	PIN    string `json:"pin" validate:"required,len=4,numeric"`
}

func (h *OnboardingHandler) tokenFor(userID uuid.UUID) (AuthResponse, error) {
	ttl := time.Duration(h.cfg.JWT.AccessTTL) * time.Second
	token, err := issueToken(userID, h.cfg.JWT.Secret, h.cfg.JWT.Issuer, ttl)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		UserID:      userID.String(),
		AccessToken: token,
		ExpiresIn:   h.cfg.JWT.AccessTTL,
	}, nil
}

// Register creates a new user account
// @Summary Register a new user
// @Tags onboarding
// @Accept json
// @Produce json
// @Param request body entities.RegisterRequest true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *OnboardingHandler) Register(c *gin.Context) {
	var req entities.RegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp, err := h.tokenFor(user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with mobile and PIN
// @Summary Log in
// @Tags onboarding
// @Accept json
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 401 {object} entities.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *OnboardingHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.service.Authenticate(c.Request.Context(), req.Mobile, req.PIN)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp, err := h.tokenFor(user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetStatus returns the derived onboarding state
// @Summary Get onboarding status
// @Tags onboarding
// @Produce json
// @Success 200 {object} entities.OnboardingStatusResponse
// @Router /api/v1/onboarding/status [get]
func (h *OnboardingHandler) GetStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type kycRequirementRequest struct {
	Action entities.KYCAction `json:"action" validate:"required,oneof=PAYMENT INVESTMENT"`
	Amount *decimal.Decimal   `json:"amount,omitempty"`
}

// CheckKYCRequirement reports whether an action needs more verification
// @Summary Check KYC requirement for an action
// @Tags onboarding
// @Accept json
// @Produce json
// @Success 200 {object} entities.KYCRequirementResponse
// @Router /api/v1/kyc/requirement [post]
func (h *OnboardingHandler) CheckKYCRequirement(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req kycRequirementRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.CheckKYCRequirement(c.Request.Context(), userID, req.Action, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CompleteProfile stores the user's name and email
// @Summary Complete profile setup
// @Tags onboarding
// @Accept json
// @Router /api/v1/onboarding/profile [put]
func (h *OnboardingHandler) CompleteProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.CompleteProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.CompleteProfile(c.Request.Context(), userID, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_complete": true})
}

// SetPIN stores the transaction PIN
// @Summary Set transaction PIN
// @Tags onboarding
// @Accept json
// @Router /api/v1/onboarding/pin [put]
func (h *OnboardingHandler) SetPIN(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.SetPINRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.SetPIN(c.Request.Context(), userID, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pin_set": true})
}

type biometricRequest struct {
	Enabled bool `json:"enabled"`
}

// EnableBiometric toggles biometric login
// @Summary Enable or disable biometric login
// @Tags onboarding
// @Accept json
// @Router /api/v1/onboarding/biometric [put]
func (h *OnboardingHandler) EnableBiometric(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req biometricRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.EnableBiometric(c.Request.Context(), userID, req.Enabled); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"biometric_enabled": req.Enabled})
}

// VerifyPAN runs PAN verification
// @Summary Verify PAN card
// @Tags kyc
// @Accept json
// @Produce json
// @Success 200 {object} entities.VerificationResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/kyc/pan [post]
func (h *OnboardingHandler) VerifyPAN(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.VerifyPANRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.VerifyPAN(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InitAadhaarOTP starts Aadhaar OTP verification
// @Summary Request Aadhaar OTP
// @Tags kyc
// @Accept json
// @Produce json
// @Success 200 {object} entities.AadhaarOTPInitResponse
// @Router /api/v1/kyc/aadhaar/otp [post]
func (h *OnboardingHandler) InitAadhaarOTP(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.AadhaarOTPInitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.InitAadhaarOTP(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmAadhaarOTP completes Aadhaar verification
// @Summary Confirm Aadhaar OTP
// @Tags kyc
// @Accept json
// @Produce json
// @Success 200 {object} entities.VerificationResponse
// @Router /api/v1/kyc/aadhaar/confirm [post]
func (h *OnboardingHandler) ConfirmAadhaarOTP(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.AadhaarOTPConfirmRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.ConfirmAadhaarOTP(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyLiveness runs the selfie liveness check
// @Summary Complete liveness check
// @Tags kyc
// @Accept json
// @Produce json
// @Success 200 {object} entities.VerificationResponse
// @Failure 403 {object} entities.ErrorResponse
// @Router /api/v1/kyc/liveness [post]
func (h *OnboardingHandler) VerifyLiveness(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.VerifyLivenessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.VerifyLiveness(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type adminResetRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdminResetKYC clears a user's verification facts
// @Summary Reset a user's KYC (admin)
// @Tags admin
// @Accept json
// @Router /api/v1/admin/users/{user_id}/kyc/reset [post]
func (h *OnboardingHandler) AdminResetKYC(c *gin.Context) {
	targetID, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}
	var req adminResetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.AdminResetKYC(c.Request.Context(), targetID, req.Reason); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
