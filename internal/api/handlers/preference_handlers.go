package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/repositories"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// PreferenceHandler handles notification preference endpoints
type PreferenceHandler struct {
	prefs  *repositories.PreferenceRepository
	logger *logger.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(prefs *repositories.PreferenceRepository, logger *logger.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// Get returns the user's notification preferences
// @Summary Get notification preferences
// @Tags preferences
// @Produce json
// @Success 200 {object} entities.NotificationPreference
// @Router /api/v1/preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	pref, err := h.prefs.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

type updatePreferencesRequest struct {
	AutoSaveAlerts   bool `json:"auto_save_alerts"`
	InvestmentAlerts bool `json:"investment_alerts"`
	KYCAlerts        bool `json:"kyc_alerts"`
}

// Update stores the user's notification preferences
// @Summary Update notification preferences
// @Tags preferences
// @Accept json
// @Produce json
// @Success 200 {object} entities.NotificationPreference
// @Router /api/v1/preferences [put]
func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updatePreferencesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pref := &entities.NotificationPreference{
		UserID:           userID,
		AutoSaveAlerts:   req.AutoSaveAlerts,
		InvestmentAlerts: req.InvestmentAlerts,
		KYCAlerts:        req.KYCAlerts,
	}
	if err := h.prefs.Upsert(c.Request.Context(), pref); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
