package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/autoinvest"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// AutoInvestHandler handles rule management and investment reads
type AutoInvestHandler struct {
	service *autoinvest.Service
	logger  *logger.Logger
}

// NewAutoInvestHandler creates a new auto-invest handler
func NewAutoInvestHandler(service *autoinvest.Service, logger *logger.Logger) *AutoInvestHandler {
	return &AutoInvestHandler{service: service, logger: logger}
}

// CreateRule creates an auto-invest rule
// @Summary Create auto-invest rule
// @Tags autoinvest
// @Accept json
// @Produce json
// @Param request body entities.CreateRuleRequest true "Rule definition"
// @Success 201 {object} entities.AutoInvestRule
// @Failure 403 {object} entities.ErrorResponse
// @Router /api/v1/autoinvest/rules [post]
func (h *AutoInvestHandler) CreateRule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.CreateRuleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ListRules lists the user's rules in evaluation order
// @Summary List auto-invest rules
// @Tags autoinvest
// @Produce json
// @Success 200 {array} entities.AutoInvestRule
// @Router /api/v1/autoinvest/rules [get]
func (h *AutoInvestHandler) ListRules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// UpdateRule toggles or pauses a rule
// @Summary Update auto-invest rule
// @Tags autoinvest
// @Accept json
// @Produce json
// @Success 200 {object} entities.AutoInvestRule
// @Router /api/v1/autoinvest/rules/{rule_id} [patch]
func (h *AutoInvestHandler) UpdateRule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ruleID, ok := pathUUID(c, "rule_id")
	if !ok {
		return
	}
	var req entities.UpdateRuleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), userID, ruleID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule removes a rule
// @Summary Delete auto-invest rule
// @Tags autoinvest
// @Router /api/v1/autoinvest/rules/{rule_id} [delete]
func (h *AutoInvestHandler) DeleteRule(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ruleID, ok := pathUUID(c, "rule_id")
	if !ok {
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), userID, ruleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListInvestments lists executed investments
// @Summary List investments
// @Tags autoinvest
// @Produce json
// @Success 200 {array} entities.Investment
// @Router /api/v1/investments [get]
func (h *AutoInvestHandler) ListInvestments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	investments, err := h.service.ListInvestments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": investments})
}

// ListProducts lists the active product catalogue
// @Summary List investment products
// @Tags autoinvest
// @Produce json
// @Success 200 {array} entities.InvestmentProduct
// @Router /api/v1/products [get]
func (h *AutoInvestHandler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}
