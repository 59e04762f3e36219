package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/autoinvest"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/autosave"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// PaymentHandler handles payments, wallet reads and withdrawals
type PaymentHandler struct {
	autosave   *autosave.Service
	autoinvest *autoinvest.Service
	logger     *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(autosaveSvc *autosave.Service, autoinvestSvc *autoinvest.Service, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{autosave: autosaveSvc, autoinvest: autoinvestSvc, logger: logger}
}

// RecordPayment records a payment and credits the auto-save amount
// @Summary Record a payment
// @Tags payments
// @Accept json
// @Produce json
// @Param request body entities.RecordPaymentRequest true "Payment data"
// @Success 201 {object} entities.RecordPaymentResponse
// @Failure 403 {object} entities.ErrorResponse
// @Router /api/v1/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.RecordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.autosave.RecordPayment(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// The wallet credit may have pushed a threshold rule over its trigger.
	// Evaluation runs off the request path with its own deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.autoinvest.EvaluateThresholdRules(ctx, userID)
	}()

	c.JSON(http.StatusCreated, resp)
}

// GetWallet returns the savings wallet
// @Summary Get savings wallet
// @Tags wallet
// @Produce json
// @Success 200 {object} entities.SavingsWallet
// @Router /api/v1/wallet [get]
func (h *PaymentHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wallet, err := h.autosave.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// ListTransactions returns the ledger, newest first
// @Summary List wallet transactions
// @Tags wallet
// @Produce json
// @Success 200 {array} entities.Transaction
// @Router /api/v1/wallet/transactions [get]
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.autosave.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

type autoSavePercentRequest struct {
	Percent int `json:"percent" validate:"required,min=1,max=50"`
}

// SetAutoSavePercent updates the save percentage
// @Summary Set auto-save percentage
// @Tags wallet
// @Accept json
// @Router /api/v1/wallet/autosave-percent [put]
func (h *PaymentHandler) SetAutoSavePercent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req autoSavePercentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.autosave.SetAutoSavePercent(c.Request.Context(), userID, req.Percent); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_save_percent": req.Percent})
}

// Withdraw debits the wallet towards the primary bank account
// @Summary Withdraw from savings wallet
// @Tags wallet
// @Accept json
// @Produce json
// @Success 201 {object} entities.Transaction
// @Failure 422 {object} entities.ErrorResponse
// @Router /api/v1/wallet/withdraw [post]
func (h *PaymentHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.WithdrawRequest
	if !bindAndValidate(c, &req) {
		return
	}

	txn, err := h.autosave.Withdraw(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}
