package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/domain/services/bankaccount"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

// BankHandler handles linked bank account endpoints
type BankHandler struct {
	service *bankaccount.Service
	logger  *logger.Logger
}

// NewBankHandler creates a new bank account handler
func NewBankHandler(service *bankaccount.Service, logger *logger.Logger) *BankHandler {
	return &BankHandler{service: service, logger: logger}
}

// Add links a new bank account
// @Summary Link a bank account
// @Tags bank
// @Accept json
// @Produce json
// @Param request body entities.AddBankAccountRequest true "Account details"
// @Success 201 {object} entities.BankAccount
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/bank-accounts [post]
func (h *BankHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req entities.AddBankAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.service.Add(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// List returns the user's linked accounts, primary first
// @Summary List bank accounts
// @Tags bank
// @Produce json
// @Success 200 {array} entities.BankAccount
// @Router /api/v1/bank-accounts [get]
func (h *BankHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	accounts, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// Verify runs the penny-drop verification
// @Summary Verify a bank account
// @Tags bank
// @Produce json
// @Success 200 {object} entities.BankAccount
// @Router /api/v1/bank-accounts/{account_id}/verify [post]
func (h *BankHandler) Verify(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "account_id")
	if !ok {
		return
	}

	account, err := h.service.Verify(c.Request.Context(), userID, accountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// SetPrimary moves the primary designation
// @Summary Set primary bank account
// @Tags bank
// @Router /api/v1/bank-accounts/{account_id}/primary [put]
func (h *BankHandler) SetPrimary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "account_id")
	if !ok {
		return
	}

	if err := h.service.SetPrimary(c.Request.Context(), userID, accountID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_primary": true})
}

// Delete removes an account
// @Summary Delete a bank account
// @Tags bank
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/bank-accounts/{account_id} [delete]
func (h *BankHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "account_id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, accountID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
