package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
	"github.com/sanchay-service/sanchay_service/pkg/logger"
)

var validate = validator.New()

// bindAndValidate parses the JSON body and runs struct validation. Returns
// false after writing the error response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, entities.ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Invalid request payload",
			Details: map[string]interface{}{"error": err.Error()},
		})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entities.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Details: map[string]interface{}{"error": err.Error()},
		})
		return false
	}
	return true
}

// respondError maps application errors onto the standard envelope
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.Errorw("Request failed",
				"request_id", c.GetString("request_id"),
				"code", appErr.Code, "error", err)
		}
		c.JSON(appErr.StatusCode, entities.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	log.Errorw("Request failed",
		"request_id", c.GetString("request_id"), "error", err)
	c.JSON(http.StatusInternalServerError, entities.ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// currentUserID reads the authenticated user ID set by the auth middleware
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get("user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, entities.ErrorResponse{
			Code: "UNAUTHORIZED", Message: "authentication required",
		})
		return uuid.Nil, false
	}
	return val.(uuid.UUID), true
}

// pathUUID parses a UUID path parameter
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, entities.ErrorResponse{
			Code: "VALIDATION_ERROR", Message: name + " must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

// issueToken signs an access token for a user
func issueToken(userID uuid.UUID, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
