package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/services/codes"
	"github.com/starbank/backend/internal/services/ledger"
	"github.com/starbank/backend/internal/services/rewards"
	"github.com/starbank/backend/internal/services/withdrawal"
)

// respondError maps service errors onto HTTP responses. Validation errors
// carry the computed remaining wait where one applies; conflict errors come
// back as 409 so the front end can treat retries as safe no-ops.
func respondError(c *gin.Context, err error) {
	var cooldownErr *rewards.CooldownError
	if errors.As(err, &cooldownErr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "on cooldown",
			"remaining_seconds": cooldownErr.Remaining,
		})
		return
	}

	var coolingDown *withdrawal.CoolingDownError
	if errors.As(err, &coolingDown) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "withdrawal cooling down",
			"remaining_seconds": coolingDown.Remaining,
		})
		return
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, withdrawal.ErrBelowMinimum),
		errors.Is(err, withdrawal.ErrDailyCapExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, withdrawal.ErrPremiumRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, rewards.ErrAlreadyCompleted),
		errors.Is(err, rewards.ErrDuplicatePayment),
		errors.Is(err, codes.ErrAlreadyRedeemed),
		errors.Is(err, withdrawal.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, codes.ErrNotFound),
		errors.Is(err, rewards.ErrTaskNotFound),
		errors.Is(err, withdrawal.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, codes.ErrInactive),
		errors.Is(err, codes.ErrExpired),
		errors.Is(err, codes.ErrExhausted):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
