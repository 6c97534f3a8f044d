package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/withdrawal"
)

// WithdrawalHandler exposes withdrawal request creation and listing
type WithdrawalHandler struct {
	withdrawals *withdrawal.Service
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(withdrawalsSvc *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawalsSvc}
}

type createWithdrawalRequest struct {
	Amount int64                 `json:"amount" binding:"required"`
	Kind   models.WithdrawalKind `json:"kind"`
}

// Create validates and inserts a pending withdrawal request
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)

	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Kind == "" {
		req.Kind = models.WithdrawalKindAuto
	}
	if req.Kind != models.WithdrawalKindAuto && req.Kind != models.WithdrawalKindAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal kind"})
		return
	}

	request, err := h.withdrawals.Create(userID, req.Amount, req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// List returns the acting user's requests, newest first
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	requests, err := h.withdrawals.ListByUser(userID, 50)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
