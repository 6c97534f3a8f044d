package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/services/codes"
)

// CodeHandler exposes voucher redemption
type CodeHandler struct {
	codes *codes.Service
}

// NewCodeHandler creates a new code handler
func NewCodeHandler(codesSvc *codes.Service) *CodeHandler {
	return &CodeHandler{codes: codesSvc}
}

type redeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// Redeem credits the code's amount to the acting user once
func (h *CodeHandler) Redeem(c *gin.Context) {
	userID := middleware.UserID(c)

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := h.codes.Redeem(req.Code, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"granted": amount})
}
