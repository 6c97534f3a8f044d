package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/services/rewards"
)

// RewardHandler exposes the reward dispatcher's earning operations
type RewardHandler struct {
	rewards *rewards.Service
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(rewardsSvc *rewards.Service) *RewardHandler {
	return &RewardHandler{rewards: rewardsSvc}
}

// Earn grants the cooldown-gated random earn reward
func (h *RewardHandler) Earn(c *gin.Context) {
	userID := middleware.UserID(c)

	amount, wallet, err := h.rewards.GrantEarn(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted": amount,
		"balance": wallet.Balance,
	})
}

type referralRequest struct {
	ReferrerID int64 `json:"referrer_id" binding:"required"`
}

// Referral credits the referrer for the acting (newly started) user. A
// repeated start event is a silent no-op with granted = 0.
func (h *RewardHandler) Referral(c *gin.Context) {
	userID := middleware.UserID(c)

	var req referralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	granted, err := h.rewards.GrantReferral(req.ReferrerID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

// ListTasks returns the active task catalog
func (h *RewardHandler) ListTasks(c *gin.Context) {
	tasks, err := h.rewards.ListTasks()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// SubmitTask records a task completion for the acting user
func (h *RewardHandler) SubmitTask(c *gin.Context) {
	userID := middleware.UserID(c)
	taskSlug := c.Param("slug")

	granted, err := h.rewards.SubmitTask(userID, taskSlug)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted":        granted,
		"pending_review": granted == 0,
	})
}

type purchaseRequest struct {
	ChargeID   string `json:"charge_id" binding:"required"`
	Stars      int64  `json:"stars" binding:"required"`
	AmountPaid int64  `json:"amount_paid"`
}

// Purchase credits a confirmed purchase, idempotent on the charge id
func (h *RewardHandler) Purchase(c *gin.Context) {
	userID := middleware.UserID(c)

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wallet, err := h.rewards.GrantPurchase(userID, req.Stars, req.AmountPaid, req.ChargeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted": req.Stars,
		"balance": wallet.Balance,
	})
}
