package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/services/ledger"
)

// WalletHandler serves wallet snapshots, history and the leaderboard
type WalletHandler struct {
	ledger *ledger.Service
	cfg    *config.Config
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(ledgerSvc *ledger.Service, cfg *config.Config) *WalletHandler {
	return &WalletHandler{ledger: ledgerSvc, cfg: cfg}
}

// GetProfile returns the acting user's wallet snapshot
func (h *WalletHandler) GetProfile(c *gin.Context) {
	userID := middleware.UserID(c)

	wallet, err := h.ledger.GetOrCreate(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":    wallet,
		"daily_cap": h.cfg.Withdrawal.DailyCap,
	})
}

// GetHistory returns a page of the user's ledger entries
func (h *WalletHandler) GetHistory(c *gin.Context) {
	userID := middleware.UserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	entries, total, err := h.ledger.History(userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    page,
	})
}

// GetLeaderboard returns the top balances
func (h *WalletHandler) GetLeaderboard(c *gin.Context) {
	wallets, err := h.ledger.Top(10)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// ActivatePremium flips the premium flag for the acting user
func (h *WalletHandler) ActivatePremium(c *gin.Context) {
	userID := middleware.UserID(c)

	if err := h.ledger.SetPremium(userID, true); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"premium": true})
}
