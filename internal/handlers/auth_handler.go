package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler exchanges the shared admin key for a session token
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type adminLoginRequest struct {
	AdminID int64  `json:"admin_id" binding:"required"`
	Key     string `json:"key" binding:"required"`
}

// Login verifies the admin key against its stored hash and issues a token
func (h *AuthHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !h.cfg.IsAdmin(req.AdminID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an administrator"})
		return
	}

	if h.cfg.JWT.AdminKeyHash == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "admin key not configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.JWT.AdminKeyHash), []byte(req.Key)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
		return
	}

	token, err := utils.GenerateAdminToken(req.AdminID, h.cfg.JWT.Secret, h.cfg.JWT.Expiration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
