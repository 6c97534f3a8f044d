package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/handlers"
	"github.com/starbank/backend/internal/middleware"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Auth        *handlers.AuthHandler
	Wallet      *handlers.WalletHandler
	Reward      *handlers.RewardHandler
	Withdrawal  *handlers.WithdrawalHandler
	Code        *handlers.CodeHandler
	Admin       *handlers.AdminHandler
	RateLimiter *middleware.RateLimiter
}

// Setup mounts all routes on the router
func Setup(router *gin.Engine, cfg *config.Config, h *Handlers) {
	api := router.Group("/api/v1")
	if h.RateLimiter != nil {
		api.Use(h.RateLimiter.Middleware())
	}

	api.POST("/admin/login", h.Auth.Login)

	// Everything the bot front end calls on behalf of a user.
	user := api.Group("/", middleware.UserIdentity())
	{
		user.GET("/wallet", h.Wallet.GetProfile)
		user.GET("/wallet/history", h.Wallet.GetHistory)
		user.POST("/wallet/premium", h.Wallet.ActivatePremium)
		user.GET("/leaderboard", h.Wallet.GetLeaderboard)

		user.POST("/rewards/earn", h.Reward.Earn)
		user.POST("/rewards/referral", h.Reward.Referral)
		user.GET("/tasks", h.Reward.ListTasks)
		user.POST("/tasks/:slug/submit", h.Reward.SubmitTask)
		user.POST("/purchases", h.Reward.Purchase)

		user.POST("/codes/redeem", h.Code.Redeem)

		user.POST("/withdrawals", h.Withdrawal.Create)
		user.GET("/withdrawals", h.Withdrawal.List)
	}

	admin := api.Group("/admin", middleware.AdminAuth(cfg))
	{
		admin.GET("/withdrawals/pending", h.Admin.PendingWithdrawals)
		admin.POST("/withdrawals/:id/approve", h.Admin.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.Admin.RejectWithdrawal)

		admin.POST("/tasks/:slug/approve", h.Admin.ApproveTask)

		admin.GET("/codes", h.Admin.ListCodes)
		admin.POST("/codes", h.Admin.CreateCode)
		admin.POST("/codes/:code/deactivate", h.Admin.DeactivateCode)

		admin.POST("/wizards/:kind", h.Admin.BeginWizard)
		admin.POST("/wizards/input", h.Admin.WizardInput)
		admin.DELETE("/wizards", h.Admin.CancelWizard)
	}
}
