package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/services/codes"
	"github.com/starbank/backend/internal/services/rewards"
	"github.com/starbank/backend/internal/services/withdrawal"
	"github.com/starbank/backend/internal/session"
)

// AdminHandler exposes the admin decision paths: withdrawal approval,
// task review, code issuance and the multi-step creation wizards.
type AdminHandler struct {
	withdrawals *withdrawal.Service
	rewards     *rewards.Service
	codes       *codes.Service
	wizards     *session.Store
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(withdrawalsSvc *withdrawal.Service, rewardsSvc *rewards.Service, codesSvc *codes.Service, wizards *session.Store) *AdminHandler {
	return &AdminHandler{
		withdrawals: withdrawalsSvc,
		rewards:     rewardsSvc,
		codes:       codesSvc,
		wizards:     wizards,
	}
}

// PendingWithdrawals lists pending automatic requests oldest first
func (h *AdminHandler) PendingWithdrawals(c *gin.Context) {
	requests, err := h.withdrawals.PendingAutoPayouts(0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func requestIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return 0, false
	}
	return uint(id), true
}

// ApproveWithdrawal settles a pending request synchronously
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	id, ok := requestIDParam(c)
	if !ok {
		return
	}

	request, err := h.withdrawals.AdminApprove(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}

// RejectWithdrawal rejects a pending request and refunds its daily
// reservation
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	id, ok := requestIDParam(c)
	if !ok {
		return
	}

	request, err := h.withdrawals.AdminReject(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}

type approveTaskRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ApproveTask credits a review-gated task completion
func (h *AdminHandler) ApproveTask(c *gin.Context) {
	var req approveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	granted, err := h.rewards.ApproveTask(req.UserID, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

type createCodeRequest struct {
	Amount   int64 `json:"amount" binding:"required"`
	MaxUses  int   `json:"max_uses"`
	TTLHours int   `json:"ttl_hours"`
}

// CreateCode issues a voucher code directly, without the wizard
func (h *AdminHandler) CreateCode(c *gin.Context) {
	var req createCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	code, err := h.codes.Issue(req.Amount, req.MaxUses, time.Duration(req.TTLHours)*time.Hour, middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

// ListCodes returns issued codes, newest first
func (h *AdminHandler) ListCodes(c *gin.Context) {
	list, err := h.codes.List(100)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": list})
}

// DeactivateCode flips a code's kill-switch
func (h *AdminHandler) DeactivateCode(c *gin.Context) {
	if err := h.codes.Deactivate(c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": false})
}

// BeginWizard starts a create-task or create-code wizard for the admin
func (h *AdminHandler) BeginWizard(c *gin.Context) {
	kind := session.WizardKind(c.Param("kind"))
	if kind != session.WizardCreateTask && kind != session.WizardCreateCode {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown wizard"})
		return
	}

	h.wizards.Begin(middleware.AdminID(c), kind)
	c.JSON(http.StatusOK, gin.H{"prompt": firstPrompt(kind)})
}

// CancelWizard clears the admin's in-progress wizard
func (h *AdminHandler) CancelWizard(c *gin.Context) {
	h.wizards.End(middleware.AdminID(c))
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

type wizardInputRequest struct {
	Text string `json:"text" binding:"required"`
}

// WizardInput feeds the next answer into the admin's wizard
func (h *AdminHandler) WizardInput(c *gin.Context) {
	adminID := middleware.AdminID(c)

	wizard, ok := h.wizards.Get(adminID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no wizard in progress"})
		return
	}

	var req wizardInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Text)

	switch wizard.Kind {
	case session.WizardCreateTask:
		h.stepCreateTask(c, adminID, wizard.CreateTask, text)
	case session.WizardCreateCode:
		h.stepCreateCode(c, adminID, wizard.CreateCode, text)
	}
}

func firstPrompt(kind session.WizardKind) string {
	if kind == session.WizardCreateTask {
		return "task title?"
	}
	return "code amount?"
}

func (h *AdminHandler) stepCreateTask(c *gin.Context, adminID int64, state *session.CreateTaskState, text string) {
	switch state.Step {
	case 0:
		if text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		state.Title = text
		state.Step = 1
		c.JSON(http.StatusOK, gin.H{"prompt": "reward amount?"})
	case 1:
		reward, err := strconv.ParseInt(text, 10, 64)
		if err != nil || reward <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reward must be a positive number"})
			return
		}
		state.Reward = reward
		state.Step = 2
		c.JSON(http.StatusOK, gin.H{"prompt": "needs review? (yes/no)"})
	case 2:
		state.NeedsReview = strings.EqualFold(text, "yes")

		task, err := h.rewards.CreateTask(state.Title, state.Reward, state.NeedsReview, adminID)
		if err != nil {
			h.wizards.End(adminID)
			respondError(c, err)
			return
		}
		h.wizards.End(adminID)
		c.JSON(http.StatusCreated, gin.H{"task": task})
	}
}

func (h *AdminHandler) stepCreateCode(c *gin.Context, adminID int64, state *session.CreateCodeState, text string) {
	switch state.Step {
	case 0:
		amount, err := strconv.ParseInt(text, 10, 64)
		if err != nil || amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
			return
		}
		state.Amount = amount
		state.Step = 1
		c.JSON(http.StatusOK, gin.H{"prompt": "max uses?"})
	case 1:
		maxUses, err := strconv.Atoi(text)
		if err != nil || maxUses < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max uses must be at least 1"})
			return
		}
		state.MaxUses = maxUses
		state.Step = 2
		c.JSON(http.StatusOK, gin.H{"prompt": "ttl hours? (0 for no expiry)"})
	case 2:
		hours, err := strconv.Atoi(text)
		if err != nil || hours < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl must be zero or more hours"})
			return
		}
		state.TTL = time.Duration(hours) * time.Hour

		code, err := h.codes.Issue(state.Amount, state.MaxUses, state.TTL, adminID)
		if err != nil {
			h.wizards.End(adminID)
			respondError(c, err)
			return
		}
		h.wizards.End(adminID)
		c.JSON(http.StatusCreated, gin.H{"code": code})
	}
}
