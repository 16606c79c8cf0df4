package public

import (
	"strings"

	"github.com/invite-center/internal/http/response"
	"github.com/invite-center/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FirstChargeEventRequest 游戏服首充事件
type FirstChargeEventRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// LevelUpEventRequest 游戏服升级事件
type LevelUpEventRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Level  int    `json:"level" binding:"required,min=1"`
}

// HandleFirstChargeEvent 首充回调，队列可用时异步处理
func (h *Handler) HandleFirstChargeEvent(c *gin.Context) {
	var req FirstChargeEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)

	if h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueInviteFirstCharge(queue.InviteFirstChargePayload{
			UserID: userID,
			Amount: req.Amount.String(),
		})
		if err == nil {
			response.Success(c, gin.H{"success": true, "queued": true})
			return
		}
		requestLog(c).Warnw("invite_first_charge_enqueue_failed", "user_id", userID, "error", err)
	}

	if err := h.InviteService.HandleFirstCharge(c.Request.Context(), userID, req.Amount); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "queued": false})
}

// HandleLevelUpEvent 升级回调，队列可用时异步处理
func (h *Handler) HandleLevelUpEvent(c *gin.Context) {
	var req LevelUpEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)

	if h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueInviteLevelUp(queue.InviteLevelUpPayload{
			UserID: userID,
			Level:  req.Level,
		})
		if err == nil {
			response.Success(c, gin.H{"success": true, "queued": true})
			return
		}
		requestLog(c).Warnw("invite_level_up_enqueue_failed", "user_id", userID, "level", req.Level, "error", err)
	}

	if err := h.InviteService.HandleLevelUpReward(c.Request.Context(), userID, req.Level); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "queued": false})
}
