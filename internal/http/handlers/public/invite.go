package public

import (
	"github.com/invite-center/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AcceptInviteRequest 填写邀请码请求
type AcceptInviteRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// AcceptInvite 填写邀请码
func (h *Handler) AcceptInvite(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.InviteService.AcceptInvite(c.Request.Context(), uid, req.InviteCode); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// GetInviteInfo 获取我的邀请码、统计与邀请列表
func (h *Handler) GetInviteInfo(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	info, err := h.InviteService.GetInviteInfo(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, info)
}
