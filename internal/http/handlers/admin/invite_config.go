package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/invite-center/internal/http/handlers/shared"
	"github.com/invite-center/internal/http/response"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/service"

	"github.com/gin-gonic/gin"
)

// InviteRewardConfigResponse 当前奖励配置
type InviteRewardConfigResponse struct {
	Version      int64                     `json:"version"`
	Config       models.InviteRewardConfig `json:"config"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	UpdatedBy    string                    `json:"updated_by"`
	Reviewer     string                    `json:"reviewer,omitempty"`
	ReviewStatus string                    `json:"review_status"`
	Comment      string                    `json:"comment,omitempty"`
}

// UpdateInviteRewardConfigRequest 更新奖励配置请求
type UpdateInviteRewardConfigRequest struct {
	Config       service.InviteRewardConfigParams `json:"config"`
	Comment      string                           `json:"comment"`
	ReviewerID   string                           `json:"reviewer_id"`
	ReviewerName string                           `json:"reviewer_name"`
	ReviewStatus string                           `json:"review_status"`
}

// GetInviteRewardConfig 获取当前生效的奖励配置
func (h *Handler) GetInviteRewardConfig(c *gin.Context) {
	record, err := h.InviteConfigSvc.GetActiveConfig(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, toInviteRewardConfigResponse(record))
}

// UpdateInviteRewardConfig 写入新版本奖励配置
func (h *Handler) UpdateInviteRewardConfig(c *gin.Context) {
	operator, ok := getAdminOperator(c)
	if !ok {
		return
	}
	var req UpdateInviteRewardConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	record, err := h.InviteConfigSvc.UpdateConfig(c.Request.Context(), service.InviteConfigUpdateInput{
		Config:       req.Config,
		Comment:      req.Comment,
		ReviewerID:   req.ReviewerID,
		ReviewerName: req.ReviewerName,
		ReviewStatus: req.ReviewStatus,
		OperatorID:   operator.ID,
		OperatorName: operator.Name,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"success":    true,
		"version":    record.Version,
		"status":     record.Status,
		"updated_at": record.UpdatedAt,
	})
}

// GetInviteRewardConfigVersion 查看指定版本的奖励配置
func (h *Handler) GetInviteRewardConfigVersion(c *gin.Context) {
	version, err := strconv.ParseInt(strings.TrimSpace(c.Param("version")), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "版本号格式错误", nil)
		return
	}
	record, err := h.InviteConfigSvc.GetConfigByVersion(c.Request.Context(), version)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := toInviteRewardConfigResponse(record)
	response.Success(c, gin.H{
		"record": resp,
		"status": record.Status,
	})
}

// ListInviteRewardConfigHistory 奖励配置审计历史
func (h *Handler) ListInviteRewardConfigHistory(c *gin.Context) {
	page := handlershared.QueryInt(c.DefaultQuery("page", "1"), 1)
	pageSize := handlershared.QueryInt(c.DefaultQuery("page_size", "20"), 20)
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	rows, total, err := h.InviteConfigSvc.GetHistory(c.Request.Context(), service.InviteConfigHistoryQuery{
		Page:         page,
		PageSize:     pageSize,
		Status:       strings.TrimSpace(c.Query("status")),
		ReviewStatus: strings.TrimSpace(c.Query("review_status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      rows,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func toInviteRewardConfigResponse(record *models.InviteRewardConfigRecord) InviteRewardConfigResponse {
	resp := InviteRewardConfigResponse{
		Version:      record.Version,
		Config:       record.Config,
		UpdatedAt:    record.UpdatedAt,
		UpdatedBy:    record.UpdatedByName,
		ReviewStatus: record.ReviewStatus,
		Comment:      record.Comment,
	}
	if resp.UpdatedBy == "" {
		resp.UpdatedBy = record.UpdatedByID
	}
	if record.ReviewerName != "" {
		resp.Reviewer = record.ReviewerName
	} else if record.ReviewerID != "" {
		resp.Reviewer = record.ReviewerID
	}
	return resp
}
