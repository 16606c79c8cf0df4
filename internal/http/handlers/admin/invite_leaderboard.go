package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/invite-center/internal/http/handlers/shared"
	"github.com/invite-center/internal/http/response"
	"github.com/invite-center/internal/service"

	"github.com/gin-gonic/gin"
)

// GetInviteLeaderboard 邀请排行榜、汇总与配置版本
// 每页数量优先读取 limit，兼容 page_size
func (h *Handler) GetInviteLeaderboard(c *gin.Context) {
	page := handlershared.QueryInt(c.DefaultQuery("page", "1"), 1)
	pageSize := handlershared.QueryInt(c.Query("limit"), 0)
	if pageSize <= 0 {
		pageSize = handlershared.QueryInt(c.DefaultQuery("page_size", "20"), 20)
	}
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	report, err := h.LeaderboardService.GetReport(c.Request.Context(), service.InviteLeaderboardQuery{
		Page:     page,
		PageSize: pageSize,
		SortBy:   c.Query("sort_by"),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}

// ExportInviteLeaderboard 导出排行榜 CSV
func (h *Handler) ExportInviteLeaderboard(c *gin.Context) {
	export, err := h.LeaderboardService.ExportLeaderboard(c.Request.Context(), service.InviteLeaderboardQuery{
		PageSize: handlershared.QueryInt(c.Query("limit"), 0),
		SortBy:   c.Query("sort_by"),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, export)
}

// GetInviteTree 查看用户的下线树
func (h *Handler) GetInviteTree(c *gin.Context) {
	maxDepth := parseMaxDepth(c.Query("max_depth"), h.Config.Invite.MaxTreeDepth)
	tree, err := h.InviteService.GetInviteTree(c.Request.Context(), c.Param("user_id"), maxDepth)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, tree)
}

// GetInviteChainDepth 查看用户所处的邀请链深度
func (h *Handler) GetInviteChainDepth(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	depth, err := h.InviteService.GetInviteChainDepth(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": userID, "depth": depth})
}

// ListUserGoldTransactions 查看用户的金币入账流水
func (h *Handler) ListUserGoldTransactions(c *gin.Context) {
	page := handlershared.QueryInt(c.DefaultQuery("page", "1"), 1)
	pageSize := handlershared.QueryInt(c.DefaultQuery("page_size", "20"), 20)
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	rows, total, err := h.GoldLedger.ListJournal(c.Request.Context(), service.GoldJournalQuery{
		UserID:   c.Param("user_id"),
		Type:     c.Query("type"),
		Page:     page,
		PageSize: pageSize,
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

func parseMaxDepth(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
