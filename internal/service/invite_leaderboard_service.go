package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/invite-center/internal/cache"
	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"
)

const (
	inviteLeaderboardDefaultPageSize = 20
	inviteExportDefaultLimit         = 1000
	inviteExportMaxLimit             = 10000
	inviteSummaryCacheKey            = "invite:leaderboard:summary"
)

var inviteLeaderboardCSVHeader = []string{
	"Rank", "User ID", "Invite Code", "Total Invites", "Valid Invites", "Total Rewards", "Invite Link",
}

// InviteActiveConfigSource 生效配置来源，用于版本标记
type InviteActiveConfigSource interface {
	GetActiveConfig(ctx context.Context) (*models.InviteRewardConfigRecord, error)
}

// InviteLeaderboardQuery 排行榜查询参数
type InviteLeaderboardQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Search   string
}

// InviteLeaderboardEntry 排行榜条目
type InviteLeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	InviteCode   string `json:"invite_code"`
	InviteLink   string `json:"invite_link"`
	TotalInvites int64  `json:"total_invites"`
	ValidInvites int64  `json:"valid_invites"`
	TotalRewards int64  `json:"total_rewards"`
}

// InviteLeaderboardPage 排行榜分页结果
type InviteLeaderboardPage struct {
	List     []InviteLeaderboardEntry `json:"list"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

// InviteLeaderboardSummary 排行榜汇总
type InviteLeaderboardSummary struct {
	TotalInvites int64 `json:"total_invites"`
	TotalRewards int64 `json:"total_rewards"`
	InviterCount int64 `json:"inviter_count"`
	UserCount    int64 `json:"user_count"`
	TodayInvites int64 `json:"today_invites"`
}

// InviteLeaderboardReport 后台排行榜完整结果
type InviteLeaderboardReport struct {
	InviteLeaderboardPage
	Summary       InviteLeaderboardSummary `json:"summary"`
	ConfigVersion int64                    `json:"config_version"`
}

// InviteLeaderboardExport 排行榜导出结果
type InviteLeaderboardExport struct {
	FileName    string    `json:"file_name"`
	CSVBase64   string    `json:"csv_base64"`
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
}

// InviteLeaderboardService 邀请排行榜与报表服务
type InviteLeaderboardService struct {
	inviteRepo         repository.InviteRepository
	configSource       InviteActiveConfigSource
	exportDefaultLimit int
	exportMaxLimit     int
	summaryTTL         time.Duration
	now                func() time.Time
}

// NewInviteLeaderboardService 创建排行榜服务
func NewInviteLeaderboardService(inviteRepo repository.InviteRepository, configSource InviteActiveConfigSource, cfg config.InviteConfig) *InviteLeaderboardService {
	svc := &InviteLeaderboardService{
		inviteRepo:         inviteRepo,
		configSource:       configSource,
		exportDefaultLimit: cfg.ExportDefaultLimit,
		exportMaxLimit:     cfg.ExportMaxLimit,
		summaryTTL:         time.Duration(cfg.SummaryCacheTTLSeconds) * time.Second,
		now:                time.Now,
	}
	if svc.exportMaxLimit <= 0 {
		svc.exportMaxLimit = inviteExportMaxLimit
	}
	if svc.exportDefaultLimit <= 0 {
		svc.exportDefaultLimit = inviteExportDefaultLimit
	}
	if svc.exportDefaultLimit > svc.exportMaxLimit {
		svc.exportDefaultLimit = svc.exportMaxLimit
	}
	return svc
}

// GetLeaderboard 分页排行，rank 为全局排序中的位置
func (s *InviteLeaderboardService) GetLeaderboard(ctx context.Context, query InviteLeaderboardQuery) (*InviteLeaderboardPage, error) {
	if query.PageSize <= 0 {
		query.PageSize = inviteLeaderboardDefaultPageSize
	}
	if query.PageSize > inviteLeaderboardMaxSize {
		query.PageSize = inviteLeaderboardMaxSize
	}
	return s.listRanked(ctx, query)
}

// Summary 全部邀请统计汇总，以及当日新增邀请数
func (s *InviteLeaderboardService) Summary(ctx context.Context) (InviteLeaderboardSummary, error) {
	var summary InviteLeaderboardSummary
	if s.summaryTTL > 0 {
		hit, err := cache.GetJSON(ctx, inviteSummaryCacheKey, &summary)
		if err != nil {
			logger.Warnw("invite_summary_cache_get_failed", "error", err)
		} else if hit {
			return summary, nil
		}
	}

	aggregate, err := s.inviteRepo.SummarizeStats()
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	today, err := s.inviteRepo.CountRelationsSince(startOfDay(s.now()))
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	summary = InviteLeaderboardSummary{
		TotalInvites: aggregate.TotalInvites,
		TotalRewards: aggregate.TotalRewards,
		InviterCount: aggregate.InviterCount,
		UserCount:    aggregate.StatsCount,
		TodayInvites: today,
	}
	if s.summaryTTL > 0 {
		if err := cache.SetJSON(ctx, inviteSummaryCacheKey, summary, s.summaryTTL); err != nil {
			logger.Warnw("invite_summary_cache_set_failed", "error", err)
		}
	}
	return summary, nil
}

// GetReport 排行榜、汇总与当前配置版本
func (s *InviteLeaderboardService) GetReport(ctx context.Context, query InviteLeaderboardQuery) (*InviteLeaderboardReport, error) {
	page, err := s.GetLeaderboard(ctx, query)
	if err != nil {
		return nil, err
	}
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	report := &InviteLeaderboardReport{InviteLeaderboardPage: *page, Summary: summary}
	if s.configSource != nil {
		active, err := s.configSource.GetActiveConfig(ctx)
		if err != nil {
			return nil, err
		}
		report.ConfigVersion = active.Version
	}
	return report, nil
}

// ExportLeaderboard 导出第一页排行为 CSV，结果 base64 编码
func (s *InviteLeaderboardService) ExportLeaderboard(ctx context.Context, query InviteLeaderboardQuery) (*InviteLeaderboardExport, error) {
	limit := query.PageSize
	if limit <= 0 {
		limit = s.exportDefaultLimit
	}
	if limit > s.exportMaxLimit {
		limit = s.exportMaxLimit
	}
	page, err := s.listRanked(ctx, InviteLeaderboardQuery{
		Page:     1,
		PageSize: limit,
		SortBy:   query.SortBy,
		Search:   query.Search,
	})
	if err != nil {
		return nil, err
	}

	payload, err := renderInviteLeaderboardCSV(page.List)
	if err != nil {
		return nil, err
	}
	now := s.now()
	logger.Infow("invite_leaderboard_exported", "rows", len(page.List), "sort_by", query.SortBy)
	return &InviteLeaderboardExport{
		FileName:    fmt.Sprintf("invite_leaderboard_%s.csv", now.Format("20060102_150405")),
		CSVBase64:   base64.StdEncoding.EncodeToString(payload),
		GeneratedAt: now,
		Total:       len(page.List),
	}, nil
}

func (s *InviteLeaderboardService) listRanked(ctx context.Context, query InviteLeaderboardQuery) (*InviteLeaderboardPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query.Page < 1 {
		query.Page = 1
	}
	rows, total, err := s.inviteRepo.ListStats(repository.InviteStatsListFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
		Search:   strings.TrimSpace(query.Search),
		SortBy:   normalizeInviteSortBy(query.SortBy),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	offset := (query.Page - 1) * query.PageSize
	list := make([]InviteLeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		list = append(list, InviteLeaderboardEntry{
			Rank:         offset + i + 1,
			UserID:       row.UserID,
			InviteCode:   row.InviteCode,
			InviteLink:   row.InviteLink,
			TotalInvites: row.TotalInvites,
			ValidInvites: row.ValidInvites,
			TotalRewards: row.TotalRewards,
		})
	}
	return &InviteLeaderboardPage{
		List:     list,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

func renderInviteLeaderboardCSV(entries []InviteLeaderboardEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.UseCRLF = false
	if err := writer.Write(inviteLeaderboardCSVHeader); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		record := []string{
			strconv.Itoa(entry.Rank),
			entry.UserID,
			entry.InviteCode,
			strconv.FormatInt(entry.TotalInvites, 10),
			strconv.FormatInt(entry.ValidInvites, 10),
			strconv.FormatInt(entry.TotalRewards, 10),
			entry.InviteLink,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeInviteSortBy(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), constants.InviteSortByRewards) {
		return constants.InviteSortByRewards
	}
	return constants.InviteSortByInvites
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
