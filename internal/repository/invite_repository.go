package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/models"

	"gorm.io/gorm"
)

// 邀请关系上的阶段奖励标记列
const (
	RelationFlagRegistration = "registration_reward_given"
	RelationFlagFirstCharge  = "first_charge_reward_given"
	RelationFlagLevel10      = "level10_reward_given"
	RelationFlagLevel20      = "level20_reward_given"
	RelationFlagLevel30      = "level30_reward_given"
)

var relationFlagColumns = map[string]struct{}{
	RelationFlagRegistration: {},
	RelationFlagFirstCharge:  {},
	RelationFlagLevel10:      {},
	RelationFlagLevel20:      {},
	RelationFlagLevel30:      {},
}

// InviteRepository 邀请关系与统计数据访问接口
type InviteRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) InviteRepository

	GetStatsByUserID(userID string) (*models.InviteStats, error)
	GetStatsByCode(code string) (*models.InviteStats, error)
	CreateStats(stats *models.InviteStats) error
	IncrementStats(userID string, delta InviteStatsDelta) error
	ListStats(filter InviteStatsListFilter) ([]models.InviteStats, int64, error)
	SummarizeStats() (InviteStatsAggregate, error)

	GetRelationByInvitee(inviteeID string) (*models.InviteRelation, error)
	CreateRelation(relation *models.InviteRelation) error
	MarkRelationFlag(inviteeID, flag string) (bool, error)
	ListRelationsByInviter(inviterID string, limit int) ([]models.InviteRelation, error)
	ListRelationsByInviters(inviterIDs []string) ([]models.InviteRelation, error)
	ListPendingRegistrations(filter PendingRegistrationFilter) ([]models.InviteRelation, error)
	CountRelationsSince(since time.Time) (int64, error)
}

// GormInviteRepository GORM 邀请仓储
type GormInviteRepository struct {
	db *gorm.DB
}

// NewInviteRepository 创建邀请仓储
func NewInviteRepository(db *gorm.DB) *GormInviteRepository {
	return &GormInviteRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInviteRepository) WithTx(tx *gorm.DB) InviteRepository {
	if tx == nil {
		return r
	}
	return &GormInviteRepository{db: tx}
}

// Transaction 执行事务
func (r *GormInviteRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetStatsByUserID 按用户获取邀请统计
func (r *GormInviteRepository) GetStatsByUserID(userID string) (*models.InviteStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var stats models.InviteStats
	if err := r.db.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// GetStatsByCode 按邀请码获取邀请统计
func (r *GormInviteRepository) GetStatsByCode(code string) (*models.InviteStats, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var stats models.InviteStats
	if err := r.db.Where("invite_code = ?", normalized).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// CreateStats 创建邀请统计
func (r *GormInviteRepository) CreateStats(stats *models.InviteStats) error {
	return r.db.Create(stats).Error
}

// IncrementStats 原子累加邀请统计
func (r *GormInviteRepository) IncrementStats(userID string, delta InviteStatsDelta) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || delta.IsZero() {
		return nil
	}
	result := r.db.Model(&models.InviteStats{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"total_invites": gorm.Expr("total_invites + ?", delta.TotalInvites),
			"valid_invites": gorm.Expr("valid_invites + ?", delta.ValidInvites),
			"total_rewards": gorm.Expr("total_rewards + ?", delta.TotalRewards),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("invite stats not found: %s", userID)
	}
	return nil
}

// ListStats 分页查询邀请排行
func (r *GormInviteRepository) ListStats(filter InviteStatsListFilter) ([]models.InviteStats, int64, error) {
	query := r.db.Model(&models.InviteStats{})
	if condition, args := buildContainsCondition(r.db, []string{"user_id", "invite_code"}, filter.Search); condition != "" {
		query = query.Where(condition, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	switch filter.SortBy {
	case constants.InviteSortByRewards:
		query = query.Order("total_rewards desc").Order("total_invites desc")
	default:
		query = query.Order("total_invites desc").Order("total_rewards desc")
	}

	var rows []models.InviteStats
	if err := query.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SummarizeStats 汇总全部邀请统计
func (r *GormInviteRepository) SummarizeStats() (InviteStatsAggregate, error) {
	var row struct {
		TotalInvites int64
		TotalRewards int64
		InviterCount int64
		StatsCount   int64
	}
	err := r.db.Model(&models.InviteStats{}).
		Select(`COALESCE(SUM(total_invites), 0) AS total_invites,
			COALESCE(SUM(total_rewards), 0) AS total_rewards,
			COALESCE(SUM(CASE WHEN total_invites > 0 THEN 1 ELSE 0 END), 0) AS inviter_count,
			COUNT(*) AS stats_count`).
		Scan(&row).Error
	if err != nil {
		return InviteStatsAggregate{}, err
	}
	return InviteStatsAggregate{
		TotalInvites: row.TotalInvites,
		TotalRewards: row.TotalRewards,
		InviterCount: row.InviterCount,
		StatsCount:   row.StatsCount,
	}, nil
}

// GetRelationByInvitee 按被邀请人获取邀请关系
func (r *GormInviteRepository) GetRelationByInvitee(inviteeID string) (*models.InviteRelation, error) {
	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return nil, nil
	}
	var relation models.InviteRelation
	if err := r.db.Where("invitee_id = ?", inviteeID).First(&relation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &relation, nil
}

// CreateRelation 创建邀请关系
func (r *GormInviteRepository) CreateRelation(relation *models.InviteRelation) error {
	return r.db.Create(relation).Error
}

// MarkRelationFlag 仅当标记仍为 false 时置为 true，返回本次是否由当前调用置位
func (r *GormInviteRepository) MarkRelationFlag(inviteeID, flag string) (bool, error) {
	if _, ok := relationFlagColumns[flag]; !ok {
		return false, fmt.Errorf("unknown relation flag: %s", flag)
	}
	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return false, nil
	}
	result := r.db.Model(&models.InviteRelation{}).
		Where("invitee_id = ?", inviteeID).
		Where(flag+" = ?", false).
		UpdateColumns(map[string]interface{}{
			flag:         true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListRelationsByInviter 按邀请时间倒序列出邀请人的下线
func (r *GormInviteRepository) ListRelationsByInviter(inviterID string, limit int) ([]models.InviteRelation, error) {
	inviterID = strings.TrimSpace(inviterID)
	if inviterID == "" {
		return []models.InviteRelation{}, nil
	}
	query := r.db.Where("inviter_id = ?", inviterID).Order("invited_at desc").Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.InviteRelation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRelationsByInviters 批量获取多个邀请人的直接下线
func (r *GormInviteRepository) ListRelationsByInviters(inviterIDs []string) ([]models.InviteRelation, error) {
	if len(inviterIDs) == 0 {
		return []models.InviteRelation{}, nil
	}
	var rows []models.InviteRelation
	if err := r.db.Where("inviter_id IN ?", inviterIDs).
		Order("invited_at asc").
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingRegistrations 查询注册奖励尚未发放的邀请关系
func (r *GormInviteRepository) ListPendingRegistrations(filter PendingRegistrationFilter) ([]models.InviteRelation, error) {
	query := r.db.Where("registration_reward_given = ?", false)
	if !filter.InvitedBefore.IsZero() {
		query = query.Where("invited_at <= ?", filter.InvitedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []models.InviteRelation
	if err := query.Order("invited_at asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountRelationsSince 统计指定时间之后建立的邀请关系
func (r *GormInviteRepository) CountRelationsSince(since time.Time) (int64, error) {
	var count int64
	if err := r.db.Model(&models.InviteRelation{}).
		Where("invited_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
