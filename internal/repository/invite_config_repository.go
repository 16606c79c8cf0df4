package repository

import (
	"errors"
	"strings"

	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/models"

	"gorm.io/gorm"
)

// InviteConfigRepository 邀请奖励配置数据访问接口
type InviteConfigRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) InviteConfigRepository

	GetLatestActive() (*models.InviteRewardConfigRecord, error)
	GetByVersion(version int64) (*models.InviteRewardConfigRecord, error)
	GetMaxVersion() (int64, error)
	ArchiveActive() (int64, error)
	CountActive() (int64, error)
	CreateRecord(record *models.InviteRewardConfigRecord) error
	CreateHistory(history *models.InviteRewardConfigHistory) error
	ListHistory(filter InviteConfigHistoryFilter) ([]models.InviteRewardConfigHistory, int64, error)
}

// GormInviteConfigRepository GORM 奖励配置仓储
type GormInviteConfigRepository struct {
	db *gorm.DB
}

// NewInviteConfigRepository 创建奖励配置仓储
func NewInviteConfigRepository(db *gorm.DB) *GormInviteConfigRepository {
	return &GormInviteConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInviteConfigRepository) WithTx(tx *gorm.DB) InviteConfigRepository {
	if tx == nil {
		return r
	}
	return &GormInviteConfigRepository{db: tx}
}

// Transaction 执行事务
func (r *GormInviteConfigRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetLatestActive 获取最近写入的生效配置
func (r *GormInviteConfigRepository) GetLatestActive() (*models.InviteRewardConfigRecord, error) {
	var record models.InviteRewardConfigRecord
	if err := r.db.Where("status = ?", constants.InviteConfigStatusActive).
		Order("updated_at desc").
		Order("version desc").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByVersion 按版本号获取配置
func (r *GormInviteConfigRepository) GetByVersion(version int64) (*models.InviteRewardConfigRecord, error) {
	if version <= 0 {
		return nil, nil
	}
	var record models.InviteRewardConfigRecord
	if err := r.db.Where("version = ?", version).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetMaxVersion 获取当前最大版本号，无记录时返回 0
func (r *GormInviteConfigRepository) GetMaxVersion() (int64, error) {
	var maxVersion int64
	if err := r.db.Model(&models.InviteRewardConfigRecord{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return 0, err
	}
	return maxVersion, nil
}

// ArchiveActive 将全部生效配置置为归档
func (r *GormInviteConfigRepository) ArchiveActive() (int64, error) {
	result := r.db.Model(&models.InviteRewardConfigRecord{}).
		Where("status = ?", constants.InviteConfigStatusActive).
		UpdateColumn("status", constants.InviteConfigStatusArchived)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountActive 统计生效配置数量
func (r *GormInviteConfigRepository) CountActive() (int64, error) {
	var count int64
	if err := r.db.Model(&models.InviteRewardConfigRecord{}).
		Where("status = ?", constants.InviteConfigStatusActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateRecord 写入配置记录
func (r *GormInviteConfigRepository) CreateRecord(record *models.InviteRewardConfigRecord) error {
	return r.db.Create(record).Error
}

// CreateHistory 追加配置历史
func (r *GormInviteConfigRepository) CreateHistory(history *models.InviteRewardConfigHistory) error {
	return r.db.Create(history).Error
}

// ListHistory 分页查询配置历史
func (r *GormInviteConfigRepository) ListHistory(filter InviteConfigHistoryFilter) ([]models.InviteRewardConfigHistory, int64, error) {
	query := r.db.Model(&models.InviteRewardConfigHistory{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if reviewStatus := strings.TrimSpace(filter.ReviewStatus); reviewStatus != "" {
		query = query.Where("review_status = ?", reviewStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.InviteRewardConfigHistory
	if err := query.Order("created_at desc").Order("version desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
