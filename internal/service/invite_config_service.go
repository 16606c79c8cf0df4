package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultInviteConfigCacheTTL = 60 * time.Second

// inviteConfigCache 进程内生效配置缓存，跨进程仅保证 TTL 内最终一致
type inviteConfigCache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	record     *models.InviteRewardConfigRecord
	expiresAt  time.Time
	generation uint64 // 每次写入或清空递增，回填时比对
}

func newInviteConfigCache(ttl time.Duration) *inviteConfigCache {
	if ttl <= 0 {
		ttl = defaultInviteConfigCacheTTL
	}
	return &inviteConfigCache{ttl: ttl}
}

func (c *inviteConfigCache) get(now time.Time) (*models.InviteRewardConfigRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil || !now.Before(c.expiresAt) {
		return nil, false
	}
	clone := *c.record
	return &clone, true
}

// snapshot 返回当前代数，读库前调用
func (c *inviteConfigCache) snapshot() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *inviteConfigCache) set(record *models.InviteRewardConfigRecord, now time.Time) {
	if record == nil {
		c.clear()
		return
	}
	clone := *record
	c.mu.Lock()
	c.generation++
	c.record = &clone
	c.expiresAt = now.Add(c.ttl)
	c.mu.Unlock()
}

// fill 回填读库结果；读库期间缓存被更新或清空过则放弃
func (c *inviteConfigCache) fill(record *models.InviteRewardConfigRecord, generation uint64, now time.Time) bool {
	if record == nil {
		return false
	}
	clone := *record
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.generation++
	c.record = &clone
	c.expiresAt = now.Add(c.ttl)
	return true
}

func (c *inviteConfigCache) clear() {
	c.mu.Lock()
	c.generation++
	c.record = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// InviteConfigUpdateInput 奖励配置更新参数
type InviteConfigUpdateInput struct {
	Config       InviteRewardConfigParams
	Comment      string
	ReviewerID   string
	ReviewerName string
	ReviewStatus string // 为空时视为 approved
	OperatorID   string
	OperatorName string
}

// InviteConfigHistoryQuery 历史查询参数
type InviteConfigHistoryQuery struct {
	Page         int
	PageSize     int
	Status       string
	ReviewStatus string
}

// InviteConfigService 邀请奖励配置服务
type InviteConfigService struct {
	configRepo repository.InviteConfigRepository
	locker     KeyLocker
	defaults   models.InviteRewardConfig
	cache      *inviteConfigCache
	now        func() time.Time
}

// NewInviteConfigService 创建奖励配置服务
func NewInviteConfigService(configRepo repository.InviteConfigRepository, locker KeyLocker, cfg config.InviteConfig) *InviteConfigService {
	if locker == nil {
		locker = NewLocalKeyLocker()
	}
	return &InviteConfigService{
		configRepo: configRepo,
		locker:     locker,
		defaults:   DefaultInviteRewardConfig(cfg.DefaultRewards),
		cache:      newInviteConfigCache(time.Duration(cfg.ConfigCacheTTLSeconds) * time.Second),
		now:        time.Now,
	}
}

// GetActiveConfig 获取当前生效配置，无记录时初始化版本 1
func (s *InviteConfigService) GetActiveConfig(ctx context.Context) (*models.InviteRewardConfigRecord, error) {
	if record, ok := s.cache.get(s.now()); ok {
		return record, nil
	}
	generation := s.cache.snapshot()
	record, err := s.configRepo.GetLatestActive()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if record == nil {
		unlock, err := s.locker.Lock(ctx, inviteConfigLockKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
		}
		defer unlock()
		record, err = s.ensureActiveLocked()
		if err != nil {
			return nil, err
		}
	}
	if !s.cache.fill(record, generation, s.now()) {
		logger.Debugw("invite_config_cache_fill_skipped", "version", record.Version)
	}
	clone := *record
	return &clone, nil
}

// GetRewardConfig 返回生效配置中的奖励参数
func (s *InviteConfigService) GetRewardConfig(ctx context.Context) (models.InviteRewardConfig, error) {
	record, err := s.GetActiveConfig(ctx)
	if err != nil {
		return models.InviteRewardConfig{}, err
	}
	return record.Config, nil
}

// UpdateConfig 写入新版本配置，审核通过则立即生效，否则进入待审核
func (s *InviteConfigService) UpdateConfig(ctx context.Context, input InviteConfigUpdateInput) (*models.InviteRewardConfigRecord, error) {
	reviewStatus, err := normalizeInviteReviewStatus(input.ReviewStatus)
	if err != nil {
		return nil, err
	}
	status := constants.InviteConfigStatusPending
	if reviewStatus == constants.InviteReviewStatusApproved {
		status = constants.InviteConfigStatusActive
	}

	unlock, err := s.locker.Lock(ctx, inviteConfigLockKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	defer unlock()

	if _, err := s.ensureActiveLocked(); err != nil {
		return nil, err
	}
	maxVersion, err := s.configRepo.GetMaxVersion()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := s.now()
	record := &models.InviteRewardConfigRecord{
		Version:       maxVersion + 1,
		Config:        NormalizeInviteRewardConfig(input.Config),
		Status:        status,
		ReviewStatus:  reviewStatus,
		UpdatedAt:     now,
		UpdatedByID:   fallbackOperator(input.OperatorID, constants.SystemOperatorID),
		UpdatedByName: fallbackOperator(input.OperatorName, constants.SystemOperatorName),
		Comment:       strings.TrimSpace(input.Comment),
	}
	if reviewerID := strings.TrimSpace(input.ReviewerID); reviewerID != "" {
		record.ReviewerID = reviewerID
		record.ReviewerName = strings.TrimSpace(input.ReviewerName)
		if reviewStatus != constants.InviteReviewStatusPending {
			reviewedAt := now
			record.ReviewedAt = &reviewedAt
		}
	}

	err = s.configRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.configRepo.WithTx(tx)
		if status == constants.InviteConfigStatusActive {
			if _, err := repo.ArchiveActive(); err != nil {
				return err
			}
		}
		if err := repo.CreateRecord(record); err != nil {
			return err
		}
		return repo.CreateHistory(models.NewInviteRewardConfigHistory(uuid.NewString(), record))
	})
	if err != nil {
		s.cache.clear()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if status == constants.InviteConfigStatusActive {
		s.cache.set(record, now)
	} else {
		s.cache.clear()
	}
	logger.Infow("invite_config_updated",
		"version", record.Version,
		"status", record.Status,
		"review_status", record.ReviewStatus,
		"operator_id", record.UpdatedByID,
	)
	clone := *record
	return &clone, nil
}

// GetHistory 分页查询配置历史
func (s *InviteConfigService) GetHistory(ctx context.Context, query InviteConfigHistoryQuery) ([]models.InviteRewardConfigHistory, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.configRepo.ListHistory(repository.InviteConfigHistoryFilter{
		Page:         query.Page,
		PageSize:     query.PageSize,
		Status:       strings.TrimSpace(query.Status),
		ReviewStatus: strings.TrimSpace(query.ReviewStatus),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return rows, total, nil
}

// GetConfigByVersion 按版本号读取配置，包含待审核与已归档版本
func (s *InviteConfigService) GetConfigByVersion(ctx context.Context, version int64) (*models.InviteRewardConfigRecord, error) {
	if version <= 0 {
		return nil, fmt.Errorf("%w: 版本号必须大于 0", ErrInviteConfigInvalid)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := s.configRepo.GetByVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if record == nil {
		return nil, ErrInviteConfigNotFound
	}
	return record, nil
}

// ClearCache 清空进程内配置缓存
func (s *InviteConfigService) ClearCache() {
	s.cache.clear()
}

// ensureActiveLocked 调用方需持有配置锁
func (s *InviteConfigService) ensureActiveLocked() (*models.InviteRewardConfigRecord, error) {
	active, err := s.configRepo.GetLatestActive()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if active != nil {
		return active, nil
	}
	maxVersion, err := s.configRepo.GetMaxVersion()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := s.now()
	reviewedAt := now
	record := &models.InviteRewardConfigRecord{
		Version:       maxVersion + 1,
		Config:        s.defaults,
		Status:        constants.InviteConfigStatusActive,
		ReviewStatus:  constants.InviteReviewStatusApproved,
		UpdatedAt:     now,
		UpdatedByID:   constants.SystemOperatorID,
		UpdatedByName: constants.SystemOperatorName,
		ReviewerID:    constants.SystemOperatorID,
		ReviewerName:  constants.SystemOperatorName,
		ReviewedAt:    &reviewedAt,
		Comment:       "默认配置",
	}
	err = s.configRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.configRepo.WithTx(tx)
		if err := repo.CreateRecord(record); err != nil {
			return err
		}
		return repo.CreateHistory(models.NewInviteRewardConfigHistory(uuid.NewString(), record))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	logger.Infow("invite_config_bootstrapped", "version", record.Version)
	return record, nil
}

func normalizeInviteReviewStatus(raw string) (string, error) {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch status {
	case "":
		return constants.InviteReviewStatusApproved, nil
	case constants.InviteReviewStatusApproved, constants.InviteReviewStatusPending, constants.InviteReviewStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: 审核状态不支持 %s", ErrInviteConfigInvalid, raw)
	}
}

func fallbackOperator(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
