package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	inviteCodeMaxRetry       = 8
	inviteCodeMinLength      = 4
	inviteCodeMaxLength      = 32
	inviteDefaultChainDepth  = 10
	inviteDefaultTreeDepth   = 10
	inviteTreeBatchSize      = 500
	inviteListDefaultLimit   = 50
	inviteListMaxLimit       = 500
	inviteLeaderboardMaxSize = 100
)

// InviteRewardSource 奖励参数来源
type InviteRewardSource interface {
	GetRewardConfig(ctx context.Context) (models.InviteRewardConfig, error)
}

// InviteServiceOptions 邀请服务参数
type InviteServiceOptions struct {
	CodePrefix     string
	CodeLength     int
	LinkBaseURL    string
	MaxChainDepth  int
	MaxTreeDepth   int
	MilestoneOnce  bool
	ReconcileGrace time.Duration
}

// InviteServiceOptionsFromConfig 从配置构建邀请服务参数
func InviteServiceOptionsFromConfig(cfg config.InviteConfig) InviteServiceOptions {
	return InviteServiceOptions{
		CodePrefix:     cfg.CodePrefix,
		CodeLength:     cfg.CodeLength,
		LinkBaseURL:    cfg.LinkBaseURL,
		MaxChainDepth:  cfg.MaxChainDepth,
		MaxTreeDepth:   cfg.MaxTreeDepth,
		MilestoneOnce:  cfg.MilestoneOnce,
		ReconcileGrace: time.Duration(cfg.ReconcileGraceSeconds) * time.Second,
	}
}

func (o InviteServiceOptions) normalized() InviteServiceOptions {
	o.CodePrefix = strings.ToUpper(strings.TrimSpace(o.CodePrefix))
	if o.CodeLength < inviteCodeMinLength {
		o.CodeLength = 8
	}
	if o.CodeLength > inviteCodeMaxLength {
		o.CodeLength = inviteCodeMaxLength
	}
	if o.MaxChainDepth <= 0 {
		o.MaxChainDepth = inviteDefaultChainDepth
	}
	if o.MaxTreeDepth <= 0 {
		o.MaxTreeDepth = inviteDefaultTreeDepth
	}
	if o.ReconcileGrace < 0 {
		o.ReconcileGrace = 0
	}
	return o
}

// InviteListItem 被邀请人列表项
type InviteListItem struct {
	InviteeID   string    `json:"invitee_id"`
	InvitedAt   time.Time `json:"invited_at"`
	RewardGiven bool      `json:"reward_given"`
}

// InviteInfo 用户邀请信息
type InviteInfo struct {
	Stats *models.InviteStats `json:"invite_stats"`
	List  []InviteListItem    `json:"invite_list"`
}

// InviteTreeNode 下线树节点
type InviteTreeNode struct {
	UserID   string            `json:"user_id"`
	Children []*InviteTreeNode `json:"children"`
}

// InviteService 邀请关系与阶段奖励服务
type InviteService struct {
	inviteRepo   repository.InviteRepository
	rewardSource InviteRewardSource
	ledger       Ledger
	locker       KeyLocker
	opts         InviteServiceOptions
	now          func() time.Time
}

// NewInviteService 创建邀请服务
func NewInviteService(
	inviteRepo repository.InviteRepository,
	rewardSource InviteRewardSource,
	ledger Ledger,
	locker KeyLocker,
	opts InviteServiceOptions,
) *InviteService {
	if locker == nil {
		locker = NewLocalKeyLocker()
	}
	return &InviteService{
		inviteRepo:   inviteRepo,
		rewardSource: rewardSource,
		ledger:       ledger,
		locker:       locker,
		opts:         opts.normalized(),
		now:          time.Now,
	}
}

// IssueOrFetchInviteCode 获取用户邀请码，不存在时生成
func (s *InviteService) IssueOrFetchInviteCode(ctx context.Context, userID string) (*models.InviteStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInviteUserInvalid
	}
	stats, err := s.inviteRepo.GetStatsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if stats != nil {
		return stats, nil
	}

	var lastErr error
	for attempt := 0; attempt < inviteCodeMaxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := s.now()
		code := s.generateInviteCode(userID, now.UnixNano()+int64(attempt))
		stats = &models.InviteStats{
			UserID:     userID,
			InviteCode: code,
			InviteLink: s.BuildInviteLink(code),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := s.inviteRepo.CreateStats(stats)
		if err == nil {
			return stats, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		// 并发生成时以先落库者为准，否则视为邀请码碰撞重新生成
		existing, queryErr := s.inviteRepo.GetStatsByUserID(userID)
		if queryErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, queryErr)
		}
		if existing != nil {
			return existing, nil
		}
		lastErr = err
		logger.Warnw("invite_code_collision", "user_id", userID, "code", code, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: 邀请码生成失败: %w", ErrStoreUnavailable, lastErr)
}

// BuildInviteLink 由邀请码生成邀请链接
func (s *InviteService) BuildInviteLink(code string) string {
	base := strings.TrimSpace(s.opts.LinkBaseURL)
	query := "code=" + url.QueryEscape(code)
	if base == "" {
		return "?" + query
	}
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}

// AcceptInvite 被邀请人填写邀请码并发放注册奖励
func (s *InviteService) AcceptInvite(ctx context.Context, inviteeID, code string) error {
	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return ErrInviteUserInvalid
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ErrInviteCodeInvalid
	}

	unlock, err := s.locker.Lock(ctx, inviteAcceptLockKey(inviteeID))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	defer unlock()

	inviterStats, err := s.inviteRepo.GetStatsByCode(code)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if inviterStats == nil {
		return ErrInviteCodeInvalid
	}
	if inviterStats.UserID == inviteeID {
		return ErrSelfInvite
	}
	existing, err := s.inviteRepo.GetRelationByInvitee(inviteeID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if existing != nil {
		return ErrAlreadyInvited
	}

	now := s.now()
	relation := &models.InviteRelation{
		InviterID:      inviterStats.UserID,
		InviteeID:      inviteeID,
		InviteCodeUsed: code,
		InvitedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.inviteRepo.CreateRelation(relation); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyInvited
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	logger.Infow("invite_relation_created", "inviter_id", relation.InviterID, "invitee_id", inviteeID, "code", code)

	if err := s.grantRegistrationReward(ctx, relation); err != nil {
		logger.Errorw("invite_registration_reward_failed",
			"inviter_id", relation.InviterID,
			"invitee_id", inviteeID,
			"error", err,
		)
		return err
	}
	return nil
}

// HandleFirstCharge 被邀请人首充时按比例奖励邀请人，仅发放一次
func (s *InviteService) HandleFirstCharge(ctx context.Context, userID string, amount decimal.Decimal) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInviteUserInvalid
	}
	unlock, err := s.locker.Lock(ctx, inviteStageLockKey(userID))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	defer unlock()

	relation, err := s.inviteRepo.GetRelationByInvitee(userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if relation == nil || relation.FirstChargeRewardGiven {
		return nil
	}
	if !amount.IsPositive() {
		logger.Warnw("invite_first_charge_amount_invalid", "user_id", userID, "amount", amount.String())
		return nil
	}

	cfg, err := s.rewardSource.GetRewardConfig(ctx)
	if err != nil {
		return err
	}
	reward := calculateFirstChargeReward(amount, cfg.FirstChargeRate)
	reference := buildInviteReference(userID, "first_charge")
	return s.grantFlaggedStage(ctx, relation, repository.RelationFlagFirstCharge, reward, reference, constants.GoldTxnTypeInviteFirstCharge)
}

// HandleLevelUpReward 被邀请人升级时奖励邀请人
func (s *InviteService) HandleLevelUpReward(ctx context.Context, userID string, level int) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInviteUserInvalid
	}
	unlock, err := s.locker.Lock(ctx, inviteStageLockKey(userID))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	defer unlock()

	relation, err := s.inviteRepo.GetRelationByInvitee(userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if relation == nil || level < 10 {
		return nil
	}
	cfg, err := s.rewardSource.GetRewardConfig(ctx)
	if err != nil {
		return err
	}

	if s.opts.MilestoneOnce {
		milestones := []struct {
			level  int
			given  bool
			flag   string
			reward int64
		}{
			{10, relation.Level10RewardGiven, repository.RelationFlagLevel10, cfg.Level10Reward},
			{20, relation.Level20RewardGiven, repository.RelationFlagLevel20, cfg.Level20Reward},
			{30, relation.Level30RewardGiven, repository.RelationFlagLevel30, cfg.Level30Reward},
		}
		for _, m := range milestones {
			if level < m.level || m.given {
				continue
			}
			reference := buildInviteReference(userID, "level"+strconv.Itoa(m.level))
			if err := s.grantFlaggedStage(ctx, relation, m.flag, m.reward, reference, constants.GoldTxnTypeInviteLevel); err != nil {
				return err
			}
		}
		return nil
	}

	// 20/30 级无发放标记，重复事件会重复发放
	switch {
	case !relation.Level10RewardGiven:
		reference := buildInviteReference(userID, "level10")
		return s.grantFlaggedStage(ctx, relation, repository.RelationFlagLevel10, cfg.Level10Reward, reference, constants.GoldTxnTypeInviteLevel)
	case level >= 30:
		return s.grantRepeatableStage(ctx, relation, 30, cfg.Level30Reward)
	case level >= 20:
		return s.grantRepeatableStage(ctx, relation, 20, cfg.Level20Reward)
	}
	return nil
}

// GetInviteChainDepth 沿邀请人向上追溯的层数
func (s *InviteService) GetInviteChainDepth(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInviteUserInvalid
	}
	visited := map[string]struct{}{userID: {}}
	current := userID
	depth := 0
	for depth < s.opts.MaxChainDepth {
		if err := ctx.Err(); err != nil {
			return depth, err
		}
		relation, err := s.inviteRepo.GetRelationByInvitee(current)
		if err != nil {
			return depth, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if relation == nil {
			break
		}
		if _, seen := visited[relation.InviterID]; seen {
			logger.Warnw("invite_chain_cycle_detected", "user_id", userID, "at", relation.InviterID)
			break
		}
		visited[relation.InviterID] = struct{}{}
		depth++
		current = relation.InviterID
	}
	return depth, nil
}

// GetInviteTree 按层展开下线，深度受 maxDepth 限制
func (s *InviteService) GetInviteTree(ctx context.Context, userID string, maxDepth int) (*InviteTreeNode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInviteUserInvalid
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > s.opts.MaxTreeDepth {
		maxDepth = s.opts.MaxTreeDepth
	}

	root := &InviteTreeNode{UserID: userID, Children: []*InviteTreeNode{}}
	visited := map[string]struct{}{userID: {}}
	frontier := []*InviteTreeNode{root}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes := make(map[string]*InviteTreeNode, len(frontier))
		ids := make([]string, 0, len(frontier))
		for _, node := range frontier {
			nodes[node.UserID] = node
			ids = append(ids, node.UserID)
		}
		var next []*InviteTreeNode
		for start := 0; start < len(ids); start += inviteTreeBatchSize {
			end := start + inviteTreeBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			relations, err := s.inviteRepo.ListRelationsByInviters(ids[start:end])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
			for _, relation := range relations {
				if _, seen := visited[relation.InviteeID]; seen {
					continue
				}
				parent, ok := nodes[relation.InviterID]
				if !ok {
					continue
				}
				visited[relation.InviteeID] = struct{}{}
				child := &InviteTreeNode{UserID: relation.InviteeID, Children: []*InviteTreeNode{}}
				parent.Children = append(parent.Children, child)
				next = append(next, child)
			}
		}
		frontier = next
	}
	return root, nil
}

// GetInviteLeaderboard 按邀请数排序的前 limit 名
func (s *InviteService) GetInviteLeaderboard(ctx context.Context, limit int) ([]models.InviteStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > inviteLeaderboardMaxSize {
		limit = inviteLeaderboardMaxSize
	}
	rows, _, err := s.inviteRepo.ListStats(repository.InviteStatsListFilter{
		Page:     1,
		PageSize: limit,
		SortBy:   constants.InviteSortByInvites,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// GetInviteList 用户邀请的被邀请人列表，按邀请时间倒序
func (s *InviteService) GetInviteList(ctx context.Context, userID string, limit int) ([]InviteListItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInviteUserInvalid
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = inviteListDefaultLimit
	}
	if limit > inviteListMaxLimit {
		limit = inviteListMaxLimit
	}
	relations, err := s.inviteRepo.ListRelationsByInviter(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	items := make([]InviteListItem, 0, len(relations))
	for _, relation := range relations {
		items = append(items, InviteListItem{
			InviteeID:   relation.InviteeID,
			InvitedAt:   relation.InvitedAt,
			RewardGiven: relation.RegistrationRewardGiven,
		})
	}
	return items, nil
}

// GetInviteInfo 用户邀请码、统计与被邀请人列表
func (s *InviteService) GetInviteInfo(ctx context.Context, userID string) (*InviteInfo, error) {
	stats, err := s.IssueOrFetchInviteCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.GetInviteList(ctx, stats.UserID, inviteListDefaultLimit)
	if err != nil {
		return nil, err
	}
	return &InviteInfo{Stats: stats, List: list}, nil
}

// ReconcileRegistrationRewards 补发注册奖励失败的邀请关系，返回补发成功数量
func (s *InviteService) ReconcileRegistrationRewards(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	relations, err := s.inviteRepo.ListPendingRegistrations(repository.PendingRegistrationFilter{
		InvitedBefore: s.now().Add(-s.opts.ReconcileGrace),
		Limit:         limit,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	reconciled := 0
	for i := range relations {
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}
		ok, err := s.reconcileRegistration(ctx, relations[i].InviteeID)
		if err != nil {
			logger.Warnw("invite_registration_reconcile_failed",
				"invitee_id", relations[i].InviteeID,
				"error", err,
			)
			continue
		}
		if ok {
			reconciled++
		}
	}
	if reconciled > 0 {
		logger.Infow("invite_registration_reconciled", "count", reconciled)
	}
	return reconciled, nil
}

func (s *InviteService) reconcileRegistration(ctx context.Context, inviteeID string) (bool, error) {
	unlock, err := s.locker.Lock(ctx, inviteAcceptLockKey(inviteeID))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	defer unlock()

	relation, err := s.inviteRepo.GetRelationByInvitee(inviteeID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if relation == nil || relation.RegistrationRewardGiven {
		return false, nil
	}
	if err := s.grantRegistrationReward(ctx, relation); err != nil {
		return false, err
	}
	return true, nil
}

// grantRegistrationReward 入账全部成功后才置位标记并累加统计
func (s *InviteService) grantRegistrationReward(ctx context.Context, relation *models.InviteRelation) error {
	cfg, err := s.rewardSource.GetRewardConfig(ctx)
	if err != nil {
		return err
	}
	if err := s.credit(ctx, LedgerCreditInput{
		UserID:    relation.InviteeID,
		Amount:    cfg.RegisterReward,
		Reference: buildInviteReference(relation.InviteeID, "register", "invitee"),
		TxnType:   constants.GoldTxnTypeInviteRegister,
		Remark:    "填写邀请码奖励",
	}); err != nil {
		return err
	}
	if err := s.credit(ctx, LedgerCreditInput{
		UserID:    relation.InviterID,
		Amount:    cfg.RegisterRewardInviter,
		Reference: buildInviteReference(relation.InviteeID, "register", "inviter"),
		TxnType:   constants.GoldTxnTypeInviteRegisterBy,
		Remark:    "邀请新用户奖励",
	}); err != nil {
		return err
	}

	return s.markStage(relation, repository.RelationFlagRegistration, repository.InviteStatsDelta{
		TotalInvites: 1,
		ValidInvites: 1,
		TotalRewards: cfg.RegisterRewardInviter,
	})
}

func (s *InviteService) grantFlaggedStage(ctx context.Context, relation *models.InviteRelation, flag string, reward int64, reference, txnType string) error {
	if err := s.credit(ctx, LedgerCreditInput{
		UserID:    relation.InviterID,
		Amount:    reward,
		Reference: reference,
		TxnType:   txnType,
		Remark:    "下线阶段奖励",
	}); err != nil {
		return err
	}
	if err := s.markStage(relation, flag, repository.InviteStatsDelta{TotalRewards: reward}); err != nil {
		return err
	}
	logger.Infow("invite_stage_reward_granted",
		"inviter_id", relation.InviterID,
		"invitee_id", relation.InviteeID,
		"stage", flag,
		"reward", reward,
	)
	return nil
}

func (s *InviteService) grantRepeatableStage(ctx context.Context, relation *models.InviteRelation, level int, reward int64) error {
	reference := buildInviteReference(relation.InviteeID, "level"+strconv.Itoa(level), uuid.NewString())
	if err := s.credit(ctx, LedgerCreditInput{
		UserID:    relation.InviterID,
		Amount:    reward,
		Reference: reference,
		TxnType:   constants.GoldTxnTypeInviteLevel,
		Remark:    "下线等级奖励",
	}); err != nil {
		return err
	}
	if reward > 0 {
		if err := s.inviteRepo.IncrementStats(relation.InviterID, repository.InviteStatsDelta{TotalRewards: reward}); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	logger.Infow("invite_level_reward_granted",
		"inviter_id", relation.InviterID,
		"invitee_id", relation.InviteeID,
		"level", level,
		"reward", reward,
	)
	return nil
}

// markStage 在同一事务内置位标记，只有本次置位成功才累加统计
func (s *InviteService) markStage(relation *models.InviteRelation, flag string, delta repository.InviteStatsDelta) error {
	err := s.inviteRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.inviteRepo.WithTx(tx)
		changed, err := repo.MarkRelationFlag(relation.InviteeID, flag)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return repo.IncrementStats(relation.InviterID, delta)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *InviteService) credit(ctx context.Context, input LedgerCreditInput) error {
	if input.Amount <= 0 {
		return nil
	}
	if s.ledger == nil {
		return ErrLedgerUnavailable
	}
	if _, err := s.ledger.Credit(ctx, input); err != nil {
		if errors.Is(err, ErrLedgerUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return nil
}

func (s *InviteService) generateInviteCode(userID string, seed int64) string {
	sum := sha256.Sum256([]byte(userID + strconv.FormatInt(seed, 10)))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return s.opts.CodePrefix + digest[:s.opts.CodeLength]
}

func calculateFirstChargeReward(amount decimal.Decimal, rate int64) int64 {
	if !amount.IsPositive() || rate <= 0 {
		return 0
	}
	return amount.Mul(decimal.NewFromInt(rate)).Div(decimal.NewFromInt(100)).Floor().IntPart()
}

func buildInviteReference(inviteeID string, parts ...string) string {
	return "invite:" + inviteeID + ":" + strings.Join(parts, ":")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
