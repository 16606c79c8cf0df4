package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type inviteTestFixture struct {
	db         *gorm.DB
	inviteRepo *repository.GormInviteRepository
	configSvc  *InviteConfigService
	ledger     *flakyLedger
	inviteSvc  *InviteService
	boardSvc   *InviteLeaderboardService
	inviteCfg  config.InviteConfig
}

// flakyLedger 可按用户注入失败的账本
type flakyLedger struct {
	inner  *GoldLedgerService
	mu     sync.Mutex
	failOn map[string]bool
	calls  int
}

func (l *flakyLedger) Credit(ctx context.Context, input LedgerCreditInput) (int64, error) {
	l.mu.Lock()
	l.calls++
	fail := l.failOn[input.UserID]
	l.mu.Unlock()
	if fail {
		return 0, errors.New("ledger timeout")
	}
	return l.inner.Credit(ctx, input)
}

func (l *flakyLedger) Read(ctx context.Context, userID string) (LedgerBalance, error) {
	return l.inner.Read(ctx, userID)
}

func (l *flakyLedger) setFail(userID string, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn == nil {
		l.failOn = map[string]bool{}
	}
	l.failOn[userID] = fail
}

func testInviteConfig() config.InviteConfig {
	return config.InviteConfig{
		CodePrefix:            "INV",
		CodeLength:            8,
		LinkBaseURL:           "https://game.example.com/invite",
		ConfigCacheTTLSeconds: 60,
		MaxChainDepth:         10,
		MaxTreeDepth:          5,
		ExportDefaultLimit:    1000,
		ExportMaxLimit:        10000,
		DefaultRewards: config.InviteRewardDefault{
			RegisterReward:        100,
			RegisterRewardInviter: 200,
			FirstChargeRate:       10,
			Level10Reward:         500,
			Level20Reward:         1000,
			Level30Reward:         2000,
		},
	}
}

func setupInviteServiceTest(t *testing.T, mutate ...func(*config.InviteConfig)) *inviteTestFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:invite_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := testInviteConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	locker := NewLocalKeyLocker()
	inviteRepo := repository.NewInviteRepository(db)
	configSvc := NewInviteConfigService(repository.NewInviteConfigRepository(db), locker, cfg)
	ledger := &flakyLedger{inner: NewGoldLedgerService(repository.NewGoldRepository(db))}
	inviteSvc := NewInviteService(inviteRepo, configSvc, ledger, locker, InviteServiceOptionsFromConfig(cfg))
	boardSvc := NewInviteLeaderboardService(inviteRepo, configSvc, cfg)

	return &inviteTestFixture{
		db:         db,
		inviteRepo: inviteRepo,
		configSvc:  configSvc,
		ledger:     ledger,
		inviteSvc:  inviteSvc,
		boardSvc:   boardSvc,
		inviteCfg:  cfg,
	}
}

func (f *inviteTestFixture) createStats(t *testing.T, userID, code string) *models.InviteStats {
	t.Helper()
	stats := &models.InviteStats{
		UserID:     userID,
		InviteCode: code,
		InviteLink: f.inviteSvc.BuildInviteLink(code),
	}
	if err := f.inviteRepo.CreateStats(stats); err != nil {
		t.Fatalf("create stats %s failed: %v", userID, err)
	}
	return stats
}

func (f *inviteTestFixture) createRelation(t *testing.T, inviterID, inviteeID string, invitedAt time.Time) {
	t.Helper()
	relation := &models.InviteRelation{
		InviterID:      inviterID,
		InviteeID:      inviteeID,
		InviteCodeUsed: "INVTEST0000",
		InvitedAt:      invitedAt,
	}
	if err := f.inviteRepo.CreateRelation(relation); err != nil {
		t.Fatalf("create relation %s->%s failed: %v", inviterID, inviteeID, err)
	}
}

func (f *inviteTestFixture) stats(t *testing.T, userID string) *models.InviteStats {
	t.Helper()
	stats, err := f.inviteRepo.GetStatsByUserID(userID)
	if err != nil {
		t.Fatalf("get stats %s failed: %v", userID, err)
	}
	if stats == nil {
		t.Fatalf("stats %s not found", userID)
	}
	return stats
}

func (f *inviteTestFixture) relation(t *testing.T, inviteeID string) *models.InviteRelation {
	t.Helper()
	relation, err := f.inviteRepo.GetRelationByInvitee(inviteeID)
	if err != nil {
		t.Fatalf("get relation %s failed: %v", inviteeID, err)
	}
	if relation == nil {
		t.Fatalf("relation %s not found", inviteeID)
	}
	return relation
}

func (f *inviteTestFixture) gold(t *testing.T, userID string) int64 {
	t.Helper()
	balance, err := f.ledger.Read(context.Background(), userID)
	if err != nil {
		t.Fatalf("read gold %s failed: %v", userID, err)
	}
	return balance.Gold
}
