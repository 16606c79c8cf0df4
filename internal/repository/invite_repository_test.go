package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupInviteRepositoryTest(t *testing.T) (*GormInviteRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:invite_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewInviteRepository(db), db
}

func seedInviteStats(t *testing.T, repo *GormInviteRepository, userID, code string, invites, rewards int64) {
	t.Helper()
	stats := &models.InviteStats{
		UserID:       userID,
		InviteCode:   code,
		InviteLink:   "https://example.com/invite?code=" + code,
		TotalInvites: invites,
		ValidInvites: invites,
		TotalRewards: rewards,
	}
	if err := repo.CreateStats(stats); err != nil {
		t.Fatalf("create stats %s failed: %v", userID, err)
	}
}

func TestInviteRepositoryRelationUniqueByInvitee(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	now := time.Now()

	first := &models.InviteRelation{InviterID: "a", InviteeID: "b", InviteCodeUsed: "INVAAAA0001", InvitedAt: now}
	if err := repo.CreateRelation(first); err != nil {
		t.Fatalf("create relation failed: %v", err)
	}
	second := &models.InviteRelation{InviterID: "c", InviteeID: "b", InviteCodeUsed: "INVCCCC0001", InvitedAt: now}
	if err := repo.CreateRelation(second); err == nil {
		t.Fatalf("expected unique violation on invitee_id")
	}

	got, err := repo.GetRelationByInvitee("b")
	if err != nil {
		t.Fatalf("get relation failed: %v", err)
	}
	if got == nil || got.InviterID != "a" {
		t.Fatalf("unexpected relation: %+v", got)
	}
	missing, err := repo.GetRelationByInvitee("nobody")
	if err != nil || missing != nil {
		t.Fatalf("missing relation should be nil, got=%+v err=%v", missing, err)
	}
}

func TestInviteRepositoryMarkRelationFlagOnlyOnce(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	if err := repo.CreateRelation(&models.InviteRelation{InviterID: "a", InviteeID: "b", InviteCodeUsed: "X", InvitedAt: time.Now()}); err != nil {
		t.Fatalf("create relation failed: %v", err)
	}

	changed, err := repo.MarkRelationFlag("b", RelationFlagFirstCharge)
	if err != nil || !changed {
		t.Fatalf("first mark should flip flag, changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkRelationFlag("b", RelationFlagFirstCharge)
	if err != nil || changed {
		t.Fatalf("second mark should be no-op, changed=%v err=%v", changed, err)
	}
	if _, err := repo.MarkRelationFlag("b", "gold; DROP TABLE"); err == nil {
		t.Fatalf("unknown flag should be rejected")
	}

	relation, err := repo.GetRelationByInvitee("b")
	if err != nil {
		t.Fatalf("get relation failed: %v", err)
	}
	if !relation.FirstChargeRewardGiven || relation.RegistrationRewardGiven {
		t.Fatalf("unexpected flags: %+v", relation)
	}
}

func TestInviteRepositoryIncrementStats(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	seedInviteStats(t, repo, "a", "INVAAAA0001", 0, 0)

	for i := 0; i < 3; i++ {
		if err := repo.IncrementStats("a", InviteStatsDelta{TotalInvites: 1, ValidInvites: 1, TotalRewards: 200}); err != nil {
			t.Fatalf("increment stats failed: %v", err)
		}
	}
	stats, err := repo.GetStatsByUserID("a")
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if stats.TotalInvites != 3 || stats.ValidInvites != 3 || stats.TotalRewards != 600 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if err := repo.IncrementStats("ghost", InviteStatsDelta{TotalRewards: 1}); err == nil {
		t.Fatalf("increment on missing stats should fail")
	}
}

func TestInviteRepositoryGetStatsByCodeIsCaseInsensitiveInput(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	seedInviteStats(t, repo, "a", "INVABCDEFGH", 0, 0)

	stats, err := repo.GetStatsByCode("  invabcdefgh ")
	if err != nil {
		t.Fatalf("get stats by code failed: %v", err)
	}
	if stats == nil || stats.UserID != "a" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestInviteRepositoryListStatsSortAndSearch(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	seedInviteStats(t, repo, "alice", "INVAAAA0001", 5, 100)
	seedInviteStats(t, repo, "bob", "INVBBBB0001", 5, 900)
	seedInviteStats(t, repo, "carol", "INVCCCC0001", 9, 50)
	seedInviteStats(t, repo, "dave", "INVDDDD0001", 0, 0)

	rows, total, err := repo.ListStats(InviteStatsListFilter{Page: 1, PageSize: 10, SortBy: constants.InviteSortByInvites})
	if err != nil {
		t.Fatalf("list stats failed: %v", err)
	}
	if total != 4 || len(rows) != 4 {
		t.Fatalf("unexpected total=%d len=%d", total, len(rows))
	}
	order := []string{rows[0].UserID, rows[1].UserID, rows[2].UserID, rows[3].UserID}
	want := []string{"carol", "bob", "alice", "dave"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("invites order mismatch: got=%v want=%v", order, want)
		}
	}

	rows, _, err = repo.ListStats(InviteStatsListFilter{Page: 1, PageSize: 2, SortBy: constants.InviteSortByRewards})
	if err != nil {
		t.Fatalf("list stats by rewards failed: %v", err)
	}
	if len(rows) != 2 || rows[0].UserID != "bob" || rows[1].UserID != "alice" {
		t.Fatalf("rewards order mismatch: %+v", rows)
	}

	rows, total, err = repo.ListStats(InviteStatsListFilter{Page: 1, PageSize: 10, Search: "invbb"})
	if err != nil {
		t.Fatalf("search stats failed: %v", err)
	}
	if total != 1 || rows[0].UserID != "bob" {
		t.Fatalf("search by code mismatch: total=%d rows=%+v", total, rows)
	}
	rows, total, err = repo.ListStats(InviteStatsListFilter{Page: 1, PageSize: 10, Search: "CAR"})
	if err != nil {
		t.Fatalf("search stats failed: %v", err)
	}
	if total != 1 || rows[0].UserID != "carol" {
		t.Fatalf("search by user mismatch: total=%d rows=%+v", total, rows)
	}
}

func TestInviteRepositorySummarizeAndCountSince(t *testing.T) {
	repo, _ := setupInviteRepositoryTest(t)
	seedInviteStats(t, repo, "alice", "INVAAAA0001", 2, 400)
	seedInviteStats(t, repo, "bob", "INVBBBB0001", 1, 200)
	seedInviteStats(t, repo, "carol", "INVCCCC0001", 0, 0)

	summary, err := repo.SummarizeStats()
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.TotalInvites != 3 || summary.TotalRewards != 600 || summary.InviterCount != 2 || summary.StatsCount != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	now := time.Now()
	relations := []models.InviteRelation{
		{InviterID: "alice", InviteeID: "u1", InviteCodeUsed: "INVAAAA0001", InvitedAt: now.Add(-48 * time.Hour)},
		{InviterID: "alice", InviteeID: "u2", InviteCodeUsed: "INVAAAA0001", InvitedAt: now},
		{InviterID: "bob", InviteeID: "u3", InviteCodeUsed: "INVBBBB0001", InvitedAt: now},
	}
	for i := range relations {
		if err := repo.CreateRelation(&relations[i]); err != nil {
			t.Fatalf("create relation failed: %v", err)
		}
	}
	count, err := repo.CountRelationsSince(now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count since failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count since want 2 got %d", count)
	}

	list, err := repo.ListRelationsByInviter("alice", 1)
	if err != nil {
		t.Fatalf("list by inviter failed: %v", err)
	}
	if len(list) != 1 || list[0].InviteeID != "u2" {
		t.Fatalf("list by inviter should return latest first: %+v", list)
	}

	pending, err := repo.ListPendingRegistrations(PendingRegistrationFilter{InvitedBefore: now.Add(-time.Hour), Limit: 10})
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].InviteeID != "u1" {
		t.Fatalf("pending registrations mismatch: %+v", pending)
	}
}

func TestInviteConfigRepositoryArchiveAndHistory(t *testing.T) {
	_, db := setupInviteRepositoryTest(t)
	repo := NewInviteConfigRepository(db)
	now := time.Now()

	for version := int64(1); version <= 2; version++ {
		record := &models.InviteRewardConfigRecord{
			Version:       version,
			Status:        constants.InviteConfigStatusActive,
			ReviewStatus:  constants.InviteReviewStatusApproved,
			UpdatedAt:     now.Add(time.Duration(version) * time.Second),
			UpdatedByID:   "system",
			UpdatedByName: "system",
		}
		if err := repo.CreateRecord(record); err != nil {
			t.Fatalf("create record failed: %v", err)
		}
		if err := repo.CreateHistory(models.NewInviteRewardConfigHistory(fmt.Sprintf("h-%d", version), record)); err != nil {
			t.Fatalf("create history failed: %v", err)
		}
	}

	latest, err := repo.GetLatestActive()
	if err != nil || latest == nil || latest.Version != 2 {
		t.Fatalf("latest active mismatch: %+v err=%v", latest, err)
	}
	maxVersion, err := repo.GetMaxVersion()
	if err != nil || maxVersion != 2 {
		t.Fatalf("max version mismatch: %d err=%v", maxVersion, err)
	}
	archived, err := repo.ArchiveActive()
	if err != nil || archived != 2 {
		t.Fatalf("archive mismatch: %d err=%v", archived, err)
	}
	count, err := repo.CountActive()
	if err != nil || count != 0 {
		t.Fatalf("active count after archive mismatch: %d err=%v", count, err)
	}

	rows, total, err := repo.ListHistory(InviteConfigHistoryFilter{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("list history failed: %v", err)
	}
	if total != 2 || len(rows) != 1 || rows[0].Version != 2 {
		t.Fatalf("history page mismatch: total=%d rows=%+v", total, rows)
	}
	if rows[0].Status != constants.InviteConfigStatusActive {
		t.Fatalf("history must keep original status, got %s", rows[0].Status)
	}
}
