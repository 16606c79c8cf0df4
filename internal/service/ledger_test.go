package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"

	"gorm.io/gorm"
)

// racingGoldRepo 模拟并发入账时的竞争窗口
type racingGoldRepo struct {
	repository.GoldRepository
	state *racingGoldState
}

type racingGoldState struct {
	db                *gorm.DB
	accountCreatedBy  string // 非空时在 CreateAccountIfAbsent 前由“另一请求”抢先建账户
	hideReferenceOnce bool   // 事务内首次查 reference 时返回不存在
	duplicateOnInsert bool   // 写流水时返回唯一键冲突，但并未落库
}

func (r *racingGoldRepo) WithTx(tx *gorm.DB) repository.GoldRepository {
	return &racingGoldRepo{GoldRepository: r.GoldRepository.WithTx(tx), state: r.state}
}

func (r *racingGoldRepo) CreateAccountIfAbsent(account *models.GoldAccount) error {
	if userID := r.state.accountCreatedBy; userID != "" {
		r.state.accountCreatedBy = ""
		now := time.Now()
		if err := r.state.db.Create(&models.GoldAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
			return err
		}
	}
	return r.GoldRepository.CreateAccountIfAbsent(account)
}

func (r *racingGoldRepo) GetTransactionByReference(reference string) (*models.GoldTransaction, error) {
	if r.state.hideReferenceOnce {
		r.state.hideReferenceOnce = false
		return nil, nil
	}
	return r.GoldRepository.GetTransactionByReference(reference)
}

func (r *racingGoldRepo) CreateTransaction(txn *models.GoldTransaction) error {
	if r.state.duplicateOnInsert {
		return errors.New(`ERROR: duplicate key value violates unique constraint "idx_gold_transactions_reference" (SQLSTATE 23505)`)
	}
	return r.GoldRepository.CreateTransaction(txn)
}

func newRacingGoldLedger(f *inviteTestFixture, state *racingGoldState) *GoldLedgerService {
	state.db = f.db
	return NewGoldLedgerService(&racingGoldRepo{GoldRepository: repository.NewGoldRepository(f.db), state: state})
}

func TestGoldLedgerCreditIsIdempotentByReference(t *testing.T) {
	f := setupInviteServiceTest(t)
	ledger := f.ledger.inner
	ctx := context.Background()

	balance, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "p1", Amount: 150, Reference: "invite:p1:register:invitee"})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if balance != 150 {
		t.Fatalf("balance want 150 got %d", balance)
	}
	balance, err = ledger.Credit(ctx, LedgerCreditInput{UserID: "p1", Amount: 150, Reference: "invite:p1:register:invitee"})
	if err != nil {
		t.Fatalf("repeat credit failed: %v", err)
	}
	if balance != 150 {
		t.Fatalf("repeat credit must not change balance, got %d", balance)
	}
	balance, err = ledger.Credit(ctx, LedgerCreditInput{UserID: "p1", Amount: 50, Reference: "invite:p1:first_charge"})
	if err != nil {
		t.Fatalf("second credit failed: %v", err)
	}
	if balance != 200 {
		t.Fatalf("balance want 200 got %d", balance)
	}

	var txns []models.GoldTransaction
	if err := f.db.Where("user_id = ?", "p1").Order("id asc").Find(&txns).Error; err != nil {
		t.Fatalf("list txns failed: %v", err)
	}
	if len(txns) != 2 || txns[1].BalanceBefore != 150 || txns[1].BalanceAfter != 200 {
		t.Fatalf("unexpected journal: %+v", txns)
	}

	read, err := ledger.Read(ctx, "p1")
	if err != nil || read.Gold != 200 {
		t.Fatalf("read balance mismatch: %+v err=%v", read, err)
	}
	empty, err := ledger.Read(ctx, "nobody")
	if err != nil || empty.Gold != 0 {
		t.Fatalf("unknown account should read 0: %+v err=%v", empty, err)
	}
}

func TestGoldLedgerCreditValidation(t *testing.T) {
	f := setupInviteServiceTest(t)
	ledger := f.ledger.inner
	ctx := context.Background()

	if _, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "", Amount: 1, Reference: "r"}); !errors.Is(err, ErrInviteUserInvalid) {
		t.Fatalf("expected invalid user, got %v", err)
	}
	if _, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "p", Amount: -1, Reference: "r"}); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger error for negative amount, got %v", err)
	}
	if _, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "p", Amount: 1}); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger error for empty reference, got %v", err)
	}
}

func TestGoldLedgerCreditAfterLosingAccountCreateRace(t *testing.T) {
	f := setupInviteServiceTest(t)
	ledger := newRacingGoldLedger(f, &racingGoldState{accountCreatedBy: "inviter"})

	balance, err := ledger.Credit(context.Background(), LedgerCreditInput{UserID: "inviter", Amount: 200, Reference: "invite:register:inviter:a"})
	if err != nil {
		t.Fatalf("credit after concurrent account creation failed: %v", err)
	}
	if balance != 200 || f.gold(t, "inviter") != 200 {
		t.Fatalf("expected balance 200, got %d (stored %d)", balance, f.gold(t, "inviter"))
	}
	var accounts int64
	if err := f.db.Model(&models.GoldAccount{}).Where("user_id = ?", "inviter").Count(&accounts).Error; err != nil {
		t.Fatalf("count accounts failed: %v", err)
	}
	if accounts != 1 {
		t.Fatalf("expected single account, got %d", accounts)
	}
}

func TestGoldLedgerCreditDuplicateWithoutJournalFails(t *testing.T) {
	f := setupInviteServiceTest(t)
	ledger := newRacingGoldLedger(f, &racingGoldState{duplicateOnInsert: true})

	balance, err := ledger.Credit(context.Background(), LedgerCreditInput{UserID: "inviter", Amount: 200, Reference: "invite:register:inviter:b"})
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ledger unavailable, got balance=%d err=%v", balance, err)
	}
	if f.gold(t, "inviter") != 0 {
		t.Fatalf("failed credit must not change balance, got %d", f.gold(t, "inviter"))
	}
	existing, err := repository.NewGoldRepository(f.db).GetTransactionByReference("invite:register:inviter:b")
	if err != nil || existing != nil {
		t.Fatalf("no journal row expected, got %+v err=%v", existing, err)
	}
}

func TestGoldLedgerCreditConcurrentSameReferenceSucceeds(t *testing.T) {
	f := setupInviteServiceTest(t)
	ctx := context.Background()
	input := LedgerCreditInput{UserID: "inviter", Amount: 200, Reference: "invite:register:inviter:c"}
	if _, err := f.ledger.inner.Credit(ctx, input); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}

	// 第二次请求在事务内读不到流水，写入时撞上唯一键
	ledger := newRacingGoldLedger(f, &racingGoldState{hideReferenceOnce: true})
	balance, err := ledger.Credit(ctx, input)
	if err != nil {
		t.Fatalf("duplicate reference with stored journal should succeed: %v", err)
	}
	if balance != 200 || f.gold(t, "inviter") != 200 {
		t.Fatalf("expected balance to stay 200, got %d (stored %d)", balance, f.gold(t, "inviter"))
	}
}

func TestGoldLedgerListJournal(t *testing.T) {
	f := setupInviteServiceTest(t)
	ledger := f.ledger.inner
	ctx := context.Background()

	for i, ref := range []string{"r1", "r2", "r3"} {
		if _, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "p1", Amount: int64(10 * (i + 1)), Reference: ref, TxnType: "invite_register"}); err != nil {
			t.Fatalf("credit %s failed: %v", ref, err)
		}
	}
	if _, err := ledger.Credit(ctx, LedgerCreditInput{UserID: "p2", Amount: 5, Reference: "other", TxnType: "invite_register"}); err != nil {
		t.Fatalf("credit other failed: %v", err)
	}

	rows, total, err := ledger.ListJournal(ctx, GoldJournalQuery{UserID: "p1", Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list journal failed: %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("expected 2 of 3 rows, got %d of %d", len(rows), total)
	}
	if rows[0].Reference != "r3" || rows[0].BalanceAfter != 60 {
		t.Fatalf("expected newest row first, got %+v", rows[0])
	}
	if _, _, err := ledger.ListJournal(ctx, GoldJournalQuery{}); !errors.Is(err, ErrInviteUserInvalid) {
		t.Fatalf("expected invalid user error, got %v", err)
	}
}

func TestLocalKeyLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalKeyLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	other, err := locker.Lock(ctx, "other")
	if err != nil {
		t.Fatalf("lock other key failed: %v", err)
	}
	other()

	waitCtx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := locker.Lock(waitCtx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled while key held, got %v", err)
	}
	unlock()
	unlock()

	again, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	again()
	if len(locker.locks) != 0 {
		t.Fatalf("lock entries should be released, got %d", len(locker.locks))
	}
}
