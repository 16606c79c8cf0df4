package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/repository"

	"gorm.io/gorm"
)

var errGoldAccountMissing = errors.New("金币账户不存在")

// LedgerCreditInput 金币入账参数
type LedgerCreditInput struct {
	UserID    string
	Amount    int64
	Reference string // 幂等键，同一 reference 只入账一次
	TxnType   string
	Remark    string
}

// LedgerBalance 金币余额
type LedgerBalance struct {
	UserID string `json:"user_id"`
	Gold   int64  `json:"gold"`
}

// GoldJournalQuery 金币流水查询参数
type GoldJournalQuery struct {
	UserID   string
	Type     string
	Page     int
	PageSize int
}

// Ledger 外部金币账本
type Ledger interface {
	Credit(ctx context.Context, input LedgerCreditInput) (int64, error)
	Read(ctx context.Context, userID string) (LedgerBalance, error)
}

// GoldLedgerService 基于数据库的金币账本
type GoldLedgerService struct {
	goldRepo repository.GoldRepository
}

// NewGoldLedgerService 创建金币账本
func NewGoldLedgerService(goldRepo repository.GoldRepository) *GoldLedgerService {
	return &GoldLedgerService{goldRepo: goldRepo}
}

// Credit 按 reference 幂等入账，返回入账后余额
func (s *GoldLedgerService) Credit(ctx context.Context, input LedgerCreditInput) (int64, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return 0, ErrInviteUserInvalid
	}
	if input.Amount < 0 {
		return 0, fmt.Errorf("%w: negative amount %d", ErrLedgerUnavailable, input.Amount)
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return 0, fmt.Errorf("%w: empty reference", ErrLedgerUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	// 账户在事务外幂等创建，事务内只做加锁读取
	if err := s.goldRepo.CreateAccountIfAbsent(&models.GoldAccount{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	var balance int64
	err := s.goldRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.goldRepo.WithTx(tx)
		exists, err := repo.GetTransactionByReference(reference)
		if err != nil {
			return err
		}
		account, err := repo.GetAccountByUserIDForUpdate(userID)
		if err != nil {
			return err
		}
		if account == nil {
			return errGoldAccountMissing
		}
		if exists != nil || input.Amount == 0 {
			balance = account.Balance
			return nil
		}
		if err := repo.AddBalance(account.ID, input.Amount); err != nil {
			return err
		}
		balance = account.Balance + input.Amount
		return repo.CreateTransaction(&models.GoldTransaction{
			UserID:        userID,
			Type:          strings.TrimSpace(input.TxnType),
			Amount:        input.Amount,
			BalanceBefore: account.Balance,
			BalanceAfter:  balance,
			Reference:     reference,
			Remark:        cleanLedgerRemark(input.Remark),
			CreatedAt:     now,
		})
	})
	if err != nil {
		if isUniqueViolation(err) && s.referenceCredited(reference) {
			// 同一 reference 已由并发请求入账
			current, readErr := s.Read(ctx, userID)
			if readErr == nil {
				return current.Gold, nil
			}
		}
		logger.Warnw("gold_ledger_credit_failed",
			"user_id", userID,
			"reference", reference,
			"amount", input.Amount,
			"error", err,
		)
		return 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return balance, nil
}

// Read 读取余额，账户不存在时视为 0
func (s *GoldLedgerService) Read(ctx context.Context, userID string) (LedgerBalance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LedgerBalance{}, ErrInviteUserInvalid
	}
	if err := ctx.Err(); err != nil {
		return LedgerBalance{}, err
	}
	account, err := s.goldRepo.GetAccountByUserID(userID)
	if err != nil {
		return LedgerBalance{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if account == nil {
		return LedgerBalance{UserID: userID}, nil
	}
	return LedgerBalance{UserID: userID, Gold: account.Balance}, nil
}

// ListJournal 分页查询用户金币流水，按时间倒序
func (s *GoldLedgerService) ListJournal(ctx context.Context, query GoldJournalQuery) ([]models.GoldTransaction, int64, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return nil, 0, ErrInviteUserInvalid
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.goldRepo.ListTransactions(repository.GoldTransactionListFilter{
		Page:     query.Page,
		PageSize: query.PageSize,
		UserID:   userID,
		Type:     strings.TrimSpace(query.Type),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return rows, total, nil
}

func (s *GoldLedgerService) referenceCredited(reference string) bool {
	txn, err := s.goldRepo.GetTransactionByReference(reference)
	return err == nil && txn != nil
}

func cleanLedgerRemark(raw string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return "邀请奖励"
	}
	return remark
}
