package repository

import (
	"errors"
	"strings"

	"github.com/invite-center/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GoldRepository 金币账户数据访问接口
type GoldRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) GoldRepository

	GetAccountByUserID(userID string) (*models.GoldAccount, error)
	GetAccountByUserIDForUpdate(userID string) (*models.GoldAccount, error)
	CreateAccountIfAbsent(account *models.GoldAccount) error
	AddBalance(accountID uint, amount int64) error
	CreateTransaction(txn *models.GoldTransaction) error
	GetTransactionByReference(reference string) (*models.GoldTransaction, error)
	ListTransactions(filter GoldTransactionListFilter) ([]models.GoldTransaction, int64, error)
}

// GormGoldRepository GORM 金币仓储实现
type GormGoldRepository struct {
	db *gorm.DB
}

// NewGoldRepository 创建金币仓储
func NewGoldRepository(db *gorm.DB) *GormGoldRepository {
	return &GormGoldRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGoldRepository) WithTx(tx *gorm.DB) GoldRepository {
	if tx == nil {
		return r
	}
	return &GormGoldRepository{db: tx}
}

// Transaction 执行事务
func (r *GormGoldRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetAccountByUserID 按用户获取金币账户
func (r *GormGoldRepository) GetAccountByUserID(userID string) (*models.GoldAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var account models.GoldAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByUserIDForUpdate 按用户加锁获取金币账户
func (r *GormGoldRepository) GetAccountByUserIDForUpdate(userID string) (*models.GoldAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var account models.GoldAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccountIfAbsent 创建金币账户，user_id 已存在时不做任何改动
func (r *GormGoldRepository) CreateAccountIfAbsent(account *models.GoldAccount) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(account).Error
}

// AddBalance 原子增加余额
func (r *GormGoldRepository) AddBalance(accountID uint, amount int64) error {
	if accountID == 0 || amount == 0 {
		return nil
	}
	return r.db.Model(&models.GoldAccount{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error
}

// CreateTransaction 创建金币流水
func (r *GormGoldRepository) CreateTransaction(txn *models.GoldTransaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByReference 按参考号获取流水
func (r *GormGoldRepository) GetTransactionByReference(reference string) (*models.GoldTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.GoldTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 分页查询金币流水
func (r *GormGoldRepository) ListTransactions(filter GoldTransactionListFilter) ([]models.GoldTransaction, int64, error) {
	query := r.db.Model(&models.GoldTransaction{})
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if txnType := strings.TrimSpace(filter.Type); txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.GoldTransaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
