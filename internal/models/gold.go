package models

import "time"

// GoldAccount 金币账户
type GoldAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (GoldAccount) TableName() string {
	return "gold_accounts"
}

// GoldTransaction 金币流水，reference 保证幂等
type GoldTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Reference     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (GoldTransaction) TableName() string {
	return "gold_transactions"
}
