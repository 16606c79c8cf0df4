package models

import "time"

// InviteRewardConfig 邀请奖励参数，均为非负整数金币
type InviteRewardConfig struct {
	RegisterReward        int64 `gorm:"not null;default:0" json:"register_reward"`         // 被邀请人注册奖励
	RegisterRewardInviter int64 `gorm:"not null;default:0" json:"register_reward_inviter"` // 邀请人注册奖励
	FirstChargeRate       int64 `gorm:"not null;default:0" json:"first_charge_rate"`       // 首充返利百分比 0-100
	Level10Reward         int64 `gorm:"not null;default:0" json:"level10_reward"`
	Level20Reward         int64 `gorm:"not null;default:0" json:"level20_reward"`
	Level30Reward         int64 `gorm:"not null;default:0" json:"level30_reward"`
}

// InviteRewardConfigRecord 奖励配置版本记录
type InviteRewardConfigRecord struct {
	ID            uint               `gorm:"primarykey" json:"id"`
	Version       int64              `gorm:"not null;uniqueIndex" json:"version"`                  // 版本号，严格递增
	Config        InviteRewardConfig `gorm:"embedded;embeddedPrefix:cfg_" json:"config"`           // 奖励参数
	Status        string             `gorm:"type:varchar(20);not null;index" json:"status"`        // active/pending/archived
	ReviewStatus  string             `gorm:"type:varchar(20);not null;index" json:"review_status"` // approved/pending/rejected
	UpdatedAt     time.Time          `gorm:"not null;index" json:"updated_at"`                     // 写入时间
	UpdatedByID   string             `gorm:"type:varchar(64);not null" json:"updated_by_id"`       // 修改人
	UpdatedByName string             `gorm:"type:varchar(128);not null" json:"updated_by_name"`
	ReviewerID    string             `gorm:"type:varchar(64)" json:"reviewer_id,omitempty"` // 审核人
	ReviewerName  string             `gorm:"type:varchar(128)" json:"reviewer_name,omitempty"`
	ReviewedAt    *time.Time         `json:"reviewed_at,omitempty"`
	Comment       string             `gorm:"type:text" json:"comment,omitempty"`
}

// TableName 指定表名
func (InviteRewardConfigRecord) TableName() string {
	return "invite_reward_configs"
}

// InviteRewardConfigHistory 奖励配置审计历史，只追加
type InviteRewardConfigHistory struct {
	ID            uint               `gorm:"primarykey" json:"-"`
	HistoryID     string             `gorm:"type:varchar(36);not null;uniqueIndex" json:"history_id"`
	Version       int64              `gorm:"not null;index" json:"version"`
	Config        InviteRewardConfig `gorm:"embedded;embeddedPrefix:cfg_" json:"config"`
	Status        string             `gorm:"type:varchar(20);not null;index" json:"status"`
	ReviewStatus  string             `gorm:"type:varchar(20);not null;index" json:"review_status"`
	UpdatedAt     time.Time          `gorm:"not null" json:"updated_at"`
	UpdatedByID   string             `gorm:"type:varchar(64);not null" json:"updated_by_id"`
	UpdatedByName string             `gorm:"type:varchar(128);not null" json:"updated_by_name"`
	ReviewerID    string             `gorm:"type:varchar(64)" json:"reviewer_id,omitempty"`
	ReviewerName  string             `gorm:"type:varchar(128)" json:"reviewer_name,omitempty"`
	ReviewedAt    *time.Time         `json:"reviewed_at,omitempty"`
	Comment       string             `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt     time.Time          `gorm:"not null;index;autoCreateTime:false" json:"created_at"` // 等于记录写入时间
}

// TableName 指定表名
func (InviteRewardConfigHistory) TableName() string {
	return "invite_reward_config_histories"
}

// NewInviteRewardConfigHistory 由配置记录生成历史快照
func NewInviteRewardConfigHistory(historyID string, record *InviteRewardConfigRecord) *InviteRewardConfigHistory {
	if record == nil {
		return nil
	}
	return &InviteRewardConfigHistory{
		HistoryID:     historyID,
		Version:       record.Version,
		Config:        record.Config,
		Status:        record.Status,
		ReviewStatus:  record.ReviewStatus,
		UpdatedAt:     record.UpdatedAt,
		UpdatedByID:   record.UpdatedByID,
		UpdatedByName: record.UpdatedByName,
		ReviewerID:    record.ReviewerID,
		ReviewerName:  record.ReviewerName,
		ReviewedAt:    record.ReviewedAt,
		Comment:       record.Comment,
		CreatedAt:     record.UpdatedAt,
	}
}
