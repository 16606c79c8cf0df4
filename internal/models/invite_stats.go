package models

import "time"

// InviteStats 邀请人统计，首次生成邀请码时创建
type InviteStats struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                     // 主键
	UserID       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"user_id"`     // 用户
	InviteCode   string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"invite_code"` // 邀请码
	InviteLink   string    `gorm:"type:varchar(512);not null" json:"invite_link"`            // 邀请链接
	TotalInvites int64     `gorm:"not null;default:0;index" json:"total_invites"`            // 邀请总数
	ValidInvites int64     `gorm:"not null;default:0" json:"valid_invites"`                  // 有效邀请数
	TotalRewards int64     `gorm:"not null;default:0;index" json:"total_rewards"`            // 邀请人累计奖励
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (InviteStats) TableName() string {
	return "invite_stats"
}
