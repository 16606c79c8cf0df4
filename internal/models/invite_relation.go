package models

import "time"

// InviteRelation 邀请关系，每个被邀请人至多一条
type InviteRelation struct {
	ID                      uint      `gorm:"primarykey" json:"id"`                                          // 主键
	InviterID               string    `gorm:"type:varchar(64);not null;index" json:"inviter_id"`             // 邀请人
	InviteeID               string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"invitee_id"`       // 被邀请人
	InviteCodeUsed          string    `gorm:"type:varchar(32);not null" json:"invite_code_used"`             // 使用的邀请码
	InvitedAt               time.Time `gorm:"not null;index" json:"invited_at"`                              // 接受邀请时间
	RegistrationRewardGiven bool      `gorm:"not null;default:false;index" json:"registration_reward_given"` // 注册奖励已发放
	FirstChargeRewardGiven  bool      `gorm:"not null;default:false" json:"first_charge_reward_given"`       // 首充奖励已发放
	Level10RewardGiven      bool      `gorm:"not null;default:false" json:"level10_reward_given"`            // 10 级奖励已发放
	Level20RewardGiven      bool      `gorm:"not null;default:false" json:"level20_reward_given"`            // 20 级奖励已发放（仅单次模式）
	Level30RewardGiven      bool      `gorm:"not null;default:false" json:"level30_reward_given"`            // 30 级奖励已发放（仅单次模式）
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName 指定表名
func (InviteRelation) TableName() string {
	return "invite_relations"
}
