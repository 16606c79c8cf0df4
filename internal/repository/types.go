package repository

import "time"

// InviteStatsListFilter 邀请排行榜查询条件
type InviteStatsListFilter struct {
	Page     int
	PageSize int
	Search   string // user_id / invite_code 模糊匹配，不区分大小写
	SortBy   string // invites / rewards
}

// InviteStatsAggregate 邀请统计汇总
type InviteStatsAggregate struct {
	TotalInvites int64
	TotalRewards int64
	InviterCount int64
	StatsCount   int64
}

// InviteStatsDelta 邀请统计增量
type InviteStatsDelta struct {
	TotalInvites int64
	ValidInvites int64
	TotalRewards int64
}

// IsZero 是否无任何增量
func (d InviteStatsDelta) IsZero() bool {
	return d.TotalInvites == 0 && d.ValidInvites == 0 && d.TotalRewards == 0
}

// InviteConfigHistoryFilter 奖励配置历史查询条件
type InviteConfigHistoryFilter struct {
	Page         int
	PageSize     int
	Status       string
	ReviewStatus string
}

// PendingRegistrationFilter 待补发注册奖励的关系查询条件
type PendingRegistrationFilter struct {
	InvitedBefore time.Time
	Limit         int
}

// GoldTransactionListFilter 金币流水查询条件
type GoldTransactionListFilter struct {
	Page     int
	PageSize int
	UserID   string
	Type     string
}
