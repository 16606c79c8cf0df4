package constants

// 奖励配置生命周期状态
const (
	InviteConfigStatusActive   = "active"
	InviteConfigStatusPending  = "pending"
	InviteConfigStatusArchived = "archived"
)

// 奖励配置审核状态
const (
	InviteReviewStatusApproved = "approved"
	InviteReviewStatusPending  = "pending"
	InviteReviewStatusRejected = "rejected"
)

// 排行榜排序字段
const (
	InviteSortByInvites = "invites"
	InviteSortByRewards = "rewards"
)

// 金币流水类型
const (
	GoldTxnTypeInviteRegister    = "invite_register"
	GoldTxnTypeInviteRegisterBy  = "invite_register_inviter"
	GoldTxnTypeInviteFirstCharge = "invite_first_charge"
	GoldTxnTypeInviteLevel       = "invite_level"
)

// 系统操作人
const (
	SystemOperatorID   = "system"
	SystemOperatorName = "system"
)

// 后台权限点
const (
	PermInviteConfigRead        = "invite.config.read"
	PermInviteConfigWrite       = "invite.config.write"
	PermInviteLeaderboardRead   = "invite.leaderboard.read"
	PermInviteLeaderboardExport = "invite.leaderboard.export"
)

// 异步队列与任务类型
const (
	QueueDefault                    = "default"
	QueueCritical                   = "critical"
	TaskInviteFirstCharge           = "invite:first_charge"
	TaskInviteLevelUp               = "invite:level_up"
	TaskInviteReconcileRegistration = "invite:reconcile_registration"
)
