package service

import (
	"math"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/models"
)

const (
	inviteFirstChargeRateMin = 0
	inviteFirstChargeRateMax = 100
	inviteRewardMax          = 1_000_000_000_000
)

// InviteRewardConfigParams 后台提交的奖励参数，写入前统一归一化
type InviteRewardConfigParams struct {
	RegisterReward        float64 `json:"register_reward"`
	RegisterRewardInviter float64 `json:"register_reward_inviter"`
	FirstChargeRate       float64 `json:"first_charge_rate"`
	Level10Reward         float64 `json:"level10_reward"`
	Level20Reward         float64 `json:"level20_reward"`
	Level30Reward         float64 `json:"level30_reward"`
}

// DefaultInviteRewardConfig 内置默认奖励配置
func DefaultInviteRewardConfig(defaults config.InviteRewardDefault) models.InviteRewardConfig {
	return NormalizeInviteRewardConfig(InviteRewardConfigParams{
		RegisterReward:        float64(defaults.RegisterReward),
		RegisterRewardInviter: float64(defaults.RegisterRewardInviter),
		FirstChargeRate:       float64(defaults.FirstChargeRate),
		Level10Reward:         float64(defaults.Level10Reward),
		Level20Reward:         float64(defaults.Level20Reward),
		Level30Reward:         float64(defaults.Level30Reward),
	})
}

// NormalizeInviteRewardConfig 向下取整并裁剪为非负整数，首充比例限制在 0-100
func NormalizeInviteRewardConfig(params InviteRewardConfigParams) models.InviteRewardConfig {
	rate := normalizeInviteRewardValue(params.FirstChargeRate)
	if rate < inviteFirstChargeRateMin {
		rate = inviteFirstChargeRateMin
	}
	if rate > inviteFirstChargeRateMax {
		rate = inviteFirstChargeRateMax
	}
	return models.InviteRewardConfig{
		RegisterReward:        normalizeInviteRewardValue(params.RegisterReward),
		RegisterRewardInviter: normalizeInviteRewardValue(params.RegisterRewardInviter),
		FirstChargeRate:       rate,
		Level10Reward:         normalizeInviteRewardValue(params.Level10Reward),
		Level20Reward:         normalizeInviteRewardValue(params.Level20Reward),
		Level30Reward:         normalizeInviteRewardValue(params.Level30Reward),
	}
}

func normalizeInviteRewardValue(value float64) int64 {
	if math.IsNaN(value) || math.IsInf(value, -1) {
		return 0
	}
	if math.IsInf(value, 1) || value > inviteRewardMax {
		return inviteRewardMax
	}
	floored := math.Floor(value)
	if floored < 0 {
		return 0
	}
	return int64(floored)
}
