package queue

import (
	"encoding/json"

	"github.com/invite-center/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskInviteFirstCharge 首充返利任务
	TaskInviteFirstCharge = constants.TaskInviteFirstCharge
	// TaskInviteLevelUp 等级奖励任务
	TaskInviteLevelUp = constants.TaskInviteLevelUp
	// TaskInviteReconcileRegistration 注册奖励补发任务
	TaskInviteReconcileRegistration = constants.TaskInviteReconcileRegistration
)

// InviteFirstChargePayload 首充事件载荷，金额保留原始字符串避免精度损失
type InviteFirstChargePayload struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

// InviteLevelUpPayload 升级事件载荷
type InviteLevelUpPayload struct {
	UserID string `json:"user_id"`
	Level  int    `json:"level"`
}

// InviteReconcilePayload 补发任务载荷
type InviteReconcilePayload struct {
	Limit int `json:"limit"`
}

// NewInviteFirstChargeTask 创建首充返利任务
func NewInviteFirstChargeTask(payload InviteFirstChargePayload) (*asynq.Task, error) {
	return newJSONTask(TaskInviteFirstCharge, payload)
}

// NewInviteLevelUpTask 创建等级奖励任务
func NewInviteLevelUpTask(payload InviteLevelUpPayload) (*asynq.Task, error) {
	return newJSONTask(TaskInviteLevelUp, payload)
}

// NewInviteReconcileTask 创建注册奖励补发任务
func NewInviteReconcileTask(payload InviteReconcilePayload) (*asynq.Task, error) {
	return newJSONTask(TaskInviteReconcileRegistration, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
