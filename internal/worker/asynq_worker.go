package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/provider"
	"github.com/invite-center/internal/queue"
	"github.com/invite-center/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskInviteFirstCharge, c.handleInviteFirstCharge)
	mux.HandleFunc(queue.TaskInviteLevelUp, c.handleInviteLevelUp)
	mux.HandleFunc(queue.TaskInviteReconcileRegistration, c.handleInviteReconcile)
}

func (c *Consumer) handleInviteFirstCharge(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil || c.InviteService == nil {
		logger.Debugw("worker_invite_first_charge_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InviteFirstChargePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_invite_first_charge_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
	if err != nil {
		logger.Warnw("worker_invite_first_charge_amount_invalid", "user_id", payload.UserID, "amount", payload.Amount, "error", err)
		return nil
	}
	err = c.InviteService.HandleFirstCharge(ctx, payload.UserID, amount)
	return settleTaskError("worker_invite_first_charge_failed", err, "user_id", payload.UserID, "amount", payload.Amount)
}

func (c *Consumer) handleInviteLevelUp(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil || c.InviteService == nil {
		logger.Debugw("worker_invite_level_up_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InviteLevelUpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_invite_level_up_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	if payload.Level <= 0 {
		logger.Debugw("worker_invite_level_up_skip_invalid_payload", "user_id", payload.UserID, "level", payload.Level)
		return nil
	}
	err := c.InviteService.HandleLevelUpReward(ctx, payload.UserID, payload.Level)
	return settleTaskError("worker_invite_level_up_failed", err, "user_id", payload.UserID, "level", payload.Level)
}

func (c *Consumer) handleInviteReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil || c.InviteService == nil {
		logger.Debugw("worker_invite_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InviteReconcilePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_invite_reconcile_unmarshal_failed", "error", err)
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
	}
	count, err := c.InviteService.ReconcileRegistrationRewards(ctx, payload.Limit)
	if err != nil {
		logger.Warnw("worker_invite_reconcile_failed", "limit", payload.Limit, "error", err)
		return err
	}
	logger.Debugw("worker_invite_reconcile_done", "limit", payload.Limit, "reconciled", count)
	return nil
}

// settleTaskError 调用方错误记录后丢弃，基础设施错误交给 asynq 重试
func settleTaskError(event string, err error, kv ...interface{}) error {
	if err == nil {
		return nil
	}
	fields := append(kv, "error", err)
	if service.IsInviteCallerError(err) {
		logger.Warnw(event, append(fields, "retry", false)...)
		return nil
	}
	logger.Errorw(event, append(fields, "retry", true)...)
	return err
}
