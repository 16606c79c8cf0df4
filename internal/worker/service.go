package worker

import (
	"context"
	"errors"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultReconcileInterval = 5 * time.Minute
	defaultReconcileBatch    = 100
)

// Service 异步任务服务，队列关闭时只运行补发循环
type Service struct {
	name         string
	server       *asynq.Server
	mux          *asynq.ServeMux
	consumer     *Consumer
	interval     time.Duration
	batchSize    int
	uniqueWindow time.Duration
}

// NewService 创建异步任务服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	s := &Service{
		name:      "worker",
		consumer:  consumer,
		interval:  defaultReconcileInterval,
		batchSize: defaultReconcileBatch,
	}
	if cfg.Invite.ReconcileIntervalSeconds > 0 {
		s.interval = time.Duration(cfg.Invite.ReconcileIntervalSeconds) * time.Second
	}
	if cfg.Invite.ReconcileBatchSize > 0 {
		s.batchSize = cfg.Invite.ReconcileBatchSize
	}
	s.uniqueWindow = s.interval

	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	} else {
		logger.Infow("worker_queue_disabled", "reconcile_interval", s.interval.String())
	}
	return s, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.server == nil {
		s.runReconcileLoop(ctx)
		return nil
	}
	go s.runReconcileLoop(ctx)
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runReconcileLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.InviteService == nil {
		return
	}
	s.reconcileOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileOnce(ctx)
		}
	}
}

// reconcileOnce 队列可用时投递去重任务，多实例只执行一次；否则本地直接补发
func (s *Service) reconcileOnce(ctx context.Context) {
	payload := queue.InviteReconcilePayload{Limit: s.batchSize}
	if qc := s.consumer.QueueClient; qc.Enabled() {
		err := qc.EnqueueInviteReconcile(payload, s.uniqueWindow)
		switch {
		case err == nil:
			return
		case errors.Is(err, asynq.ErrDuplicateTask):
			logger.Debugw("worker_invite_reconcile_duplicate")
			return
		default:
			logger.Warnw("worker_invite_reconcile_enqueue_failed", "error", err)
		}
	}
	count, err := s.consumer.InviteService.ReconcileRegistrationRewards(ctx, s.batchSize)
	if err != nil {
		logger.Warnw("worker_invite_reconcile_failed", "error", err)
		return
	}
	if count > 0 {
		logger.Infow("worker_invite_reconciled", "count", count)
	}
}

