package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 奖励事件队列
	CriticalQueue = constants.QueueCritical

	inviteEventMaxRetry = 10
	inviteEventTimeout  = 30 * time.Second
)

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
	eventQueue   string
}

// NewClient 创建队列客户端，未启用时返回空实现
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue, eventQueue: CriticalQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	eventQueue := CriticalQueue
	if _, ok := cfg.Queues[CriticalQueue]; !ok && len(cfg.Queues) > 0 {
		eventQueue = DefaultQueue
	}
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
		eventQueue:   eventQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueInviteFirstCharge 推送首充返利任务
func (c *Client) EnqueueInviteFirstCharge(payload InviteFirstChargePayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInviteFirstChargeTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, c.eventOptions()...)
	return err
}

// EnqueueInviteLevelUp 推送等级奖励任务
func (c *Client) EnqueueInviteLevelUp(payload InviteLevelUpPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInviteLevelUpTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, c.eventOptions()...)
	return err
}

// EnqueueInviteReconcile 推送注册奖励补发任务，同一时间窗口内去重
func (c *Client) EnqueueInviteReconcile(payload InviteReconcilePayload, window time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewInviteReconcileTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{asynq.Queue(c.defaultQueue), asynq.MaxRetry(0)}
	if window > 0 {
		options = append(options, asynq.Unique(window))
	}
	_, err = c.client.Enqueue(task, options...)
	return err
}

func (c *Client) eventOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(c.eventQueue),
		asynq.MaxRetry(inviteEventMaxRetry),
		asynq.Timeout(inviteEventTimeout),
	}
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{CriticalQueue: 2, DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
