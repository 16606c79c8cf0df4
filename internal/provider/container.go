package provider

import (
	"errors"
	"time"

	"github.com/invite-center/internal/authz"
	"github.com/invite-center/internal/cache"
	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/queue"
	"github.com/invite-center/internal/repository"
	"github.com/invite-center/internal/service"

	"gorm.io/gorm"
)

// redisLockTTL 为单次租约，锁持有期间由 RedisKeyLocker 按 ttl/3 自动续期
const (
	redisLockTTL     = 15 * time.Second
	redisLockMaxWait = 5 * time.Second
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	KeyLocker   service.KeyLocker

	// Repositories
	InviteRepo       repository.InviteRepository
	InviteConfigRepo repository.InviteConfigRepository
	GoldRepo         repository.GoldRepository

	// Services
	AuthzService       *authz.Service
	TokenService       *service.TokenService
	GoldLedger         *service.GoldLedgerService
	Ledger             service.Ledger
	InviteConfigSvc    *service.InviteConfigService
	InviteService      *service.InviteService
	LeaderboardService *service.InviteLeaderboardService
}

// NewContainer 初始化容器，依赖全局数据库连接
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c, err := Build(cfg, models.DB, queueClient)
	if err != nil {
		logger.Errorw("provider_build_container_failed", "error", err)
		panic(err)
	}
	return c
}

// Build 基于给定连接组装容器，测试与工具命令直接调用
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if db == nil {
		return nil, errors.New("db is nil")
	}
	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories() {
	c.InviteRepo = repository.NewInviteRepository(c.DB)
	c.InviteConfigRepo = repository.NewInviteConfigRepository(c.DB)
	c.GoldRepo = repository.NewGoldRepository(c.DB)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		return err
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		return err
	}
	c.AuthzService = authzService
	c.TokenService = service.NewTokenService(c.Config.JWT, c.Config.UserJWT)

	if cache.Enabled() {
		c.KeyLocker = cache.NewRedisKeyLocker(cache.Client(), redisLockTTL, redisLockMaxWait)
		logger.Infow("provider_key_locker_selected", "type", "redis")
	} else {
		c.KeyLocker = service.NewLocalKeyLocker()
		logger.Infow("provider_key_locker_selected", "type", "local")
	}

	inviteCfg := c.Config.Invite
	c.GoldLedger = service.NewGoldLedgerService(c.GoldRepo)
	c.Ledger = c.GoldLedger
	c.InviteConfigSvc = service.NewInviteConfigService(c.InviteConfigRepo, c.KeyLocker, inviteCfg)
	c.InviteService = service.NewInviteService(c.InviteRepo, c.InviteConfigSvc, c.Ledger, c.KeyLocker, service.InviteServiceOptionsFromConfig(inviteCfg))
	c.LeaderboardService = service.NewInviteLeaderboardService(c.InviteRepo, c.InviteConfigSvc, inviteCfg)
	return nil
}

// Close 释放队列与缓存连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
