package config

import (
	"fmt"
	"strings"

	"github.com/invite-center/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	UserJWT  JWTConfig      `mapstructure:"user_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Internal InternalConfig `mapstructure:"internal"`
	Invite   InviteConfig   `mapstructure:"invite"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AcceptRateLimit RateLimitConfig `mapstructure:"accept_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// InternalConfig 游戏服内部回调配置
type InternalConfig struct {
	Token string `mapstructure:"token"`
}

// InviteConfig 邀请系统配置
type InviteConfig struct {
	CodePrefix               string              `mapstructure:"code_prefix"`
	CodeLength               int                 `mapstructure:"code_length"`
	LinkBaseURL              string              `mapstructure:"link_base_url"`
	ConfigCacheTTLSeconds    int                 `mapstructure:"config_cache_ttl_seconds"`
	MaxChainDepth            int                 `mapstructure:"max_chain_depth"`
	MaxTreeDepth             int                 `mapstructure:"max_tree_depth"`
	MilestoneOnce            bool                `mapstructure:"milestone_once"` // 20/30 级奖励是否只发一次
	ExportDefaultLimit       int                 `mapstructure:"export_default_limit"`
	ExportMaxLimit           int                 `mapstructure:"export_max_limit"`
	ReconcileIntervalSeconds int                 `mapstructure:"reconcile_interval_seconds"`
	ReconcileGraceSeconds    int                 `mapstructure:"reconcile_grace_seconds"`
	ReconcileBatchSize       int                 `mapstructure:"reconcile_batch_size"`
	SummaryCacheTTLSeconds   int                 `mapstructure:"summary_cache_ttl_seconds"`
	DefaultRewards           InviteRewardDefault `mapstructure:"default_rewards"`
}

// InviteRewardDefault 首次初始化奖励配置时使用的默认值
type InviteRewardDefault struct {
	RegisterReward        int64 `mapstructure:"register_reward"`
	RegisterRewardInviter int64 `mapstructure:"register_reward_inviter"`
	FirstChargeRate       int64 `mapstructure:"first_charge_rate"`
	Level10Reward         int64 `mapstructure:"level10_reward"`
	Level20Reward         int64 `mapstructure:"level20_reward"`
	Level30Reward         int64 `mapstructure:"level30_reward"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")   // 从 cmd/server 运行时
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

// Default 返回仅包含默认值的配置，测试与工具命令使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("默认配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "invite.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/invite.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("user_jwt.secret", "user-change-me-in-production")
	v.SetDefault("user_jwt.expire_hours", 168)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "inv")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Internal-Token",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.accept_rate_limit.window_seconds", 60)
	v.SetDefault("security.accept_rate_limit.max_requests", 10)
	v.SetDefault("security.accept_rate_limit.block_seconds", 300)
	v.SetDefault("internal.token", "")
	v.SetDefault("invite.code_prefix", "INV")
	v.SetDefault("invite.code_length", 8)
	v.SetDefault("invite.link_base_url", "https://game.example.com/invite")
	v.SetDefault("invite.config_cache_ttl_seconds", 60)
	v.SetDefault("invite.max_chain_depth", 10)
	v.SetDefault("invite.max_tree_depth", 10)
	v.SetDefault("invite.milestone_once", false)
	v.SetDefault("invite.export_default_limit", 1000)
	v.SetDefault("invite.export_max_limit", 10000)
	v.SetDefault("invite.reconcile_interval_seconds", 300)
	v.SetDefault("invite.reconcile_grace_seconds", 60)
	v.SetDefault("invite.reconcile_batch_size", 100)
	v.SetDefault("invite.summary_cache_ttl_seconds", 30)
	v.SetDefault("invite.default_rewards.register_reward", 100)
	v.SetDefault("invite.default_rewards.register_reward_inviter", 200)
	v.SetDefault("invite.default_rewards.first_charge_rate", 10)
	v.SetDefault("invite.default_rewards.level10_reward", 500)
	v.SetDefault("invite.default_rewards.level20_reward", 1000)
	v.SetDefault("invite.default_rewards.level30_reward", 2000)
}
