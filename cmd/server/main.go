package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/invite-center/internal/app"
	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiCyan  = "\033[36m"
)

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	printStartupBanner(mode)

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	checkSecrets(cfg, stdLog.Fatalf, stdLog.Printf)

	// 初始化数据库
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

// checkSecrets release 模式下弱密钥直接退出，其余模式仅提示
func checkSecrets(cfg *config.Config, fatalf, warnf func(format string, v ...interface{})) {
	secrets := map[string]string{
		"jwt.secret":      cfg.JWT.SecretKey,
		"user_jwt.secret": cfg.UserJWT.SecretKey,
	}
	for name, secret := range secrets {
		if !isWeakSecret(secret) {
			continue
		}
		if cfg.Server.Mode == "release" {
			fatalf("%s 过弱或仍为默认值，请在生产环境中配置强随机密钥", name)
		}
		warnf("警告: %s 过弱或仍为默认值，建议在生产环境中更换", name)
	}
	if strings.TrimSpace(cfg.Internal.Token) == "" {
		warnf("警告: 未配置 internal.token，游戏服事件回调接口将拒绝所有请求")
	}
}

func printStartupBanner(mode string) {
	fmt.Println(ansiCyan + "==============================================" + ansiReset)
	fmt.Println(ansiCyan + ansiBold + "  Invite Center 启动中" + ansiReset)
	fmt.Println(ansiDim + "  mode: " + mode + ansiReset)
	fmt.Println(ansiCyan + "==============================================" + ansiReset)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	return strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key")
}
