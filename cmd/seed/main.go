package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/provider"
)

func main() {
	var (
		adminID    uint
		adminName  string
		adminRoles string
		superAdmin bool
		userID     string
	)
	flag.UintVar(&adminID, "admin-id", 1, "绑定角色的管理员 ID")
	flag.StringVar(&adminName, "admin-name", "admin", "管理员名称")
	flag.StringVar(&adminRoles, "roles", "invite_admin", "逗号分隔的角色列表")
	flag.BoolVar(&superAdmin, "super", false, "签发超级管理员令牌")
	flag.StringVar(&userID, "user-id", "", "为指定玩家签发调试令牌")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	container, err := provider.Build(cfg, models.DB, nil)
	if err != nil {
		stdLog.Fatalf("Failed to build container: %v", err)
	}

	// 初始化奖励配置版本 1
	record, err := container.InviteConfigSvc.GetActiveConfig(context.Background())
	if err != nil {
		stdLog.Fatalf("Failed to ensure invite config: %v", err)
	}
	stdLog.Printf("Active invite config version: %d", record.Version)

	roles := splitRoles(adminRoles)
	if err := container.AuthzService.SetAdminRoles(adminID, roles); err != nil {
		stdLog.Fatalf("Failed to bind admin roles: %v", err)
	}
	stdLog.Printf("Admin %d bound roles: %s", adminID, strings.Join(roles, ","))

	adminToken, expiresAt, err := container.TokenService.GenerateAdminJWT(adminID, adminName, superAdmin)
	if err != nil {
		stdLog.Fatalf("Failed to sign admin token: %v", err)
	}
	fmt.Printf("admin_token=%s\nadmin_token_expires_at=%s\n", adminToken, expiresAt.Format("2006-01-02 15:04:05"))

	if userID = strings.TrimSpace(userID); userID != "" {
		stats, err := container.InviteService.IssueOrFetchInviteCode(context.Background(), userID)
		if err != nil {
			stdLog.Fatalf("Failed to issue invite code: %v", err)
		}
		userToken, _, err := container.TokenService.GenerateUserJWT(userID)
		if err != nil {
			stdLog.Fatalf("Failed to sign user token: %v", err)
		}
		fmt.Printf("user_token=%s\ninvite_code=%s\ninvite_link=%s\n", userToken, stats.InviteCode, container.InviteService.BuildInviteLink(stats.InviteCode))
	}
}

func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
