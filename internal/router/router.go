package router

import (
	"fmt"
	"strings"

	"github.com/invite-center/internal/cache"
	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"
	adminhandlers "github.com/invite-center/internal/http/handlers/admin"
	publichandlers "github.com/invite-center/internal/http/handlers/public"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "inv"
	}
	acceptRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:invite_accept", redisPrefix),
		WindowSeconds: cfg.Security.AcceptRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.AcceptRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.AcceptRateLimit.BlockSeconds,
		Message:       "邀请码尝试过于频繁",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 玩家接口
		player := apiV1.Group("/invite")
		player.Use(UserJWTAuthMiddleware(c.TokenService))
		{
			player.POST("/accept", RateLimitMiddleware(cache.Client(), acceptRule, KeyByUserAndIP), publicHandler.AcceptInvite)
			player.GET("/info", publicHandler.GetInviteInfo)
		}

		// 游戏服回调
		internal := apiV1.Group("/internal/invite")
		internal.Use(InternalTokenMiddleware(cfg.Internal.Token))
		{
			internal.POST("/first-charge", publicHandler.HandleFirstChargeEvent)
			internal.POST("/level-up", publicHandler.HandleLevelUpEvent)
		}

		// 后台接口
		admin := apiV1.Group("/admin/invite")
		admin.Use(JWTAuthMiddleware(c.TokenService))
		{
			admin.GET("/permissions", adminHandler.GetMyInvitePermissions)

			configRead := RequirePermission(c.AuthzService, constants.PermInviteConfigRead)
			configWrite := RequirePermission(c.AuthzService, constants.PermInviteConfigWrite)
			admin.GET("/reward-config", configRead, adminHandler.GetInviteRewardConfig)
			admin.PUT("/reward-config", configWrite, adminHandler.UpdateInviteRewardConfig)
			admin.GET("/reward-config/history", configRead, adminHandler.ListInviteRewardConfigHistory)
			admin.GET("/reward-config/versions/:version", configRead, adminHandler.GetInviteRewardConfigVersion)

			boardRead := RequirePermission(c.AuthzService, constants.PermInviteLeaderboardRead)
			boardExport := RequirePermission(c.AuthzService, constants.PermInviteLeaderboardExport)
			admin.GET("/leaderboard", boardRead, adminHandler.GetInviteLeaderboard)
			admin.GET("/leaderboard/export", boardExport, adminHandler.ExportInviteLeaderboard)
			admin.GET("/users/:user_id/tree", boardRead, adminHandler.GetInviteTree)
			admin.GET("/users/:user_id/chain-depth", boardRead, adminHandler.GetInviteChainDepth)
			admin.GET("/users/:user_id/gold-transactions", boardRead, adminHandler.ListUserGoldTransactions)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
