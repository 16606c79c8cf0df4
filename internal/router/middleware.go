package router

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/invite-center/internal/authz"
	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/http/response"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey           = "request_id"
	requestIDHeader        = "X-Request-ID"
	internalTokenHeader    = "X-Internal-Token"
	adminIsSuperContextKey = "admin_is_super"
)

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			internalTokenHeader,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// JWTAuthMiddleware 管理员 JWT 鉴权中间件
func JWTAuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}
		if tokens == nil {
			response.Unauthorized(c, "token 无效")
			c.Abort()
			return
		}
		claims, err := tokens.ParseAdminJWT(tokenString)
		if err != nil {
			response.Unauthorized(c, "token 无效")
			c.Abort()
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("admin_name", claims.Username)
		c.Set(adminIsSuperContextKey, claims.IsSuper)
		c.Next()
	}
}

// RequirePermission 管理端权限点校验，超级管理员直接放行
func RequirePermission(authzService *authz.Service, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("admin_rbac_service_unavailable", "permission", permission)
			response.Unauthorized(c, "未授权")
			c.Abort()
			return
		}

		if isSuper, ok := c.Get(adminIsSuperContextKey); ok {
			if superValue, typeOK := isSuper.(bool); typeOK && superValue {
				c.Next()
				return
			}
		}

		var adminID uint
		if value, exists := c.Get("admin_id"); exists {
			adminID, _ = value.(uint)
		}
		if adminID == 0 {
			response.Unauthorized(c, "未授权")
			c.Abort()
			return
		}

		allowed, err := authzService.EnforceAdmin(adminID, permission)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"admin_id", adminID,
				"permission", permission,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Unauthorized(c, "未授权")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"admin_id", adminID,
				"permission", permission,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			response.Forbidden(c, service.ErrNotAuthorized.Error())
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserJWTAuthMiddleware 玩家 JWT 鉴权中间件
func UserJWTAuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}
		if tokens == nil {
			response.Unauthorized(c, "token 无效")
			c.Abort()
			return
		}
		claims, err := tokens.ParseUserJWT(tokenString)
		if err != nil {
			response.Unauthorized(c, "token 无效")
			c.Abort()
			return
		}

		c.Set("user_id", strings.TrimSpace(claims.UserID))
		c.Next()
	}
}

// InternalTokenMiddleware 游戏服回调共享密钥校验，未配置密钥时拒绝所有请求
func InternalTokenMiddleware(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			logger.Warnw("internal_token_not_configured", "path", c.Request.URL.Path)
			response.Unauthorized(c, "内部接口未启用")
			c.Abort()
			return
		}
		provided := []byte(strings.TrimSpace(c.GetHeader(internalTokenHeader)))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			response.Unauthorized(c, "内部调用凭证无效")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Unauthorized(c, "缺少 Authorization 头")
		c.Abort()
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
		response.Unauthorized(c, "Authorization 格式错误")
		c.Abort()
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
