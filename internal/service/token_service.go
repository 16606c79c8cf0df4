package service

import (
	"errors"
	"strings"
	"time"

	"github.com/invite-center/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid token 无法解析或已过期
var ErrTokenInvalid = errors.New("无效的 token")

// JWTClaims 管理员 JWT 声明，由后台账号系统签发
type JWTClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	IsSuper  bool   `json:"is_super"`
	jwt.RegisteredClaims
}

// UserJWTClaims 玩家 JWT 声明，由游戏账号服务签发
type UserJWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService 管理员与玩家 token 的签发和校验
type TokenService struct {
	adminCfg config.JWTConfig
	userCfg  config.JWTConfig
}

// NewTokenService 创建 token 服务
func NewTokenService(adminCfg, userCfg config.JWTConfig) *TokenService {
	return &TokenService{adminCfg: adminCfg, userCfg: userCfg}
}

// GenerateAdminJWT 签发管理员 token
func (s *TokenService) GenerateAdminJWT(adminID uint, username string, isSuper bool) (string, time.Time, error) {
	if adminID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.adminCfg.ExpireHours) * time.Hour)
	claims := JWTClaims{
		AdminID:          adminID,
		Username:         username,
		IsSuper:          isSuper,
		RegisteredClaims: registeredClaims(now, expiresAt),
	}
	return signJWT(claims, s.adminCfg.SecretKey, expiresAt)
}

// ParseAdminJWT 解析管理员 token
func (s *TokenService) ParseAdminJWT(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if err := parseJWT(tokenString, s.adminCfg.SecretKey, claims); err != nil {
		return nil, err
	}
	if claims.AdminID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// GenerateUserJWT 签发玩家 token
func (s *TokenService) GenerateUserJWT(userID string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.userCfg.ExpireHours) * time.Hour)
	claims := UserJWTClaims{
		UserID:           userID,
		RegisteredClaims: registeredClaims(now, expiresAt),
	}
	return signJWT(claims, s.userCfg.SecretKey, expiresAt)
}

// ParseUserJWT 解析玩家 token
func (s *TokenService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	claims := &UserJWTClaims{}
	if err := parseJWT(tokenString, s.userCfg.SecretKey, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func registeredClaims(now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func signJWT(claims jwt.Claims, secret string, expiresAt time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func parseJWT(tokenString, secret string, claims jwt.Claims) error {
	if secret == "" {
		return errors.New("jwt secret is empty")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
