package service

import (
	"errors"
	"testing"

	"github.com/invite-center/internal/config"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(
		config.JWTConfig{SecretKey: "admin-secret", ExpireHours: 1},
		config.JWTConfig{SecretKey: "user-secret", ExpireHours: 1},
	)

	adminToken, _, err := svc.GenerateAdminJWT(7, "ops", true)
	if err != nil {
		t.Fatalf("generate admin token failed: %v", err)
	}
	claims, err := svc.ParseAdminJWT(adminToken)
	if err != nil {
		t.Fatalf("parse admin token failed: %v", err)
	}
	if claims.AdminID != 7 || claims.Username != "ops" || !claims.IsSuper {
		t.Fatalf("unexpected admin claims: %+v", claims)
	}

	userToken, _, err := svc.GenerateUserJWT(" player-1 ")
	if err != nil {
		t.Fatalf("generate user token failed: %v", err)
	}
	userClaims, err := svc.ParseUserJWT(userToken)
	if err != nil {
		t.Fatalf("parse user token failed: %v", err)
	}
	if userClaims.UserID != "player-1" {
		t.Fatalf("unexpected user id: %q", userClaims.UserID)
	}

	if _, err := svc.ParseAdminJWT(userToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("user token must not pass admin check, got %v", err)
	}
	if _, err := svc.ParseUserJWT("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
