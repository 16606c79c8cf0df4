package authz

import (
	"fmt"

	"github.com/invite-center/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 邀请后台预置角色
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "invite_viewer",
			Policies: []Policy{
				{Object: "invite.*", Action: "READ"},
			},
		},
		{
			Role:     "invite_operator",
			Inherits: []string{"invite_viewer"},
			Policies: []Policy{
				{Object: "invite.config", Action: "WRITE"},
				{Object: "invite.leaderboard", Action: "EXPORT"},
			},
		},
		{
			Role: "invite_admin",
			Policies: []Policy{
				{Object: "invite.*", Action: "*"},
			},
		},
	}
}

// BuiltinPermissions 后台接口使用的全部权限点
func BuiltinPermissions() []string {
	return []string{
		constants.PermInviteConfigRead,
		constants.PermInviteConfigWrite,
		constants.PermInviteLeaderboardRead,
		constants.PermInviteLeaderboardExport,
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
