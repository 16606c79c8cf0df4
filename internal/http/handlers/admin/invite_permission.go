package admin

import (
	"github.com/invite-center/internal/authz"
	"github.com/invite-center/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetMyInvitePermissions 当前管理员在邀请后台拥有的权限点
func (h *Handler) GetMyInvitePermissions(c *gin.Context) {
	operator, ok := getAdminOperator(c)
	if !ok {
		return
	}
	adminID := c.GetUint("admin_id")
	isSuper := c.GetBool("admin_is_super")

	granted := make([]string, 0, len(authz.BuiltinPermissions()))
	for _, permission := range authz.BuiltinPermissions() {
		if isSuper {
			granted = append(granted, permission)
			continue
		}
		allowed, err := h.AuthzService.EnforceAdmin(adminID, permission)
		if err != nil {
			respondError(c, response.CodeInternal, "权限查询失败", err)
			return
		}
		if allowed {
			granted = append(granted, permission)
		}
	}

	roles := []string{}
	if !isSuper {
		assigned, err := h.AuthzService.GetAdminRoles(adminID)
		if err != nil {
			respondError(c, response.CodeInternal, "权限查询失败", err)
			return
		}
		roles = assigned
	}
	response.Success(c, gin.H{
		"admin_id":    operator.ID,
		"admin_name":  operator.Name,
		"is_super":    isSuper,
		"roles":       roles,
		"permissions": granted,
	})
}
