package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/invite-center/internal/http/handlers/shared"
	"github.com/invite-center/internal/http/response"

	"github.com/gin-gonic/gin"
)

// adminOperator 当前操作的管理员
type adminOperator struct {
	ID   string
	Name string
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func getAdminOperator(c *gin.Context) (adminOperator, bool) {
	value, exists := c.Get("admin_id")
	if !exists {
		response.Unauthorized(c, "未登录")
		return adminOperator{}, false
	}
	var id uint
	switch v := value.(type) {
	case uint:
		id = v
	case int:
		if v > 0 {
			id = uint(v)
		}
	}
	if id == 0 {
		respondError(c, response.CodeUnauthorized, "管理员标识无效", nil)
		return adminOperator{}, false
	}
	operator := adminOperator{ID: strconv.FormatUint(uint64(id), 10)}
	operator.Name = strings.TrimSpace(c.GetString("admin_name"))
	if operator.Name == "" {
		operator.Name = "admin:" + operator.ID
	}
	return operator, true
}
