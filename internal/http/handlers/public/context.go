package public

import (
	"strings"

	handlershared "github.com/invite-center/internal/http/handlers/shared"
	"github.com/invite-center/internal/http/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func getUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "未登录")
		return "", false
	}
	userID, ok := value.(string)
	if !ok || strings.TrimSpace(userID) == "" {
		respondError(c, response.CodeUnauthorized, "用户标识无效", nil)
		return "", false
	}
	return strings.TrimSpace(userID), true
}
