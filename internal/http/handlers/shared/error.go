package shared

import (
	"errors"

	"github.com/invite-center/internal/http/response"
	"github.com/invite-center/internal/logger"
	"github.com/invite-center/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "服务繁忙，请稍后重试"

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 调用方错误原样返回 {success:false, error}，
// 基础设施错误只返回通用提示，细节写入日志。
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, service.ErrNotAuthorized):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInviteConfigNotFound):
		response.Error(c, response.CodeNotFound, err.Error())
	case service.IsInviteCallerError(err):
		response.ErrorWithData(c, response.CodeBadRequest, err.Error(), gin.H{
			"success": false,
			"error":   err.Error(),
		})
	default:
		RespondError(c, response.CodeInternal, internalErrorMessage, err)
	}
}
