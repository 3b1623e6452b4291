package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	jwtpkg "mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/service"
)

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgAuthRequired     = "需要登录认证"
	MsgTokenInvalid     = "无效的访问令牌"
	MsgTokenExpired     = "登录已过期，请重新登录"
	MsgInconsistent     = "转发配置同步失败，已通知管理员处理"
	MsgProviderDown     = "邮件路由服务暂时不可用，请稍后重试"
	MsgInternalError    = "服务器内部错误，请稍后重试"
	MsgTokenIssueFailed = "生成令牌失败"
	MsgResetEmailSent   = "如果该邮箱已注册，重置链接已发送"
)

// 账户相关的校验错误
var accountValidationErrors = []error{
	domain.ErrUsernameTooShort,
	domain.ErrUsernameTooLong,
	domain.ErrInvalidUsername,
	auth.ErrInvalidResetToken,
}

// 认证失败（401）
var unauthorizedErrors = []error{
	auth.ErrInvalidCredentials,
	auth.ErrAccountInactive,
	auth.ErrPasswordChanged,
	auth.ErrIncorrectPassword,
	jwtpkg.ErrInvalidToken,
	jwtpkg.ErrExpiredToken,
	jwtpkg.ErrWrongTokenType,
}

// 无权访问（403）
var forbiddenErrors = []error{
	service.ErrNotOwner,
	service.ErrDestinationNotOwned,
}

// 资源不存在（404）
var notFoundErrors = []error{
	service.ErrRuleNotFound,
	service.ErrDestinationNotFound,
	auth.ErrAccountNotFound,
}

// 资源冲突（409）
var conflictErrors = []error{
	auth.ErrUsernameExists,
	auth.ErrEmailExists,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorStatus 把业务错误映射为 HTTP 状态码与提示信息
func errorStatus(err error) (int, string) {
	var pe *provider.Error
	switch {
	case errors.Is(err, service.ErrInconsistent):
		return http.StatusInternalServerError, MsgInconsistent
	case errors.As(err, &pe):
		if pe.Kind == provider.KindRejected {
			return http.StatusBadRequest, pe.Message()
		}
		return http.StatusBadGateway, MsgProviderDown
	case isAny(err, conflictErrors):
		return http.StatusConflict, err.Error()
	case service.IsValidation(err), isAny(err, accountValidationErrors):
		return http.StatusBadRequest, err.Error()
	case isAny(err, unauthorizedErrors):
		return http.StatusUnauthorized, err.Error()
	case isAny(err, forbiddenErrors):
		return http.StatusForbidden, err.Error()
	case isAny(err, notFoundErrors):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}

// writeError 写出错误响应，服务端错误记录日志
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	Error(c, status, msg)
}
