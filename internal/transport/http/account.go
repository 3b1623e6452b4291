package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/middleware"
	"mailroute/backend/internal/service"
)

// AccountHandler 处理当前账户相关的请求
type AccountHandler struct {
	accounts *service.AccountService
	auth     *AuthHandler
	log      *zap.Logger
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accounts *service.AccountService, authHandler *AuthHandler, log *zap.Logger) *AccountHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountHandler{
		accounts: accounts,
		auth:     authHandler,
		log:      log,
	}
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type passwordConfirmRequest struct {
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// currentAccount 从上下文读取当前账户，缺失时写出 401
func currentAccount(c *gin.Context) (*domain.Account, bool) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return nil, false
	}
	return account, true
}

// Me 获取当前账户
// @Summary 当前账户信息
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AccountView
// @Router /api/v1/user/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	fresh, err := h.accounts.Profile(account.ID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewAccountView(fresh))
}

// UpdateMe 修改名称或邮箱
// @Summary 修改账户资料
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "资料"
// @Success 200 {object} AccountView
// @Failure 400 {object} Response "不能修改用户名或密码"
// @Router /api/v1/user/me [patch]
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	updated, err := h.accounts.UpdateProfile(account.ID, service.UpdateProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewAccountView(updated))
}

// DeleteMe 停用当前账户
// @Summary 停用账户
// @Tags 账户
// @Accept json
// @Security BearerAuth
// @Param request body passwordConfirmRequest true "当前密码"
// @Success 204
// @Failure 401 {object} Response "密码错误"
// @Router /api/v1/user/me [delete]
func (h *AccountHandler) DeleteMe(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req passwordConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.accounts.Deactivate(account.ID, req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.auth.clearAccessCookie(c)
	NoContent(c)
}

// ChangePassword 修改密码并重新签发令牌
// @Summary 修改密码
// @Tags 账户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "密码"
// @Success 200 {object} TokenView
// @Failure 401 {object} Response "当前密码错误"
// @Router /api/v1/user/password [patch]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	updated, err := h.auth.authService.ChangePassword(account.ID, auth.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if view, ok := h.auth.issueTokens(c, updated); ok {
		Success(c, view)
	}
}

// Routing 账户路由概览
// @Summary 别名、目标地址与规则概览
// @Tags 账户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RoutingSummaryView
// @Router /api/v1/user/routing [get]
func (h *AccountHandler) Routing(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	summary, err := h.accounts.RoutingSummary(account.ID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewRoutingSummaryView(summary))
}
