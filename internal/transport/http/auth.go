package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	jwtpkg "mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/middleware"
)

// accessCookie 浏览器客户端使用的令牌 cookie
const accessCookie = "access_token"

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService  *auth.Service
	jwtManager   *jwtpkg.Manager
	secureCookie bool
	log          *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, secureCookie bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService:  authService,
		jwtManager:   jwtManager,
		secureCookie: secureCookie,
		log:          log,
	}
}

type signupRequest struct {
	Username        string `json:"username" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// Signup 注册
// @Summary 注册账户
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body signupRequest true "注册信息"
// @Success 201 {object} TokenView "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "用户名或邮箱已存在"
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	account, err := h.authService.Signup(auth.SignupInput{
		Username:        req.Username,
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info("account signed up", zap.String("username", account.Username))
	if view, ok := h.issueTokens(c, account); ok {
		Created(c, view)
	}
}

// Login 登录
// @Summary 使用用户名或邮箱登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} TokenView "登录成功"
// @Failure 401 {object} Response "凭证错误或账户已停用"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	account, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if view, ok := h.issueTokens(c, account); ok {
		Success(c, view)
	}
}

// Logout 清除浏览器中的令牌 cookie。
// 已签发的令牌在过期前仍然有效，Bearer 客户端自行丢弃即可。
// @Summary 退出登录
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "已退出"
// @Failure 401 {object} Response "未认证"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearAccessCookie(c)
	if account, ok := middleware.CurrentAccount(c); ok {
		h.log.Info("account logged out", zap.String("username", account.Username))
	}
	Success(c, nil)
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "刷新令牌"
// @Success 200 {object} TokenView "新的访问令牌"
// @Failure 401 {object} Response "刷新令牌无效或已过期"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, claims, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	// 修改密码或停用后刷新令牌同样失效
	account, err := h.authService.Authenticate(claims)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.setAccessCookie(c, accessToken)
	Success(c, TokenView{
		Account:     NewAccountView(account),
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.jwtManager.AccessExpiry().Seconds()),
	})
}

// ForgotPassword 申请重置密码。无论邮箱是否注册都返回相同结果。
// @Summary 申请重置密码
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body forgotPasswordRequest true "注册邮箱"
// @Success 200 {object} Response
// @Router /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, gin.H{"message": MsgResetEmailSent})
}

// ResetPassword 使用重置令牌设置新密码并登录
// @Summary 重置密码
// @Tags 认证
// @Accept json
// @Produce json
// @Param token path string true "重置令牌"
// @Param request body resetPasswordRequest true "新密码"
// @Success 200 {object} TokenView
// @Failure 400 {object} Response "令牌无效或已过期"
// @Router /api/v1/auth/reset-password/{token} [patch]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	account, err := h.authService.ResetPassword(c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if view, ok := h.issueTokens(c, account); ok {
		Success(c, view)
	}
}

// issueTokens 签发令牌对并写入 cookie
func (h *AuthHandler) issueTokens(c *gin.Context, account *domain.Account) (TokenView, bool) {
	tokens, err := h.jwtManager.GenerateTokenPair(account.ID, account.Username, account.IsPremium)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.String("account_id", account.ID), zap.Error(err))
		InternalError(c, MsgTokenIssueFailed)
		return TokenView{}, false
	}

	h.setAccessCookie(c, tokens.AccessToken)
	return TokenView{
		Account:      NewAccountView(account),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}, true
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	maxAge := int(h.jwtManager.AccessExpiry().Seconds())
	c.SetCookie(accessCookie, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearAccessCookie(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", "", h.secureCookie, true)
}
