package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroute/backend/internal/service"
)

// MailHandler 处理目标地址与转发规则
type MailHandler struct {
	routing *service.RoutingService
	log     *zap.Logger
}

// NewMailHandler 创建邮件路由处理器
func NewMailHandler(routing *service.RoutingService, log *zap.Logger) *MailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailHandler{
		routing: routing,
		log:     log,
	}
}

type createDestinationRequest struct {
	Destination string `json:"destination" binding:"required"`
	Domain      string `json:"domain" binding:"required"`
}

type ruleRequest struct {
	Alias       string `json:"alias" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// Domains 可用域名
// @Summary 可创建目标地址的域名
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Router /api/v1/mail/domains [get]
func (h *MailHandler) Domains(c *gin.Context) {
	Success(c, h.routing.ServicedDomains())
}

// CreateDestination 添加目标地址，服务商会发送验证邮件
// @Summary 添加目标地址
// @Tags 邮件路由
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createDestinationRequest true "目标地址"
// @Success 201 {object} DestinationView
// @Failure 400 {object} Response "参数错误、额度不足或域名未接入"
// @Failure 502 {object} Response "服务商不可用"
// @Router /api/v1/mail/destinations [post]
func (h *MailHandler) CreateDestination(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req createDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.ErrMissingFields.Error())
		return
	}

	destination, err := h.routing.CreateDestination(c.Request.Context(), account, service.DestinationInput{
		Destination: req.Destination,
		Domain:      req.Domain,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, NewDestinationView(destination))
}

// ListDestinations 列出目标地址
// @Summary 目标地址列表
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Success 200 {array} DestinationView
// @Router /api/v1/mail/destinations [get]
func (h *MailHandler) ListDestinations(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	destinations, err := h.routing.ListDestinations(account)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewDestinationViews(destinations))
}

// VerifyDestination 向服务商同步验证状态
// @Summary 同步目标地址验证状态
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标地址 ID"
// @Success 200 {object} DestinationView
// @Router /api/v1/mail/destinations/{id}/verify [get]
func (h *MailHandler) VerifyDestination(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	destination, err := h.routing.VerifyDestination(c.Request.Context(), account, c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewDestinationView(destination))
}

// DeleteDestination 删除目标地址，需要当前密码
// @Summary 删除目标地址
// @Tags 邮件路由
// @Accept json
// @Security BearerAuth
// @Param id path string true "目标地址 ID"
// @Param request body passwordConfirmRequest true "当前密码"
// @Success 204
// @Failure 401 {object} Response "密码错误"
// @Router /api/v1/mail/destinations/{id} [delete]
func (h *MailHandler) DeleteDestination(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req passwordConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.routing.DeleteDestination(c.Request.Context(), account, c.Param("id"), req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}

// CreateRule 创建转发规则
// @Summary 创建转发规则
// @Tags 邮件路由
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ruleRequest true "别名与目标地址"
// @Success 201 {object} RuleView
// @Failure 400 {object} Response "参数错误或别名已存在"
// @Failure 403 {object} Response "目标地址不属于当前账户"
// @Router /api/v1/mail/rules [post]
func (h *MailHandler) CreateRule(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.ErrMissingFields.Error())
		return
	}

	rule, err := h.routing.CreateRule(c.Request.Context(), account, service.RuleInput{
		Alias:       req.Alias,
		Destination: req.Destination,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, NewRuleView(rule))
}

// ListRules 列出转发规则
// @Summary 转发规则列表
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Success 200 {array} RuleView
// @Router /api/v1/mail/rules [get]
func (h *MailHandler) ListRules(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	rules, err := h.routing.ListRules(account)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewRuleViews(rules))
}

// GetRule 获取单条规则
// @Summary 规则详情
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Success 200 {object} RuleView
// @Router /api/v1/mail/rules/{id} [get]
func (h *MailHandler) GetRule(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	rule, err := h.routing.GetRule(account, c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewRuleView(rule))
}

// UpdateRule 修改规则
// @Summary 修改转发规则
// @Tags 邮件路由
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Param request body ruleRequest true "新的别名与目标地址"
// @Success 200 {object} RuleView
// @Failure 500 {object} Response "服务商与本地状态不一致"
// @Router /api/v1/mail/rules/{id} [patch]
func (h *MailHandler) UpdateRule(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.ErrMissingFields.Error())
		return
	}

	rule, err := h.routing.UpdateRule(c.Request.Context(), account, c.Param("id"), service.RuleInput{
		Alias:       req.Alias,
		Destination: req.Destination,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewRuleView(rule))
}

// ToggleRule 启用或停用规则
// @Summary 切换规则启用状态
// @Tags 邮件路由
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Success 200 {object} RuleView
// @Router /api/v1/mail/rules/{id}/toggle [patch]
func (h *MailHandler) ToggleRule(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	rule, err := h.routing.ToggleRule(c.Request.Context(), account, c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, NewRuleView(rule))
}

// DeleteRule 删除规则
// @Summary 删除转发规则
// @Tags 邮件路由
// @Security BearerAuth
// @Param id path string true "规则 ID"
// @Success 204
// @Router /api/v1/mail/rules/{id} [delete]
func (h *MailHandler) DeleteRule(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}

	if err := h.routing.DeleteRule(c.Request.Context(), account, c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}
