package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，code 与 HTTP 状态码一致
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{Code: status, Msg: msg, Data: data})
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

// Created 创建成功响应（201）
func Created(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, "created", data)
}

// NoContent 删除成功（204），不带响应体
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 请求参数或业务校验错误（400）
func BadRequest(c *gin.Context, msg string) {
	respond(c, http.StatusBadRequest, msg, nil)
}

// Unauthorized 未认证或密码复核失败（401）
func Unauthorized(c *gin.Context, msg string) {
	respond(c, http.StatusUnauthorized, msg, nil)
}

// Forbidden 访问他人的资源（403）
func Forbidden(c *gin.Context, msg string) {
	respond(c, http.StatusForbidden, msg, nil)
}

// NotFound 资源不存在（404）
func NotFound(c *gin.Context, msg string) {
	respond(c, http.StatusNotFound, msg, nil)
}

// Conflict 唯一性冲突（409）
func Conflict(c *gin.Context, msg string) {
	respond(c, http.StatusConflict, msg, nil)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	respond(c, http.StatusInternalServerError, msg, nil)
}

// Error 按给定状态码输出错误
func Error(c *gin.Context, status int, msg string) {
	respond(c, status, msg, nil)
}
