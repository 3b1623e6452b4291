package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDomainNotServiced 域名不在路由表中，属于客户端错误
var ErrDomainNotServiced = errors.New("domain is not serviced by any provider account")

// Kind 服务商错误类别
type Kind string

const (
	// KindTransport 网络故障、超时或服务商 5xx
	KindTransport Kind = "transport"
	// KindRejected 服务商返回 success=false 或 4xx
	KindRejected Kind = "rejected"
	// KindDecode 响应无法解析
	KindDecode Kind = "decode"
)

// Error 是一次服务商调用的失败
type Error struct {
	Op       string
	Kind     Kind
	Status   int
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s [%s]", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message 返回可以直接展示给用户的服务商消息
func (e *Error) Message() string {
	if len(e.Messages) > 0 {
		return e.Messages[0]
	}
	if e.Kind == KindRejected {
		return "email routing provider rejected the request"
	}
	return "email routing provider is unavailable"
}

// IsTransport 判断错误是否为网络层或服务商不可用
func IsTransport(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindTransport || pe.Kind == KindDecode
	}
	return false
}

// IsRejected 判断错误是否为服务商明确拒绝
func IsRejected(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindRejected
	}
	return false
}

// IncompleteUpdateError 新规则已创建但旧规则未能删除，服务商侧同时存在两条规则
type IncompleteUpdateError struct {
	NewRuleID string
	OldRuleID string
	Err       error
}

func (e *IncompleteUpdateError) Error() string {
	return fmt.Sprintf("rule update incomplete: new rule %s created, old rule %s not deleted: %v", e.NewRuleID, e.OldRuleID, e.Err)
}

func (e *IncompleteUpdateError) Unwrap() error {
	return e.Err
}
