// Package provider 封装对远端邮件路由服务商（Cloudflare Email Routing）的调用。
//
// 客户端不保存任何本地状态，只负责把一次操作翻译成一次或两次带认证的 HTTP 请求，
// 并把失败统一为 *Error，调用方据此区分服务商拒绝与网络故障。
package provider

import (
	"context"
	"time"
)

// RuleSpec 描述期望在服务商侧存在的转发规则
type RuleSpec struct {
	Alias       string
	Destination string
	Name        string
	Enabled     bool
}

// RuleRef 定位服务商侧已存在的规则。Alias 用于选择 zone。
type RuleRef struct {
	ProviderID string
	Alias      string
}

// RemoteRule 是服务商返回的规则
type RemoteRule struct {
	ID      string
	Name    string
	Enabled bool
}

// RemoteDestination 是服务商返回的目标地址
type RemoteDestination struct {
	ID         string
	Email      string
	VerifiedAt *time.Time
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Gateway 远端路由服务商接口
type Gateway interface {
	CreateRule(ctx context.Context, spec RuleSpec) (RemoteRule, error)
	// UpdateRule 先创建新规则再删除旧规则。删除旧规则失败时返回新规则以及 *IncompleteUpdateError。
	UpdateRule(ctx context.Context, previous RuleRef, spec RuleSpec) (RemoteRule, error)
	ToggleRule(ctx context.Context, providerID string, spec RuleSpec) (RemoteRule, error)
	DeleteRule(ctx context.Context, ref RuleRef) error

	CreateDestination(ctx context.Context, domain, address string) (RemoteDestination, error)
	GetDestination(ctx context.Context, domain, providerID string) (RemoteDestination, error)
	DeleteDestination(ctx context.Context, domain, providerID string) error
}
