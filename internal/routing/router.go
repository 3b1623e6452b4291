// Package routing 将别名或目标地址的域名映射到邮件路由服务商的 zone 与账号凭据。
//
// Table 在启动时由配置构建，之后只读，可被多个请求并发使用。
package routing

import (
	"strings"

	"mailroute/backend/internal/config"
)

// Credentials 是访问服务商 API 的一组凭据
type Credentials struct {
	AuthEmail string
	AccountID string
	APIKey    string
}

// Route 将域名后缀映射到 zone 与凭据
type Route struct {
	Domain      string
	ZoneID      string
	Credentials Credentials
}

// RuleTarget 是规则类调用的目标：zone 以及调用时使用的凭据
type RuleTarget struct {
	ZoneID      string
	Credentials Credentials
	Matched     bool // false 表示使用了兜底 zone
}

// Table 是不可变的有序路由表
type Table struct {
	routes       []Route
	fallbackZone string
	fallbackCred Credentials
}

// NewTable 创建路由表，输入会被复制并转为小写，后续修改入参不影响路由结果
func NewTable(routes []Route, fallbackZone string, fallbackCred Credentials) *Table {
	copied := make([]Route, 0, len(routes))
	for _, r := range routes {
		domain := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(r.Domain)), "@")
		if domain == "" {
			continue
		}
		r.Domain = domain
		copied = append(copied, r)
	}
	return &Table{
		routes:       copied,
		fallbackZone: fallbackZone,
		fallbackCred: fallbackCred,
	}
}

// FromConfig 根据服务商配置构建路由表
func FromConfig(cfg config.ProviderConfig) *Table {
	routes := make([]Route, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes = append(routes, Route{
			Domain: r.Domain,
			ZoneID: r.ZoneID,
			Credentials: Credentials{
				AuthEmail: r.Credentials.AuthEmail,
				AccountID: r.Credentials.AccountID,
				APIKey:    r.Credentials.APIKey,
			},
		})
	}
	return NewTable(routes, cfg.FallbackZoneID, Credentials{
		AuthEmail: cfg.DefaultCredentials.AuthEmail,
		AccountID: cfg.DefaultCredentials.AccountID,
		APIKey:    cfg.DefaultCredentials.APIKey,
	})
}

// match 按配置顺序做大小写不敏感的后缀匹配，第一个命中者胜出
func (t *Table) match(value string) (Route, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, r := range t.routes {
		if strings.HasSuffix(value, r.Domain) {
			return r, true
		}
	}
	return Route{}, false
}

// ResolveRuleTarget 返回别名所在的 zone；没有匹配时返回兜底 zone 与默认凭据
func (t *Table) ResolveRuleTarget(alias string) RuleTarget {
	if r, ok := t.match(alias); ok {
		return RuleTarget{ZoneID: r.ZoneID, Credentials: r.Credentials, Matched: true}
	}
	return RuleTarget{ZoneID: t.fallbackZone, Credentials: t.fallbackCred}
}

// ResolveDestinationTarget 返回负责该域名的账号凭据
//
// 第二个返回值为 false 表示该域名不由本系统服务，调用方应按客户端错误处理。
func (t *Table) ResolveDestinationTarget(domain string) (Credentials, bool) {
	r, ok := t.match(domain)
	if !ok {
		return Credentials{}, false
	}
	return r.Credentials, true
}

// Serves 判断域名是否由路由表覆盖
func (t *Table) Serves(domain string) bool {
	_, ok := t.match(domain)
	return ok
}

// Domains 按配置顺序返回所有受服务的域名
func (t *Table) Domains() []string {
	out := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r.Domain)
	}
	return out
}
