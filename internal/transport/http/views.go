package httptransport

import (
	"time"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/service"
)

// AccountView 对外暴露的账户信息，不包含密码与重置令牌
type AccountView struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Provider         string    `json:"provider"`
	IsPremium        bool      `json:"isPremium"`
	IsActive         bool      `json:"isActive"`
	AliasCount       int       `json:"aliasCount"`
	DestinationCount int       `json:"destinationCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewAccountView 构造账户视图
func NewAccountView(account *domain.Account) AccountView {
	return AccountView{
		ID:               account.ID,
		Username:         account.Username,
		Name:             account.Name,
		Email:            account.Email,
		Provider:         account.Provider,
		IsPremium:        account.IsPremium,
		IsActive:         account.IsActive,
		AliasCount:       len(account.Aliases),
		DestinationCount: len(account.Destinations),
		CreatedAt:        account.CreatedAt,
	}
}

// DestinationView 目标地址视图
type DestinationView struct {
	ID          string     `json:"id"`
	Destination string     `json:"destination"`
	Domain      string     `json:"domain"`
	Verified    bool       `json:"verified"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ModifiedAt  time.Time  `json:"modifiedAt"`
}

// NewDestinationView 构造目标地址视图
func NewDestinationView(destination *domain.Destination) DestinationView {
	return DestinationView{
		ID:          destination.ID,
		Destination: destination.Address,
		Domain:      destination.Domain,
		Verified:    destination.IsVerified(),
		VerifiedAt:  destination.VerifiedAt,
		CreatedAt:   destination.CreatedAt,
		ModifiedAt:  destination.ModifiedAt,
	}
}

// NewDestinationViews 构造目标地址视图列表
func NewDestinationViews(destinations []domain.Destination) []DestinationView {
	views := make([]DestinationView, 0, len(destinations))
	for i := range destinations {
		views = append(views, NewDestinationView(&destinations[i]))
	}
	return views
}

// RuleView 转发规则视图
type RuleView struct {
	ID          string    `json:"id"`
	Alias       string    `json:"alias"`
	Destination string    `json:"destination"`
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewRuleView 构造规则视图
func NewRuleView(rule *domain.Rule) RuleView {
	return RuleView{
		ID:          rule.ID,
		Alias:       rule.Alias,
		Destination: rule.Destination,
		Name:        rule.Name,
		Enabled:     rule.Enabled,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

// NewRuleViews 构造规则视图列表
func NewRuleViews(rules []domain.Rule) []RuleView {
	views := make([]RuleView, 0, len(rules))
	for i := range rules {
		views = append(views, NewRuleView(&rules[i]))
	}
	return views
}

// RoutingSummaryView 账户路由概览
type RoutingSummaryView struct {
	Aliases          []domain.AliasEntry       `json:"aliases"`
	AliasCount       int                       `json:"aliasCount"`
	Destinations     []domain.DestinationEntry `json:"destinations"`
	DestinationCount int                       `json:"destinationCount"`
	Rules            []RuleView                `json:"rules"`
}

// NewRoutingSummaryView 构造路由概览视图，计数取自集合长度
func NewRoutingSummaryView(summary *service.RoutingSummary) RoutingSummaryView {
	aliases := summary.Account.Aliases
	if aliases == nil {
		aliases = []domain.AliasEntry{}
	}
	destinations := summary.Account.Destinations
	if destinations == nil {
		destinations = []domain.DestinationEntry{}
	}
	return RoutingSummaryView{
		Aliases:          aliases,
		AliasCount:       len(aliases),
		Destinations:     destinations,
		DestinationCount: len(destinations),
		Rules:            NewRuleViews(summary.Rules),
	}
}

// TokenView 登录后返回的令牌与账户
type TokenView struct {
	Account      AccountView `json:"account"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int64       `json:"expiresIn"`
}
