package domain

import "time"

// Rule 是别名到目标地址的转发规则，与服务商侧的一条路由规则对应
type Rule struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Alias          string    `json:"alias" gorm:"uniqueIndex;type:varchar(255);not null"`
	Destination    string    `json:"destination" gorm:"type:varchar(255);index;not null"`
	Username       string    `json:"username" gorm:"type:varchar(32);index;not null"`
	ProviderRuleID string    `json:"providerRuleId" gorm:"type:varchar(64)"`
	Name           string    `json:"name" gorm:"type:varchar(255)"`
	Enabled        bool      `json:"enabled" gorm:"not null"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RuleName 返回服务商侧规则的显示名称
func RuleName(username string) string {
	return "Automated - created by " + username
}

// Entry 生成账户内嵌的别名条目
func (r *Rule) Entry() AliasEntry {
	return AliasEntry{
		AliasEmail:       r.Alias,
		DestinationEmail: r.Destination,
		Active:           r.Enabled,
	}
}
