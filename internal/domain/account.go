package domain

import (
	"time"

	"gorm.io/gorm"
)

// AliasEntry 是账户内嵌的别名摘要，以别名地址为键
type AliasEntry struct {
	AliasEmail       string `json:"aliasEmail"`
	DestinationEmail string `json:"destinationEmail"`
	Active           bool   `json:"active"`
}

// DestinationEntry 是账户内嵌的目标地址摘要，以目标地址为键
type DestinationEntry struct {
	DestinationEmail string `json:"destinationEmail"`
	Domain           string `json:"domain"`
	Verified         bool   `json:"verified"`
}

// Account 是授权检查的根聚合。
//
// Aliases/Destinations 是冗余的内嵌集合，AliasCount/DestinationCount 只是它们长度的缓存，
// 每次修改集合都会通过 Recount 重新计算，保存前的 BeforeSave 钩子也会再算一次。
type Account struct {
	ID                   string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username             string             `json:"username" gorm:"uniqueIndex;type:varchar(32);not null"`
	Name                 string             `json:"name" gorm:"type:varchar(64)"`
	Email                string             `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash         string             `json:"-" gorm:"type:varchar(255)"`
	Provider             string             `json:"provider" gorm:"type:varchar(32);default:'local'"`
	IsPremium            bool               `json:"isPremium" gorm:"default:false"`
	IsActive             bool               `json:"isActive" gorm:"default:true;index"`
	Aliases              []AliasEntry       `json:"aliases" gorm:"serializer:json;type:text"`
	AliasCount           int                `json:"aliasCount"`
	Destinations         []DestinationEntry `json:"destinations" gorm:"serializer:json;type:text"`
	DestinationCount     int                `json:"destinationCount"`
	PasswordChangedAt    *time.Time         `json:"-"`
	PasswordResetToken   string             `json:"-" gorm:"type:varchar(64);index"`
	PasswordResetExpires *time.Time         `json:"-"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// BeforeSave 在写库前同步计数字段
func (a *Account) BeforeSave(tx *gorm.DB) error {
	a.Recount()
	return nil
}

// Recount 用集合长度覆盖计数字段
func (a *Account) Recount() {
	a.AliasCount = len(a.Aliases)
	a.DestinationCount = len(a.Destinations)
}

// AddAlias 追加别名条目；同一别名已存在时原地替换
func (a *Account) AddAlias(entry AliasEntry) {
	defer a.Recount()
	for i := range a.Aliases {
		if a.Aliases[i].AliasEmail == entry.AliasEmail {
			a.Aliases[i] = entry
			return
		}
	}
	a.Aliases = append(a.Aliases, entry)
}

// ReplaceAlias 用新条目替换 oldAlias 对应的条目，找不到时追加
func (a *Account) ReplaceAlias(oldAlias string, entry AliasEntry) {
	defer a.Recount()
	kept := a.Aliases[:0]
	replaced := false
	for _, existing := range a.Aliases {
		switch {
		case existing.AliasEmail == oldAlias && !replaced:
			kept = append(kept, entry)
			replaced = true
		case existing.AliasEmail == oldAlias, existing.AliasEmail == entry.AliasEmail:
			// 去重
		default:
			kept = append(kept, existing)
		}
	}
	if !replaced {
		kept = append(kept, entry)
	}
	a.Aliases = kept
}

// SetAliasActive 修改别名条目的启用状态，返回是否找到
func (a *Account) SetAliasActive(alias string, active bool) bool {
	for i := range a.Aliases {
		if a.Aliases[i].AliasEmail == alias {
			a.Aliases[i].Active = active
			return true
		}
	}
	return false
}

// RemoveAlias 移除别名条目
func (a *Account) RemoveAlias(alias string) {
	defer a.Recount()
	kept := a.Aliases[:0]
	for _, existing := range a.Aliases {
		if existing.AliasEmail != alias {
			kept = append(kept, existing)
		}
	}
	a.Aliases = kept
}

// AddDestination 追加目标地址条目；已存在时原地替换
func (a *Account) AddDestination(entry DestinationEntry) {
	defer a.Recount()
	for i := range a.Destinations {
		if a.Destinations[i].DestinationEmail == entry.DestinationEmail {
			a.Destinations[i] = entry
			return
		}
	}
	a.Destinations = append(a.Destinations, entry)
}

// SetDestinationVerified 修改目标地址条目的验证状态，返回是否找到
func (a *Account) SetDestinationVerified(address string, verified bool) bool {
	for i := range a.Destinations {
		if a.Destinations[i].DestinationEmail == address {
			a.Destinations[i].Verified = verified
			return true
		}
	}
	return false
}

// RemoveDestination 移除目标地址条目
func (a *Account) RemoveDestination(address string) {
	defer a.Recount()
	kept := a.Destinations[:0]
	for _, existing := range a.Destinations {
		if existing.DestinationEmail != address {
			kept = append(kept, existing)
		}
	}
	a.Destinations = kept
}

// CanAddDestination 判断账户是否仍可新增目标地址
func (a *Account) CanAddDestination(freeLimit int) bool {
	return a.IsPremium || len(a.Destinations) < freeLimit
}

// ChangedPasswordAfter 判断密码是否在令牌签发之后被修改过
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return a.PasswordChangedAt.Truncate(time.Second).After(issuedAt)
}

// Clone 返回深拷贝，内存存储用它隔离调用方的修改
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Aliases = append([]AliasEntry(nil), a.Aliases...)
	cp.Destinations = append([]DestinationEntry(nil), a.Destinations...)
	if a.PasswordChangedAt != nil {
		t := *a.PasswordChangedAt
		cp.PasswordChangedAt = &t
	}
	if a.PasswordResetExpires != nil {
		t := *a.PasswordResetExpires
		cp.PasswordResetExpires = &t
	}
	return &cp
}
