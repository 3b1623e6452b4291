package domain

import "time"

// Destination 是一个转发目标邮箱，在服务商侧验证通过后才能被规则引用
type Destination struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address    string     `json:"destination" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username   string     `json:"username" gorm:"type:varchar(32);index;not null"`
	Domain     string     `json:"domain" gorm:"type:varchar(253);not null"`
	ProviderID string     `json:"providerId" gorm:"type:varchar(64)"`
	VerifiedAt *time.Time `json:"verifiedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	ModifiedAt time.Time  `json:"modifiedAt"`
}

// IsVerified 判断目标地址是否已验证
func (d *Destination) IsVerified() bool {
	return d.VerifiedAt != nil && !d.VerifiedAt.IsZero()
}

// Entry 生成账户内嵌的摘要条目
func (d *Destination) Entry() DestinationEntry {
	return DestinationEntry{
		DestinationEmail: d.Address,
		Domain:           d.Domain,
		Verified:         d.IsVerified(),
	}
}

// Clone 返回副本，验证时间单独复制
func (d *Destination) Clone() *Destination {
	if d == nil {
		return nil
	}
	cp := *d
	if d.VerifiedAt != nil {
		t := *d.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}
