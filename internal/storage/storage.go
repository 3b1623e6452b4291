package storage

import (
	"errors"

	"mailroute/backend/internal/domain"
)

var (
	// ErrAccountNotFound 账户未找到
	ErrAccountNotFound = errors.New("account not found")
	// ErrDestinationNotFound 目标地址未找到
	ErrDestinationNotFound = errors.New("destination not found")
	// ErrRuleNotFound 规则未找到
	ErrRuleNotFound = errors.New("rule not found")
	// ErrDuplicate 唯一索引冲突（用户名、邮箱、别名或目标地址）
	ErrDuplicate = errors.New("record already exists")
)

// AccountRepository 定义账户数据存取操作。
type AccountRepository interface {
	CreateAccount(account *domain.Account) error
	GetAccountByID(id string) (*domain.Account, error)
	GetAccountByUsername(username string) (*domain.Account, error)
	GetAccountByEmail(email string) (*domain.Account, error)
	GetAccountByResetToken(tokenHash string) (*domain.Account, error)
	// UpdateAccount 只写资料与凭证字段，别名与目标地址集合由 RoutingWriter 维护
	UpdateAccount(account *domain.Account) error
}

// DestinationRepository 定义目标地址查询操作。
type DestinationRepository interface {
	GetDestination(id string) (*domain.Destination, error)
	GetDestinationByAddress(address string) (*domain.Destination, error)
	ListDestinationsByUsername(username string) ([]domain.Destination, error)
}

// RuleRepository 定义规则查询操作。
type RuleRepository interface {
	GetRule(id string) (*domain.Rule, error)
	GetRuleByAlias(alias string) (*domain.Rule, error)
	ListRulesByUsername(username string) ([]domain.Rule, error)
}

// RoutingWriter 定义对账提交操作。
//
// 每个方法在一个原子单元内同时写入实体与所属账户的内嵌集合，并重新计算计数字段。
// 调用方只在远端服务商确认成功后调用。
type RoutingWriter interface {
	CommitRuleCreate(rule *domain.Rule, accountID string) error
	CommitRuleUpdate(rule *domain.Rule, previousAlias, accountID string) error
	CommitRuleToggle(rule *domain.Rule, accountID string) error
	CommitRuleDelete(rule *domain.Rule, accountID string) error
	CommitDestinationCreate(destination *domain.Destination, accountID string) error
	CommitDestinationVerify(destination *domain.Destination, accountID string) error
	CommitDestinationDelete(destination *domain.Destination, accountID string) error
}

// Store 定义完整的存储接口。
type Store interface {
	AccountRepository
	DestinationRepository
	RuleRepository
	RoutingWriter

	// 工具方法
	Close() error
	Health() error
}
