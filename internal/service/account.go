package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

// AccountStore 账户服务依赖的存储能力
type AccountStore interface {
	storage.AccountRepository
	storage.DestinationRepository
	storage.RuleRepository
}

// AccountService 账户资料与路由概览
type AccountService struct {
	store     AccountStore
	passwords PasswordVerifier
	logger    *zap.Logger
}

// NewAccountService 创建账户服务
func NewAccountService(store AccountStore, passwords PasswordVerifier, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		store:     store,
		passwords: passwords,
		logger:    logger,
	}
}

// UpdateProfileInput 修改资料的参数，nil 表示不修改
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Username *string
	Password *string
}

// RoutingSummary 账户的路由概览
type RoutingSummary struct {
	Account      *domain.Account
	Rules        []domain.Rule
	Destinations []domain.Destination
}

// Profile 返回最新的账户信息
func (s *AccountService) Profile(accountID string) (*domain.Account, error) {
	account, err := s.store.GetAccountByID(accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// UpdateProfile 修改显示名称和邮箱。
// 用户名被规则和目标地址按名引用，不允许修改；密码走单独的接口。
func (s *AccountService) UpdateProfile(accountID string, input UpdateProfileInput) (*domain.Account, error) {
	if input.Password != nil {
		return nil, ErrPasswordRouteOnly
	}

	account, err := s.Profile(accountID)
	if err != nil {
		return nil, err
	}
	if input.Username != nil && domain.NormalizeAddress(*input.Username) != account.Username {
		return nil, ErrUsernameImmutable
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := domain.ValidateName(name); err != nil {
			return nil, err
		}
		account.Name = name
	}
	if input.Email != nil {
		email := domain.NormalizeAddress(*input.Email)
		if err := domain.ValidateAddress(email); err != nil {
			return nil, err
		}
		if email != account.Email {
			if existing, err := s.store.GetAccountByEmail(email); err == nil && existing.ID != account.ID {
				return nil, ErrEmailTaken
			} else if err != nil && !errors.Is(err, storage.ErrAccountNotFound) {
				return nil, err
			}
			account.Email = email
		}
	}

	if err := s.store.UpdateAccount(account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return account, nil
}

// Deactivate 复核密码后停用账户，记录保留
func (s *AccountService) Deactivate(accountID, password string) error {
	account, err := s.Profile(accountID)
	if err != nil {
		return err
	}
	if err := s.passwords.VerifyPassword(account, password); err != nil {
		return err
	}

	account.IsActive = false
	if err := s.store.UpdateAccount(account); err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	s.logger.Info("account deactivated", zap.String("username", account.Username))
	return nil
}

// RoutingSummary 汇总账户的别名、目标地址与规则
func (s *AccountService) RoutingSummary(accountID string) (*RoutingSummary, error) {
	account, err := s.Profile(accountID)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ListRulesByUsername(account.Username)
	if err != nil {
		return nil, err
	}
	destinations, err := s.store.ListDestinationsByUsername(account.Username)
	if err != nil {
		return nil, err
	}
	return &RoutingSummary{
		Account:      account,
		Rules:        rules,
		Destinations: destinations,
	}, nil
}

// SetPremium 修改账户的高级状态，供运维命令使用
func (s *AccountService) SetPremium(username string, premium bool) (*domain.Account, error) {
	account, err := s.store.GetAccountByUsername(domain.NormalizeAddress(username))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, err
	}
	if account.IsPremium == premium {
		return account, nil
	}

	account.IsPremium = premium
	if err := s.store.UpdateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to update premium flag: %w", err)
	}
	s.logger.Info("premium flag changed",
		zap.String("username", account.Username),
		zap.Bool("premium", premium),
	)
	return account, nil
}
