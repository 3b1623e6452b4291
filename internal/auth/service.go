package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

var (
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("incorrect username, email or password")
	// ErrAccountInactive 账户已停用
	ErrAccountInactive = errors.New("account is deactivated")
	// ErrAccountNotFound 令牌对应的账户不存在
	ErrAccountNotFound = errors.New("the account belonging to this token no longer exists")
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already taken")
	// ErrEmailExists 邮箱已存在
	ErrEmailExists = errors.New("an account with this email already exists")
	// ErrPasswordMismatch 两次输入的密码不一致
	ErrPasswordMismatch = errors.New("passwords are not the same")
	// ErrIncorrectPassword 当前密码错误
	ErrIncorrectPassword = errors.New("current password is incorrect")
	// ErrPasswordChanged 令牌签发后密码已修改
	ErrPasswordChanged = errors.New("password changed recently, please log in again")
	// ErrInvalidResetToken 重置令牌无效或已过期
	ErrInvalidResetToken = errors.New("reset token is invalid or has expired")
)

// Service 账户认证服务
type Service struct {
	accounts      storage.AccountRepository
	notifier      ResetNotifier
	resetTokenTTL time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// Options 认证服务可选配置
type Options struct {
	Notifier      ResetNotifier
	ResetTokenTTL time.Duration
	Logger        *zap.Logger
}

// NewService 创建认证服务
func NewService(accounts storage.AccountRepository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewLogResetNotifier(logger)
	}
	ttl := opts.ResetTokenTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		accounts:      accounts,
		notifier:      notifier,
		resetTokenTTL: ttl,
		logger:        logger,
		now:           time.Now,
	}
}

// SignupInput 注册输入
type SignupInput struct {
	Username        string
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Signup 注册本地账户
func (s *Service) Signup(input SignupInput) (*domain.Account, error) {
	username := domain.NormalizeAddress(input.Username)
	email := domain.NormalizeAddress(input.Email)
	name := strings.TrimSpace(input.Name)

	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateAddress(email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	if input.Password != input.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	if _, err := s.accounts.GetAccountByUsername(username); err == nil {
		return nil, ErrUsernameExists
	}
	if _, err := s.accounts.GetAccountByEmail(email); err == nil {
		return nil, ErrEmailExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Provider:     "local",
		IsActive:     true,
		Aliases:      []domain.AliasEntry{},
		Destinations: []domain.DestinationEntry{},
	}

	if err := s.accounts.CreateAccount(account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("username", username))
	return account, nil
}

// Login 使用用户名或邮箱登录
func (s *Service) Login(identifier, password string) (*domain.Account, error) {
	identifier = domain.NormalizeAddress(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var account *domain.Account
	var err error
	if strings.Contains(identifier, "@") {
		account, err = s.accounts.GetAccountByEmail(identifier)
	} else {
		account, err = s.accounts.GetAccountByUsername(identifier)
	}
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 先校验密码，避免通过错误类型探测已停用的账户
	if !CheckPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	return account, nil
}

// Authenticate 根据已验证的令牌声明加载调用者账户
func (s *Service) Authenticate(claims *jwt.Claims) (*domain.Account, error) {
	account, err := s.accounts.GetAccountByID(claims.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	if claims.IssuedAt != nil && account.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, ErrPasswordChanged
	}
	return account, nil
}

// GetAccount 根据 ID 获取账户
func (s *Service) GetAccount(accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetAccountByID(accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// VerifyPassword 二次确认密码，用于删除目标地址等敏感操作
func (s *Service) VerifyPassword(account *domain.Account, password string) error {
	if account == nil || password == "" || !CheckPassword(password, account.PasswordHash) {
		return ErrIncorrectPassword
	}
	return nil
}

// ChangePasswordInput 修改密码输入
type ChangePasswordInput struct {
	CurrentPassword string
	Password        string
	PasswordConfirm string
}

// ChangePassword 修改密码，成功后此前签发的令牌全部失效
func (s *Service) ChangePassword(accountID string, input ChangePasswordInput) (*domain.Account, error) {
	account, err := s.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if err := s.VerifyPassword(account, input.CurrentPassword); err != nil {
		return nil, err
	}
	if err := s.setPassword(account, input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	return account, nil
}

// setPassword 校验并写入新密码
//
// PasswordChangedAt 向前拨一秒，保证紧随其后签发的令牌 iat 不早于它。
func (s *Service) setPassword(account *domain.Account, password, confirm string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	changedAt := s.now().UTC().Add(-time.Second)
	account.PasswordHash = hash
	account.PasswordChangedAt = &changedAt
	return nil
}
