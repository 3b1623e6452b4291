package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailroute/backend/internal/domain"
)

// ResetNotifier 把密码重置令牌送达用户，邮件投递由外部系统完成
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, account *domain.Account, token string, expiresAt time.Time) error
}

// LogResetNotifier 把重置令牌写入日志，用于开发环境
type LogResetNotifier struct {
	logger *zap.Logger
}

// NewLogResetNotifier 创建日志通知器
func NewLogResetNotifier(logger *zap.Logger) *LogResetNotifier {
	return &LogResetNotifier{logger: logger}
}

// NotifyPasswordReset 记录重置令牌
func (n *LogResetNotifier) NotifyPasswordReset(_ context.Context, account *domain.Account, token string, expiresAt time.Time) error {
	n.logger.Info("password reset requested",
		zap.String("account_id", account.ID),
		zap.String("email", account.Email),
		zap.String("reset_token", token),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// hashResetToken 库中只保存令牌摘要
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ForgotPassword 生成重置令牌并交给通知器
//
// 邮箱不存在时同样返回 nil，调用方无法据此判断邮箱是否注册。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.GetAccountByEmail(domain.NormalizeAddress(email))
	if err != nil || !account.IsActive {
		s.logger.Debug("password reset for unknown email", zap.String("email", email))
		return nil
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expiresAt := s.now().UTC().Add(s.resetTokenTTL)
	account.PasswordResetToken = hashResetToken(token)
	account.PasswordResetExpires = &expiresAt
	if err := s.accounts.UpdateAccount(account); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.notifier.NotifyPasswordReset(ctx, account, token, expiresAt); err != nil {
		// 通知失败时撤销令牌
		account.PasswordResetToken = ""
		account.PasswordResetExpires = nil
		if rollbackErr := s.accounts.UpdateAccount(account); rollbackErr != nil {
			s.logger.Error("failed to clear reset token", zap.String("account_id", account.ID), zap.Error(rollbackErr))
		}
		return fmt.Errorf("failed to deliver reset token: %w", err)
	}
	return nil
}

// ResetPassword 使用重置令牌设置新密码
func (s *Service) ResetPassword(token, password, confirm string) (*domain.Account, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}
	account, err := s.accounts.GetAccountByResetToken(hashResetToken(token))
	if err != nil {
		return nil, ErrInvalidResetToken
	}
	if account.PasswordResetExpires == nil || !s.now().Before(*account.PasswordResetExpires) {
		return nil, ErrInvalidResetToken
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	if err := s.setPassword(account, password, confirm); err != nil {
		return nil, err
	}
	account.PasswordResetToken = ""
	account.PasswordResetExpires = nil
	if err := s.accounts.UpdateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return account, nil
}
