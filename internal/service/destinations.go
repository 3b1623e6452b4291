package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

// DestinationInput 创建目标地址的参数
type DestinationInput struct {
	Destination string
	Domain      string
}

// CreateDestination 在服务商侧登记目标地址，服务商会向该地址发送验证邮件
func (s *RoutingService) CreateDestination(ctx context.Context, account *domain.Account, input DestinationInput) (destination *domain.Destination, err error) {
	defer s.observe(OpCreateDestination, &err)

	address := domain.NormalizeAddress(input.Destination)
	zone := domain.NormalizeDomain(input.Domain)
	if address == "" || zone == "" {
		return nil, ErrMissingFields
	}
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := domain.ValidateDomain(zone); err != nil {
		return nil, err
	}
	if !s.router.Serves(zone) {
		return nil, ErrDomainNotServiced
	}

	// 额度以存储中的最新集合为准
	fresh, err := s.store.GetAccountByID(account.ID)
	if err != nil {
		return nil, err
	}
	if !fresh.CanAddDestination(s.freeLimit) {
		return nil, ErrDestinationLimit
	}
	if _, err := s.store.GetDestinationByAddress(address); err == nil {
		return nil, ErrDestinationExists
	} else if !errors.Is(err, storage.ErrDestinationNotFound) {
		return nil, err
	}

	remote, err := s.gateway.CreateDestination(ctx, zone, address)
	if err != nil {
		return nil, s.providerFailure(OpCreateDestination, account, err, zap.String("destination", address))
	}

	destination = &domain.Destination{
		ID:         uuid.NewString(),
		Address:    address,
		Username:   account.Username,
		Domain:     zone,
		ProviderID: remote.ID,
		VerifiedAt: remote.VerifiedAt,
		CreatedAt:  remote.CreatedAt,
		ModifiedAt: remote.ModifiedAt,
	}
	if destination.CreatedAt.IsZero() {
		destination.CreatedAt = s.now()
	}
	if err := s.store.CommitDestinationCreate(destination, account.ID); err != nil {
		s.logger.Error("local commit failed",
			zap.String("operation", OpCreateDestination),
			zap.String("destination", address),
			zap.String("orphan_provider_destination_id", remote.ID),
			zap.String("severity", "operator"),
			zap.Error(err),
		)
		s.metrics.RecordInconsistency(OpCreateDestination)
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDestinationExists
		}
		return nil, err
	}

	s.logger.Info("destination created",
		zap.String("username", account.Username),
		zap.String("destination", address),
		zap.Bool("verified", destination.IsVerified()),
	)
	return destination, nil
}

// ListDestinations 列出调用者的全部目标地址
func (s *RoutingService) ListDestinations(account *domain.Account) ([]domain.Destination, error) {
	return s.store.ListDestinationsByUsername(account.Username)
}

// GetDestination 返回调用者拥有的目标地址
func (s *RoutingService) GetDestination(account *domain.Account, destinationID string) (*domain.Destination, error) {
	return s.ownedDestination(account, destinationID)
}

// VerifyDestination 向服务商查询验证状态并落库。
// 已验证的地址直接返回，不再访问服务商。
func (s *RoutingService) VerifyDestination(ctx context.Context, account *domain.Account, destinationID string) (destination *domain.Destination, err error) {
	defer s.observe(OpVerifyDestination, &err)

	destination, err = s.ownedDestination(account, destinationID)
	if err != nil {
		return nil, err
	}
	if destination.IsVerified() {
		return destination, nil
	}

	remote, err := s.gateway.GetDestination(ctx, destination.Domain, destination.ProviderID)
	if err != nil {
		return nil, s.providerFailure(OpVerifyDestination, account, err, zap.String("destination", destination.Address))
	}
	if remote.VerifiedAt == nil || remote.VerifiedAt.IsZero() {
		return destination, nil
	}

	verified := destination.Clone()
	verified.VerifiedAt = remote.VerifiedAt
	verified.ModifiedAt = remote.ModifiedAt
	if verified.ModifiedAt.IsZero() {
		verified.ModifiedAt = s.now()
	}
	if err := s.store.CommitDestinationVerify(verified, account.ID); err != nil {
		s.logger.Error("local commit failed",
			zap.String("operation", OpVerifyDestination),
			zap.String("destination", destination.Address),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("destination verified",
		zap.String("username", account.Username),
		zap.String("destination", verified.Address),
	)
	return verified, nil
}

// DeleteDestination 删除目标地址，需要复核密码。
// 仍被规则引用的地址不能删除。
func (s *RoutingService) DeleteDestination(ctx context.Context, account *domain.Account, destinationID, password string) (err error) {
	defer s.observe(OpDeleteDestination, &err)

	if err := s.passwords.VerifyPassword(account, password); err != nil {
		return err
	}
	destination, err := s.ownedDestination(account, destinationID)
	if err != nil {
		return err
	}
	rules, err := s.store.ListRulesByUsername(account.Username)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if rule.Destination == destination.Address {
			return ErrDestinationInUse
		}
	}

	if err := s.gateway.DeleteDestination(ctx, destination.Domain, destination.ProviderID); err != nil {
		return s.providerFailure(OpDeleteDestination, account, err, zap.String("destination", destination.Address))
	}
	if err := s.store.CommitDestinationDelete(destination, account.ID); err != nil {
		return s.inconsistency(OpDeleteDestination, account, err, zap.String("destination", destination.Address))
	}

	s.logger.Info("destination deleted",
		zap.String("username", account.Username),
		zap.String("destination", destination.Address),
	)
	return nil
}
