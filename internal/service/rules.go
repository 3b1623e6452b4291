package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/storage"
)

// 对账操作名称，用于日志与监控标签
const (
	OpCreateRule        = "create_rule"
	OpUpdateRule        = "update_rule"
	OpToggleRule        = "toggle_rule"
	OpDeleteRule        = "delete_rule"
	OpCreateDestination = "create_destination"
	OpVerifyDestination = "verify_destination"
	OpDeleteDestination = "delete_destination"
)

// RuleInput 创建或修改规则的参数
type RuleInput struct {
	Alias       string
	Destination string
}

// normalize 统一格式并校验基本字段
func (in RuleInput) normalize() (RuleInput, error) {
	in.Alias = domain.NormalizeAddress(in.Alias)
	in.Destination = domain.NormalizeAddress(in.Destination)
	if in.Alias == "" || in.Destination == "" {
		return in, ErrMissingFields
	}
	if err := domain.ValidateAddress(in.Alias); err != nil {
		return in, err
	}
	if err := domain.ValidateAddress(in.Destination); err != nil {
		return in, err
	}
	return in, nil
}

// CreateRule 为调用者创建别名转发规则
func (s *RoutingService) CreateRule(ctx context.Context, account *domain.Account, input RuleInput) (rule *domain.Rule, err error) {
	defer s.observe(OpCreateRule, &err)

	input, err = input.normalize()
	if err != nil {
		return nil, err
	}
	destination, err := s.usableDestination(account, input.Destination)
	if err != nil {
		return nil, err
	}
	if !domain.AliasMatchesDomain(input.Alias, destination.Domain) {
		return nil, ErrDomainMismatch
	}
	if err := s.ensureAliasFree(input.Alias, ""); err != nil {
		return nil, err
	}

	spec := provider.RuleSpec{
		Alias:       input.Alias,
		Destination: input.Destination,
		Name:        domain.RuleName(account.Username),
		Enabled:     true,
	}
	remote, err := s.gateway.CreateRule(ctx, spec)
	if err != nil {
		return nil, s.providerFailure(OpCreateRule, account, err, zap.String("alias", input.Alias))
	}

	rule = &domain.Rule{
		ID:             uuid.NewString(),
		Alias:          input.Alias,
		Destination:    input.Destination,
		Username:       account.Username,
		ProviderRuleID: remote.ID,
		Name:           spec.Name,
		Enabled:        true,
	}
	if err := s.store.CommitRuleCreate(rule, account.ID); err != nil {
		// 远端规则已创建，本地未记录
		s.logger.Error("local commit failed",
			zap.String("operation", OpCreateRule),
			zap.String("alias", rule.Alias),
			zap.String("orphan_provider_rule_id", remote.ID),
			zap.String("severity", "operator"),
			zap.Error(err),
		)
		s.metrics.RecordInconsistency(OpCreateRule)
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrAliasExists
		}
		return nil, err
	}

	s.logger.Info("rule created",
		zap.String("username", account.Username),
		zap.String("alias", rule.Alias),
		zap.String("provider_rule_id", rule.ProviderRuleID),
	)
	return rule, nil
}

// UpdateRule 修改规则的别名或目标地址。
// 服务商侧先创建新规则再删除旧规则，本地记录保留原 ID。
func (s *RoutingService) UpdateRule(ctx context.Context, account *domain.Account, ruleID string, input RuleInput) (rule *domain.Rule, err error) {
	defer s.observe(OpUpdateRule, &err)

	current, err := s.ownedRule(account, ruleID)
	if err != nil {
		return nil, err
	}
	input, err = input.normalize()
	if err != nil {
		return nil, err
	}
	if input.Alias == current.Alias && input.Destination == current.Destination {
		return current, nil
	}
	destination, err := s.usableDestination(account, input.Destination)
	if err != nil {
		return nil, err
	}
	if !domain.AliasMatchesDomain(input.Alias, destination.Domain) {
		return nil, ErrDomainMismatch
	}
	if err := s.ensureAliasFree(input.Alias, current.ID); err != nil {
		return nil, err
	}

	spec := provider.RuleSpec{
		Alias:       input.Alias,
		Destination: input.Destination,
		Name:        domain.RuleName(account.Username),
		Enabled:     current.Enabled,
	}
	previous := provider.RuleRef{ProviderID: current.ProviderRuleID, Alias: current.Alias}
	remote, err := s.gateway.UpdateRule(ctx, previous, spec)
	if err != nil {
		var incomplete *provider.IncompleteUpdateError
		if errors.As(err, &incomplete) {
			return nil, s.inconsistency(OpUpdateRule, account, err,
				zap.String("rule_id", current.ID),
				zap.String("new_provider_rule_id", incomplete.NewRuleID),
				zap.String("old_provider_rule_id", incomplete.OldRuleID),
			)
		}
		return nil, s.providerFailure(OpUpdateRule, account, err, zap.String("rule_id", current.ID))
	}

	updated := *current
	updated.Alias = input.Alias
	updated.Destination = input.Destination
	updated.ProviderRuleID = remote.ID
	updated.Name = spec.Name
	if err := s.store.CommitRuleUpdate(&updated, current.Alias, account.ID); err != nil {
		return nil, s.inconsistency(OpUpdateRule, account, err,
			zap.String("rule_id", current.ID),
			zap.String("new_provider_rule_id", remote.ID),
		)
	}

	s.logger.Info("rule updated",
		zap.String("username", account.Username),
		zap.String("rule_id", updated.ID),
		zap.String("previous_alias", current.Alias),
		zap.String("alias", updated.Alias),
	)
	return &updated, nil
}

// ToggleRule 翻转规则的启用状态
func (s *RoutingService) ToggleRule(ctx context.Context, account *domain.Account, ruleID string) (rule *domain.Rule, err error) {
	defer s.observe(OpToggleRule, &err)

	current, err := s.ownedRule(account, ruleID)
	if err != nil {
		return nil, err
	}

	spec := provider.RuleSpec{
		Alias:       current.Alias,
		Destination: current.Destination,
		Name:        current.Name,
		Enabled:     !current.Enabled,
	}
	if spec.Name == "" {
		spec.Name = domain.RuleName(account.Username)
	}
	if _, err := s.gateway.ToggleRule(ctx, current.ProviderRuleID, spec); err != nil {
		return nil, s.providerFailure(OpToggleRule, account, err, zap.String("rule_id", current.ID))
	}

	toggled := *current
	toggled.Enabled = spec.Enabled
	if err := s.store.CommitRuleToggle(&toggled, account.ID); err != nil {
		return nil, s.inconsistency(OpToggleRule, account, err, zap.String("rule_id", current.ID))
	}
	return &toggled, nil
}

// DeleteRule 删除规则
func (s *RoutingService) DeleteRule(ctx context.Context, account *domain.Account, ruleID string) (err error) {
	defer s.observe(OpDeleteRule, &err)

	current, err := s.ownedRule(account, ruleID)
	if err != nil {
		return err
	}

	ref := provider.RuleRef{ProviderID: current.ProviderRuleID, Alias: current.Alias}
	if err := s.gateway.DeleteRule(ctx, ref); err != nil {
		return s.providerFailure(OpDeleteRule, account, err, zap.String("rule_id", current.ID))
	}
	if err := s.store.CommitRuleDelete(current, account.ID); err != nil {
		return s.inconsistency(OpDeleteRule, account, err, zap.String("rule_id", current.ID))
	}

	s.logger.Info("rule deleted",
		zap.String("username", account.Username),
		zap.String("alias", current.Alias),
	)
	return nil
}

// GetRule 返回调用者拥有的规则，停用的规则同样可见
func (s *RoutingService) GetRule(account *domain.Account, ruleID string) (*domain.Rule, error) {
	return s.ownedRule(account, ruleID)
}

// ListRules 列出调用者的全部规则
func (s *RoutingService) ListRules(account *domain.Account) ([]domain.Rule, error) {
	return s.store.ListRulesByUsername(account.Username)
}

// ensureAliasFree 别名不能被其他规则占用，selfID 为正在修改的规则
func (s *RoutingService) ensureAliasFree(alias, selfID string) error {
	existing, err := s.store.GetRuleByAlias(alias)
	switch {
	case errors.Is(err, storage.ErrRuleNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == selfID:
		return nil
	default:
		return ErrAliasExists
	}
}
