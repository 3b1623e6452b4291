package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/routing"
	"mailroute/backend/internal/storage"
)

// DefaultFreeDestinationLimit 非高级账户可拥有的目标地址数量
const DefaultFreeDestinationLimit = 2

// RoutingStore 对账服务依赖的存储能力
type RoutingStore interface {
	storage.AccountRepository
	storage.DestinationRepository
	storage.RuleRepository
	storage.RoutingWriter
}

// PasswordVerifier 敏感操作前的密码复核
type PasswordVerifier interface {
	VerifyPassword(account *domain.Account, password string) error
}

// RoutingOptions 对账服务可选参数
type RoutingOptions struct {
	FreeDestinationLimit int
	Metrics              *monitoring.Metrics
	Logger               *zap.Logger
}

// RoutingService 负责规则与目标地址的对账：
// 先完成全部前置校验，再调用服务商，服务商确认成功后才提交本地记录。
type RoutingService struct {
	store     RoutingStore
	gateway   provider.Gateway
	router    *routing.Table
	passwords PasswordVerifier
	freeLimit int
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewRoutingService 创建对账服务
func NewRoutingService(store RoutingStore, gateway provider.Gateway, router *routing.Table, passwords PasswordVerifier, opts RoutingOptions) *RoutingService {
	limit := opts.FreeDestinationLimit
	if limit <= 0 {
		limit = DefaultFreeDestinationLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{
		store:     store,
		gateway:   gateway,
		router:    router,
		passwords: passwords,
		freeLimit: limit,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ServicedDomains 返回可以创建目标地址的域名列表
func (s *RoutingService) ServicedDomains() []string {
	return s.router.Domains()
}

// observe 记录一次对账操作的结果
func (s *RoutingService) observe(operation string, err *error) {
	s.metrics.RecordReconcile(operation, outcomeOf(*err))
}

// providerFailure 记录服务商调用失败，原样返回错误供上层区分类别
func (s *RoutingService) providerFailure(operation string, account *domain.Account, err error, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("operation", operation),
		zap.String("username", account.Username),
		zap.Error(err),
	)
	if provider.IsTransport(err) {
		s.logger.Error("provider call failed", fields...)
	} else {
		s.logger.Warn("provider call failed", fields...)
	}
	if errors.Is(err, provider.ErrDomainNotServiced) {
		return ErrDomainNotServiced
	}
	return err
}

// inconsistency 远端已生效而本地提交失败，记录并返回 ErrInconsistent
func (s *RoutingService) inconsistency(operation string, account *domain.Account, err error, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("operation", operation),
		zap.String("username", account.Username),
		zap.String("severity", "operator"),
		zap.Error(err),
	)
	s.logger.Error("remote/local inconsistency", fields...)
	s.metrics.RecordInconsistency(operation)
	return fmt.Errorf("%w: %s", ErrInconsistent, operation)
}

// ownedRule 加载规则并校验归属
func (s *RoutingService) ownedRule(account *domain.Account, ruleID string) (*domain.Rule, error) {
	rule, err := s.store.GetRule(ruleID)
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	if rule.Username != account.Username {
		return nil, ErrNotOwner
	}
	return rule, nil
}

// ownedDestination 加载目标地址并校验归属
func (s *RoutingService) ownedDestination(account *domain.Account, destinationID string) (*domain.Destination, error) {
	destination, err := s.store.GetDestination(destinationID)
	if err != nil {
		if errors.Is(err, storage.ErrDestinationNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, err
	}
	if destination.Username != account.Username {
		return nil, ErrNotOwner
	}
	return destination, nil
}

// usableDestination 规则引用的目标地址必须存在、属于调用者且已验证。
// 不存在与不属于调用者返回同一个错误，避免泄露他人地址。
func (s *RoutingService) usableDestination(account *domain.Account, address string) (*domain.Destination, error) {
	destination, err := s.store.GetDestinationByAddress(address)
	if err != nil {
		if errors.Is(err, storage.ErrDestinationNotFound) {
			return nil, ErrDestinationNotOwned
		}
		return nil, err
	}
	if destination.Username != account.Username {
		return nil, ErrDestinationNotOwned
	}
	if !destination.IsVerified() {
		return nil, ErrDestinationNotVerified
	}
	return destination, nil
}
