package hybrid

import (
	"time"

	"go.uber.org/zap"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

const defaultCacheTTL = 10 * time.Minute

// RoutingCache 规则与目标地址缓存，由 redis.Cache 实现
type RoutingCache interface {
	CacheRule(rule *domain.Rule, ttl time.Duration) error
	GetCachedRule(id string) (*domain.Rule, error)
	DeleteCachedRule(id string) error
	CacheDestinations(username string, destinations []domain.Destination, ttl time.Duration) error
	GetCachedDestinations(username string) ([]domain.Destination, error)
	DeleteCachedDestinations(username string) error
}

// Store 混合存储实现，数据库为权威数据源，Redis 只做读缓存
//
// 每次提交成功后删除相关缓存键，缓存故障不影响提交结果。
type Store struct {
	storage.Store
	cache RoutingCache
	ttl   time.Duration
	log   *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建混合存储实例
func NewStore(db storage.Store, cache RoutingCache, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		Store: db,
		cache: cache,
		ttl:   ttl,
		log:   log.Named("hybrid"),
	}
}

// ========== 读缓存 ==========

// GetRule 根据 ID 获取规则，先查缓存
func (s *Store) GetRule(id string) (*domain.Rule, error) {
	if rule, err := s.cache.GetCachedRule(id); err == nil {
		return rule, nil
	}

	rule, err := s.Store.GetRule(id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheRule(rule, s.ttl); err != nil {
		s.log.Warn("failed to cache rule", zap.String("rule_id", id), zap.Error(err))
	}
	return rule, nil
}

// ListDestinationsByUsername 返回用户的目标地址，先查缓存
func (s *Store) ListDestinationsByUsername(username string) ([]domain.Destination, error) {
	if destinations, err := s.cache.GetCachedDestinations(username); err == nil {
		return destinations, nil
	}

	destinations, err := s.Store.ListDestinationsByUsername(username)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheDestinations(username, destinations, s.ttl); err != nil {
		s.log.Warn("failed to cache destinations", zap.String("username", username), zap.Error(err))
	}
	return destinations, nil
}

// ========== 写入后失效 ==========

// CommitRuleUpdate 更新规则并删除缓存
func (s *Store) CommitRuleUpdate(rule *domain.Rule, previousAlias, accountID string) error {
	if err := s.Store.CommitRuleUpdate(rule, previousAlias, accountID); err != nil {
		return err
	}
	s.invalidateRule(rule.ID)
	return nil
}

// CommitRuleToggle 切换规则并删除缓存
func (s *Store) CommitRuleToggle(rule *domain.Rule, accountID string) error {
	if err := s.Store.CommitRuleToggle(rule, accountID); err != nil {
		return err
	}
	s.invalidateRule(rule.ID)
	return nil
}

// CommitRuleDelete 删除规则并删除缓存
func (s *Store) CommitRuleDelete(rule *domain.Rule, accountID string) error {
	if err := s.Store.CommitRuleDelete(rule, accountID); err != nil {
		return err
	}
	s.invalidateRule(rule.ID)
	return nil
}

// CommitDestinationCreate 写入目标地址并删除用户列表缓存
func (s *Store) CommitDestinationCreate(destination *domain.Destination, accountID string) error {
	if err := s.Store.CommitDestinationCreate(destination, accountID); err != nil {
		return err
	}
	s.invalidateDestinations(destination.Username)
	return nil
}

// CommitDestinationVerify 写入验证状态并删除用户列表缓存
func (s *Store) CommitDestinationVerify(destination *domain.Destination, accountID string) error {
	if err := s.Store.CommitDestinationVerify(destination, accountID); err != nil {
		return err
	}
	s.invalidateDestinations(destination.Username)
	return nil
}

// CommitDestinationDelete 删除目标地址并删除用户列表缓存
func (s *Store) CommitDestinationDelete(destination *domain.Destination, accountID string) error {
	if err := s.Store.CommitDestinationDelete(destination, accountID); err != nil {
		return err
	}
	s.invalidateDestinations(destination.Username)
	return nil
}

func (s *Store) invalidateRule(id string) {
	if err := s.cache.DeleteCachedRule(id); err != nil {
		s.log.Warn("failed to invalidate cached rule", zap.String("rule_id", id), zap.Error(err))
	}
}

func (s *Store) invalidateDestinations(username string) {
	if err := s.cache.DeleteCachedDestinations(username); err != nil {
		s.log.Warn("failed to invalidate cached destinations", zap.String("username", username), zap.Error(err))
	}
}
