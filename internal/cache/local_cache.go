package cache

import (
	"errors"
	"sync"
	"time"

	"mailroute/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中或已过期
var ErrCacheMiss = errors.New("cache miss")

const (
	defaultMaxEntries      = 10000
	defaultCleanupInterval = time.Minute
)

// LocalCache 进程内的规则与目标地址缓存，未配置 Redis 时供 hybrid.Store 使用。
//
// 条目按 TTL 过期；达到容量上限时先清理过期条目，仍然不足则丢弃新条目。
// 多实例部署时各实例的缓存互不可见，应改用 Redis。
type LocalCache struct {
	mu           sync.RWMutex
	rules        map[string]entry[domain.Rule]
	destinations map[string]entry[[]domain.Destination]
	maxEntries   int
	now          func() time.Time
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存，maxEntries <= 0 时使用默认容量
func NewLocalCache(maxEntries int) *LocalCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &LocalCache{
		rules:        make(map[string]entry[domain.Rule]),
		destinations: make(map[string]entry[[]domain.Destination]),
		maxEntries:   maxEntries,
		now:          time.Now,
	}
}

// CacheRule 缓存规则副本
func (c *LocalCache) CacheRule(rule *domain.Rule, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reserve() {
		return nil
	}
	c.rules[rule.ID] = entry[domain.Rule]{value: *rule, expiresAt: c.now().Add(ttl)}
	return nil
}

// GetCachedRule 获取缓存的规则
func (c *LocalCache) GetCachedRule(id string) (*domain.Rule, error) {
	c.mu.RLock()
	e, ok := c.rules[id]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	rule := e.value
	return &rule, nil
}

// DeleteCachedRule 删除缓存的规则
func (c *LocalCache) DeleteCachedRule(id string) error {
	c.mu.Lock()
	delete(c.rules, id)
	c.mu.Unlock()
	return nil
}

// CacheDestinations 缓存用户的目标地址列表
func (c *LocalCache) CacheDestinations(username string, destinations []domain.Destination, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reserve() {
		return nil
	}
	c.destinations[username] = entry[[]domain.Destination]{
		value:     copyDestinations(destinations),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// GetCachedDestinations 获取缓存的目标地址列表
func (c *LocalCache) GetCachedDestinations(username string) ([]domain.Destination, error) {
	c.mu.RLock()
	e, ok := c.destinations[username]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	return copyDestinations(e.value), nil
}

// DeleteCachedDestinations 删除缓存的目标地址列表
func (c *LocalCache) DeleteCachedDestinations(username string) error {
	c.mu.Lock()
	delete(c.destinations, username)
	c.mu.Unlock()
	return nil
}

// Len 返回当前条目数（含未清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules) + len(c.destinations)
}

// Run 定期清理过期条目，done 关闭后返回
func (c *LocalCache) Run(done <-chan struct{}) {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpired()
			c.mu.Unlock()
		}
	}
}

// reserve 在写入前确认容量，调用方需持有写锁
func (c *LocalCache) reserve() bool {
	if len(c.rules)+len(c.destinations) < c.maxEntries {
		return true
	}
	c.evictExpired()
	return len(c.rules)+len(c.destinations) < c.maxEntries
}

func (c *LocalCache) evictExpired() {
	now := c.now()
	for key, e := range c.rules {
		if now.After(e.expiresAt) {
			delete(c.rules, key)
		}
	}
	for key, e := range c.destinations {
		if now.After(e.expiresAt) {
			delete(c.destinations, key)
		}
	}
}

func copyDestinations(src []domain.Destination) []domain.Destination {
	if src == nil {
		return nil
	}
	out := make([]domain.Destination, len(src))
	for i := range src {
		out[i] = *src[i].Clone()
	}
	return out
}
