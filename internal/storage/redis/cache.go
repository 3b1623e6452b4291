package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailroute/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 规则与目标地址的 Redis 缓存
type Cache struct {
	client *Client
	ctx    context.Context
}

// NewCache 基于已连接的客户端创建缓存
func NewCache(client *Client) *Cache {
	return &Cache{
		client: client,
		ctx:    context.Background(),
	}
}

func ruleKey(id string) string {
	return fmt.Sprintf("rule:%s", id)
}

func destinationsKey(username string) string {
	return fmt.Sprintf("destinations:%s", username)
}

// ========== 规则缓存 ==========

// CacheRule 缓存规则
func (c *Cache) CacheRule(rule *domain.Rule, ttl time.Duration) error {
	return c.set(ruleKey(rule.ID), rule, ttl)
}

// GetCachedRule 获取缓存的规则
func (c *Cache) GetCachedRule(id string) (*domain.Rule, error) {
	var rule domain.Rule
	if err := c.get(ruleKey(id), &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteCachedRule 删除缓存的规则
func (c *Cache) DeleteCachedRule(id string) error {
	return c.client.rdb.Del(c.ctx, ruleKey(id)).Err()
}

// ========== 目标地址缓存 ==========

// CacheDestinations 缓存用户的目标地址列表
func (c *Cache) CacheDestinations(username string, destinations []domain.Destination, ttl time.Duration) error {
	return c.set(destinationsKey(username), destinations, ttl)
}

// GetCachedDestinations 获取缓存的目标地址列表
func (c *Cache) GetCachedDestinations(username string) ([]domain.Destination, error) {
	var destinations []domain.Destination
	if err := c.get(destinationsKey(username), &destinations); err != nil {
		return nil, err
	}
	return destinations, nil
}

// DeleteCachedDestinations 删除缓存的目标地址列表
func (c *Cache) DeleteCachedDestinations(username string) error {
	return c.client.rdb.Del(c.ctx, destinationsKey(username)).Err()
}

func (c *Cache) set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(c.ctx, key, data, ttl).Err()
}

func (c *Cache) get(key string, out any) error {
	data, err := c.client.rdb.Get(c.ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, out)
}
