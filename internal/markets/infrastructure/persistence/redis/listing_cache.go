// Package redis 基于 Redis 的榜单读缓存
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/cache"
)

const (
	listingKeyPrefix = "coinboard:markets:ranked:"
	versionKey       = "coinboard:markets:version"
)

var _ domain.ListingCache = (*ListingCache)(nil)

// store 是 ListingCache 依赖的最小缓存能力
type store interface {
	Get(ctx context.Context, key string) (string, error)
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// ListingCache 缓存排好序的完整榜单
// 榜单键带版本号，刷新提交后递增版本号，旧版本的键随 TTL 过期
type ListingCache struct {
	store store
	ttl   time.Duration
}

// NewListingCache 创建榜单缓存
func NewListingCache(c *cache.RedisCache, ttl time.Duration) *ListingCache {
	return &ListingCache{store: c, ttl: ttl}
}

func listingKey(version int64) string {
	return listingKeyPrefix + strconv.FormatInt(version, 10)
}

// Get 读取当前版本的榜单，未命中返回 cache.ErrCacheMiss 与当前版本号
func (c *ListingCache) Get(ctx context.Context) ([]*domain.MarketEntry, int64, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, err
	}

	var entries []*domain.MarketEntry
	if err := c.store.GetJSON(ctx, listingKey(version), &entries); err != nil {
		return nil, version, err
	}
	return entries, version, nil
}

// Set 写入指定版本的榜单
func (c *ListingCache) Set(ctx context.Context, version int64, entries []*domain.MarketEntry) error {
	return c.store.SetJSON(ctx, listingKey(version), entries, c.ttl)
}

// Invalidate 递增版本号并删除上一版本的榜单
func (c *ListingCache) Invalidate(ctx context.Context) error {
	next, err := c.store.Incr(ctx, versionKey)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, listingKey(next-1))
}

func (c *ListingCache) version(ctx context.Context) (int64, error) {
	raw, err := c.store.Get(ctx, versionKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid listing cache version %q: %w", raw, err)
	}
	return v, nil
}
