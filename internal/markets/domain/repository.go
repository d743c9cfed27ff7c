package domain

import (
	"context"
	"time"
)

// MarketEntryRepository 行情条目仓储接口
type MarketEntryRepository interface {
	// 在单个事务内批量写入，任何一条失败整批回滚
	UpsertBatch(ctx context.Context, drafts []*Draft, now time.Time) (*UpsertResult, error)
	// 按市值降序返回所有条目，市值缺失的排在最后
	ListRanked(ctx context.Context) ([]*MarketEntry, error)
	// 按标识键获取条目，不存在时返回 ErrMarketEntryNotFound
	GetBySymbol(ctx context.Context, symbol string) (*MarketEntry, error)
}

// RefreshRunRepository 刷新报告仓储接口
type RefreshRunRepository interface {
	// 保存刷新报告
	Save(ctx context.Context, run *RefreshRun) error
	// 按开始时间倒序返回最近的报告
	ListRecent(ctx context.Context, limit int) ([]*RefreshRun, error)
}

// FetchResult 一次抓取的结果，抓取失败时 Drafts 为空、Err 非空
type FetchResult struct {
	// 数据源名称
	Source string
	// 规整后的草稿，保持数据源顺序
	Drafts []*Draft
	// 被跳过的条目数
	Skipped int
	// 传输或整体结构错误
	Err error
}

// Empty 没有可写入的草稿
func (r *FetchResult) Empty() bool {
	return len(r.Drafts) == 0
}

// Fetcher 远端数据源
// Fetch 从不返回 Go error，失败以空结果表示
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) *FetchResult
}

// ListingCache 按版本号存放的榜单缓存
// Invalidate 递增版本号，读取期间发生的失效使回填落在旧版本上，不会再被读到
type ListingCache interface {
	// Get 返回当前版本号；未命中时同时返回 error
	Get(ctx context.Context) ([]*MarketEntry, int64, error)
	// Set 以 Get 返回的版本号写入
	Set(ctx context.Context, version int64, entries []*MarketEntry) error
	Invalidate(ctx context.Context) error
}

// EventPublisher 领域事件发布者
type EventPublisher interface {
	PublishRefreshCompleted(ctx context.Context, event *RefreshCompletedEvent) error
}
