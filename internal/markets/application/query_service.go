// Package application 行情榜单的用例编排：读路径（QueryService）与写路径（RefreshService）
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/cache"
	"github.com/wyfcoding/coinboard/pkg/logger"
)

// QueryService 行情查询服务
type QueryService struct {
	entries domain.MarketEntryRepository
	runs    domain.RefreshRunRepository
	cache   domain.ListingCache // 可为 nil
}

// NewQueryService 创建查询服务，listingCache 可为 nil
func NewQueryService(entries domain.MarketEntryRepository, runs domain.RefreshRunRepository, listingCache domain.ListingCache) *QueryService {
	return &QueryService{
		entries: entries,
		runs:    runs,
		cache:   listingCache,
	}
}

// ListMarkets 返回按市值排序的完整榜单
// 用例流程：
// 1. 命中缓存直接返回
// 2. 未命中时读取存储，按读取前的版本号回填缓存
// 3. 读取失败时记录日志并返回空列表，展示层渲染空表格
func (s *QueryService) ListMarkets(ctx context.Context) []*MarketEntryDTO {
	entries := s.ranked(ctx)

	dtos := make([]*MarketEntryDTO, 0, len(entries))
	for i, e := range entries {
		dtos = append(dtos, toMarketEntryDTO(e, i+1))
	}
	return dtos
}

func (s *QueryService) ranked(ctx context.Context) []*domain.MarketEntry {
	var (
		version  int64
		backfill bool
	)
	if s.cache != nil {
		entries, v, err := s.cache.Get(ctx)
		if err == nil {
			return entries
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			version, backfill = v, true
		} else {
			logger.Warn(ctx, "Listing cache read failed, falling back to store", "error", err)
		}
	}

	entries, err := s.entries.ListRanked(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list market entries", "error", err)
		return []*domain.MarketEntry{}
	}

	// 版本号在读取存储之前取得，期间提交的刷新会使这次回填失效
	if backfill {
		if err := s.cache.Set(ctx, version, entries); err != nil {
			logger.Warn(ctx, "Listing cache write failed", "error", err)
		}
	}
	return entries
}

// GetMarket 按标识键获取单个条目
func (s *QueryService) GetMarket(ctx context.Context, symbol string) (*MarketEntryDTO, error) {
	entry, err := s.entries.GetBySymbol(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrMarketEntryNotFound) && !errors.Is(err, domain.ErrEmptySymbol) {
			logger.Error(ctx, "Failed to get market entry", "symbol", symbol, "error", err)
		}
		return nil, err
	}
	return toMarketEntryDTO(entry, 0), nil
}

// RecentRuns 返回最近的刷新报告
func (s *QueryService) RecentRuns(ctx context.Context, limit int) ([]*RefreshRunDTO, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		logger.Error(ctx, "Failed to list refresh runs", "error", err)
		return nil, fmt.Errorf("failed to list refresh runs: %w", err)
	}

	dtos := make([]*RefreshRunDTO, 0, len(runs))
	for _, r := range runs {
		dtos = append(dtos, ToRefreshRunDTO(r))
	}
	return dtos, nil
}

// LatestRun 返回最近一次刷新报告，没有记录或读取失败时返回 nil
func (s *QueryService) LatestRun(ctx context.Context) *RefreshRunDTO {
	runs, err := s.RecentRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	return runs[0]
}
