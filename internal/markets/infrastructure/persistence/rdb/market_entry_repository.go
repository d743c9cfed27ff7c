package rdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/db"
	"github.com/wyfcoding/coinboard/pkg/logger"
	"gorm.io/gorm"
)

var _ domain.MarketEntryRepository = (*MarketEntryRepository)(nil)

// MarketEntryRepository 行情条目仓储实现
type MarketEntryRepository struct {
	db *db.DB
}

// NewMarketEntryRepository 创建行情条目仓储
func NewMarketEntryRepository(database *db.DB) *MarketEntryRepository {
	return &MarketEntryRepository{db: database}
}

// UpsertBatch 批量写入
// 流程：
// 1. 按标识键去重，后出现的草稿生效
// 2. 在同一事务内校验全部草稿，并查询已存在的标识键，用于区分插入与更新
// 3. 逐条执行 INSERT ... ON CONFLICT (symbol) DO UPDATE
// 任何一步出错整批回滚
func (r *MarketEntryRepository) UpsertBatch(ctx context.Context, drafts []*domain.Draft, now time.Time) (*domain.UpsertResult, error) {
	batch := domain.Dedupe(drafts)
	if len(batch) == 0 {
		return &domain.UpsertResult{}, nil
	}

	var result *domain.UpsertResult
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		res := &domain.UpsertResult{}

		keys := make([]string, 0, len(batch))
		for _, d := range batch {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("invalid draft: %w", err)
			}
			keys = append(keys, d.Key())
		}

		var existing []string
		if err := tx.Model(&MarketEntryPO{}).Where("symbol IN ?", keys).Pluck("symbol", &existing).Error; err != nil {
			return fmt.Errorf("failed to load existing symbols: %w", err)
		}
		present := make(map[string]struct{}, len(existing))
		for _, s := range existing {
			present[s] = struct{}{}
		}

		for _, d := range batch {
			po := FromDraft(d, now)
			if err := db.UpsertWithConflict(tx, po, []string{"symbol"}, marketEntryMutableColumns); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", po.Symbol, err)
			}
			if _, ok := present[po.Symbol]; ok {
				res.Updated++
			} else {
				res.Inserted++
			}
		}

		result = res
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Upsert batch rolled back", "size", len(batch), "error", err)
		return nil, err
	}

	logger.Debug(ctx, "Upsert batch committed", "inserted", result.Inserted, "updated", result.Updated)
	return result, nil
}

// ListRanked 按市值降序返回所有条目，市值为空的排在最后，同值按标识键排序
func (r *MarketEntryRepository) ListRanked(ctx context.Context) ([]*domain.MarketEntry, error) {
	var models []MarketEntryPO
	if err := r.db.WithContext(ctx).
		Order("market_cap IS NULL").
		Order("market_cap DESC").
		Order("symbol").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list market entries: %w", err)
	}

	entries := make([]*domain.MarketEntry, 0, len(models))
	for i := range models {
		entries = append(entries, models[i].ToDomain())
	}
	return entries, nil
}

// GetBySymbol 按标识键获取条目
func (r *MarketEntryRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.MarketEntry, error) {
	key := domain.NormalizeSymbol(symbol)
	if key == "" {
		return nil, domain.ErrEmptySymbol
	}

	var model MarketEntryPO
	if err := r.db.WithContext(ctx).Where("symbol = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMarketEntryNotFound
		}
		return nil, fmt.Errorf("failed to get market entry %s: %w", key, err)
	}
	return model.ToDomain(), nil
}
