package rdb

import (
	"context"
	"fmt"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/db"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

var _ domain.RefreshRunRepository = (*RefreshRunRepository)(nil)

// RefreshRunRepository 刷新报告仓储实现
type RefreshRunRepository struct {
	db *db.DB
}

// NewRefreshRunRepository 创建刷新报告仓储
func NewRefreshRunRepository(database *db.DB) *RefreshRunRepository {
	return &RefreshRunRepository{db: database}
}

// Save 保存刷新报告
func (r *RefreshRunRepository) Save(ctx context.Context, run *domain.RefreshRun) error {
	if err := r.db.WithContext(ctx).Create(FromRefreshRun(run)).Error; err != nil {
		return fmt.Errorf("failed to save refresh run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRecent 按开始时间倒序返回最近的报告，limit 超出范围时取默认值或上限
func (r *RefreshRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RefreshRun, error) {
	switch {
	case limit <= 0:
		limit = defaultRunsLimit
	case limit > maxRunsLimit:
		limit = maxRunsLimit
	}

	var models []RefreshRunPO
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list refresh runs: %w", err)
	}

	runs := make([]*domain.RefreshRun, 0, len(models))
	for i := range models {
		runs = append(runs, models[i].ToDomain())
	}
	return runs, nil
}
