package application

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/logger"
	"github.com/wyfcoding/coinboard/pkg/metrics"
)

// errNoEntries 数据源成功返回但没有任何可用条目
var errNoEntries = errors.New("source returned no usable entries")

// RefreshService 写路径：抓取 -> 规整 -> 批量写入
type RefreshService struct {
	fetcher   domain.Fetcher
	entries   domain.MarketEntryRepository
	runs      domain.RefreshRunRepository
	cache     domain.ListingCache   // 可为 nil
	publisher domain.EventPublisher // 可为 nil
	metrics   *metrics.Metrics      // 可为 nil
	now       func() time.Time
}

// NewRefreshService 创建刷新服务，listingCache、publisher、m 均可为 nil
func NewRefreshService(
	fetcher domain.Fetcher,
	entries domain.MarketEntryRepository,
	runs domain.RefreshRunRepository,
	listingCache domain.ListingCache,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
) *RefreshService {
	return &RefreshService{
		fetcher:   fetcher,
		entries:   entries,
		runs:      runs,
		cache:     listingCache,
		publisher: publisher,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Refresh 同步执行一次完整刷新，返回结构化报告，从不返回 error
// 用例流程：
// 1. 抓取；结果为空时状态为 fetch_empty，存储不变
// 2. 单事务批量写入；失败时整批回滚，状态为 store_failed，旧数据保持可见
// 3. 成功后使榜单缓存失效
// 4. 保存报告、记录指标、发布事件（均为尽力而为）
func (s *RefreshService) Refresh(ctx context.Context, trigger domain.RefreshTrigger) *domain.RefreshRun {
	run := domain.NewRefreshRun(trigger, s.fetcher.Name(), s.now())
	ctx = logger.ContextWithTraceID(ctx, run.RunID)

	logger.Info(ctx, "Refresh started", "trigger", trigger, "source", run.Source)
	defer logger.LogDuration(ctx, "Refresh finished", "trigger", trigger)()

	fetched := s.fetcher.Fetch(ctx)
	run.Fetched = len(fetched.Drafts)
	run.Skipped = fetched.Skipped

	if fetched.Empty() {
		err := fetched.Err
		if err == nil {
			err = errNoEntries
		}
		run.Finish(domain.StatusFetchEmpty, err, s.now())
		logger.Warn(ctx, "Refresh fetched nothing, store left unchanged", "skipped", run.Skipped, "error", err)
		s.complete(ctx, run)
		return run
	}

	result, err := s.entries.UpsertBatch(ctx, fetched.Drafts, s.now())
	if err != nil {
		run.Finish(domain.StatusStoreFailed, err, s.now())
		logger.Critical(ctx, "Refresh rolled back, previous data kept",
			"fetched", run.Fetched,
			"error", err,
		)
		s.complete(ctx, run)
		return run
	}

	run.Inserted = result.Inserted
	run.Updated = result.Updated
	run.Finish(domain.StatusSucceeded, nil, s.now())

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "Failed to invalidate listing cache", "error", err)
		}
	}

	logger.Info(ctx, "Refresh committed",
		"fetched", run.Fetched,
		"skipped", run.Skipped,
		"inserted", run.Inserted,
		"updated", run.Updated,
	)
	s.complete(ctx, run)
	return run
}

// complete 保存报告、记录指标并发布事件
func (s *RefreshService) complete(ctx context.Context, run *domain.RefreshRun) {
	if err := s.runs.Save(ctx, run); err != nil {
		logger.Error(ctx, "Failed to record refresh run", "run_id", run.RunID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRefresh(string(run.Status), run.Duration(), run.Fetched, run.Skipped, run.Inserted, run.Updated)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRefreshCompleted(ctx, domain.NewRefreshCompletedEvent(run)); err != nil {
			logger.Warn(ctx, "Failed to publish refresh event", "run_id", run.RunID, "error", err)
		}
	}
}
