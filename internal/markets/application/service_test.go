package application

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/cache"
	"github.com/wyfcoding/coinboard/pkg/logger"
	"github.com/wyfcoding/coinboard/pkg/metrics"
)

type stubFetcher struct {
	result *domain.FetchResult
	calls  int
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Fetch(context.Context) *domain.FetchResult {
	f.calls++
	return f.result
}

type fakeEntryRepo struct {
	upserted  [][]*domain.Draft
	upsertErr error
	listed    []*domain.MarketEntry
	listErr   error
	listCalls int
	onList    func()
}

func (r *fakeEntryRepo) UpsertBatch(_ context.Context, drafts []*domain.Draft, _ time.Time) (*domain.UpsertResult, error) {
	r.upserted = append(r.upserted, drafts)
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	return &domain.UpsertResult{Inserted: len(drafts) - 1, Updated: 1}, nil
}

func (r *fakeEntryRepo) ListRanked(context.Context) ([]*domain.MarketEntry, error) {
	r.listCalls++
	listed := r.listed
	if r.onList != nil {
		r.onList()
	}
	return listed, r.listErr
}

func (r *fakeEntryRepo) GetBySymbol(_ context.Context, symbol string) (*domain.MarketEntry, error) {
	for _, e := range r.listed {
		if e.Symbol == domain.NormalizeSymbol(symbol) {
			return e, nil
		}
	}
	return nil, domain.ErrMarketEntryNotFound
}

type fakeRunRepo struct {
	saved   []*domain.RefreshRun
	saveErr error
}

func (r *fakeRunRepo) Save(_ context.Context, run *domain.RefreshRun) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, run)
	return nil
}

func (r *fakeRunRepo) ListRecent(_ context.Context, limit int) ([]*domain.RefreshRun, error) {
	if len(r.saved) < limit {
		limit = len(r.saved)
	}
	return r.saved[:limit], nil
}

// fakeCache 仅保存当前版本的榜单，旧版本的写入被丢弃
type fakeCache struct {
	entries     []*domain.MarketEntry
	version     int64
	getErr      error
	sets        int
	invalidated int
}

func (c *fakeCache) Get(context.Context) ([]*domain.MarketEntry, int64, error) {
	if c.getErr != nil {
		return nil, 0, c.getErr
	}
	if c.entries == nil {
		return nil, c.version, cache.ErrCacheMiss
	}
	return c.entries, c.version, nil
}

func (c *fakeCache) Set(_ context.Context, version int64, entries []*domain.MarketEntry) error {
	c.sets++
	if version == c.version {
		c.entries = entries
	}
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.invalidated++
	c.version++
	c.entries = nil
	return nil
}

type fakePublisher struct {
	events []*domain.RefreshCompletedEvent
	err    error
}

func (p *fakePublisher) PublishRefreshCompleted(_ context.Context, evt *domain.RefreshCompletedEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

func validDraft(symbol string) *domain.Draft {
	return &domain.Draft{
		Symbol: symbol,
		Price:  decimal.NewNullDecimal(decimal.NewFromInt(1)),
	}
}

func entry(symbol string) *domain.MarketEntry {
	return &domain.MarketEntry{Symbol: symbol, Price: decimal.NewFromInt(1)}
}

func TestRefreshSucceeded(t *testing.T) {
	fetcher := &stubFetcher{result: &domain.FetchResult{
		Source:  "stub",
		Drafts:  []*domain.Draft{validDraft("btc"), validDraft("eth")},
		Skipped: 1,
	}}
	entries := &fakeEntryRepo{}
	runs := &fakeRunRepo{}
	lc := &fakeCache{entries: []*domain.MarketEntry{entry("OLD")}}
	pub := &fakePublisher{}
	m := metrics.New("test")

	svc := NewRefreshService(fetcher, entries, runs, lc, pub, m)
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, domain.TriggerManual, run.Trigger)
	assert.Equal(t, "stub", run.Source)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Inserted)
	assert.Equal(t, 1, run.Updated)
	assert.Empty(t, run.Error)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	require.Len(t, entries.upserted, 1)
	assert.Len(t, entries.upserted[0], 2)
	assert.Equal(t, 1, lc.invalidated)
	require.Len(t, runs.saved, 1)
	assert.Same(t, run, runs.saved[0])
	require.Len(t, pub.events, 1)
	assert.Equal(t, run.RunID, pub.events[0].RunID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshRunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchedEntriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedItemsTotal))
}

func TestRefreshFetchFailureLeavesStoreUntouched(t *testing.T) {
	fetchErr := errors.New("unexpected status 503")
	fetcher := &stubFetcher{result: &domain.FetchResult{Source: "stub", Err: fetchErr}}
	entries := &fakeEntryRepo{}
	runs := &fakeRunRepo{}
	lc := &fakeCache{}

	svc := NewRefreshService(fetcher, entries, runs, lc, nil, nil)
	run := svc.Refresh(context.Background(), domain.TriggerScheduled)

	assert.Equal(t, domain.StatusFetchEmpty, run.Status)
	assert.Contains(t, run.Error, "503")
	assert.Empty(t, entries.upserted)
	assert.Zero(t, lc.invalidated)
	require.Len(t, runs.saved, 1)
}

func TestRefreshAllItemsSkipped(t *testing.T) {
	fetcher := &stubFetcher{result: &domain.FetchResult{Source: "stub", Skipped: 4}}
	entries := &fakeEntryRepo{}

	svc := NewRefreshService(fetcher, entries, &fakeRunRepo{}, nil, nil, nil)
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.StatusFetchEmpty, run.Status)
	assert.Equal(t, 4, run.Skipped)
	assert.Equal(t, errNoEntries.Error(), run.Error)
	assert.Empty(t, entries.upserted)
}

func TestRefreshStoreFailure(t *testing.T) {
	fetcher := &stubFetcher{result: &domain.FetchResult{
		Source: "stub",
		Drafts: []*domain.Draft{validDraft("btc")},
	}}
	entries := &fakeEntryRepo{upsertErr: errors.New("disk full")}
	lc := &fakeCache{entries: []*domain.MarketEntry{entry("BTC")}}
	pub := &fakePublisher{}
	m := metrics.New("test")

	svc := NewRefreshService(fetcher, entries, &fakeRunRepo{}, lc, pub, m)
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.StatusStoreFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")
	assert.Zero(t, run.Inserted)
	assert.Zero(t, run.Updated)
	// 旧数据仍然可见，缓存不失效
	assert.Zero(t, lc.invalidated)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "store_failed", pub.events[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshRunsTotal.WithLabelValues("store_failed")))
}

func TestRefreshSideEffectFailuresDoNotChangeOutcome(t *testing.T) {
	fetcher := &stubFetcher{result: &domain.FetchResult{
		Source: "stub",
		Drafts: []*domain.Draft{validDraft("btc")},
	}}
	runs := &fakeRunRepo{saveErr: errors.New("locked")}
	pub := &fakePublisher{err: errors.New("broker down")}

	svc := NewRefreshService(fetcher, &fakeEntryRepo{}, runs, nil, pub, nil)
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	assert.True(t, run.Succeeded())
	assert.Len(t, pub.events, 1)
}

func TestRefreshUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{result: &domain.FetchResult{Source: "stub", Err: errors.New("down")}}

	svc := NewRefreshService(fetcher, &fakeEntryRepo{}, &fakeRunRepo{}, nil, nil, nil)
	svc.now = func() time.Time { return fixed }
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	assert.Equal(t, fixed, run.StartedAt)
	assert.Equal(t, fixed, run.FinishedAt)
	assert.Zero(t, run.Duration())
}

func TestListMarketsReadsThroughCache(t *testing.T) {
	entries := &fakeEntryRepo{listed: []*domain.MarketEntry{entry("BTC"), entry("ETH")}}
	lc := &fakeCache{}
	svc := NewQueryService(entries, &fakeRunRepo{}, lc)
	ctx := context.Background()

	first := svc.ListMarkets(ctx)
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[0].Position)
	assert.Equal(t, "BTC", first[0].Symbol)
	assert.Equal(t, 2, first[1].Position)
	assert.Equal(t, 1, lc.sets)

	second := svc.ListMarkets(ctx)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, entries.listCalls)
}

func TestListMarketsCacheErrorFallsBackToStore(t *testing.T) {
	entries := &fakeEntryRepo{listed: []*domain.MarketEntry{entry("BTC")}}
	lc := &fakeCache{getErr: errors.New("connection refused")}
	svc := NewQueryService(entries, &fakeRunRepo{}, lc)

	got := svc.ListMarkets(context.Background())
	assert.Len(t, got, 1)
	assert.Equal(t, 1, entries.listCalls)
	assert.Zero(t, lc.sets)
}

func TestListMarketsDoesNotServeListingReadBeforeRefresh(t *testing.T) {
	ctx := context.Background()
	entries := &fakeEntryRepo{listed: []*domain.MarketEntry{entry("OLD")}}
	lc := &fakeCache{}
	query := NewQueryService(entries, &fakeRunRepo{}, lc)

	fetcher := &stubFetcher{result: &domain.FetchResult{Source: "stub", Drafts: []*domain.Draft{validDraft("new")}}}
	refresh := NewRefreshService(fetcher, entries, &fakeRunRepo{}, lc, nil, nil)

	// 读取存储之后、回填缓存之前，一次刷新完成提交
	entries.onList = func() {
		entries.onList = nil
		require.True(t, refresh.Refresh(ctx, domain.TriggerManual).Succeeded())
		entries.listed = []*domain.MarketEntry{entry("NEW")}
	}

	stale := query.ListMarkets(ctx)
	require.Len(t, stale, 1)
	assert.Equal(t, "OLD", stale[0].Symbol)
	assert.Equal(t, 1, lc.invalidated)

	fresh := query.ListMarkets(ctx)
	require.Len(t, fresh, 1)
	assert.Equal(t, "NEW", fresh[0].Symbol)
	assert.Equal(t, 2, entries.listCalls)
}

func TestListMarketsStoreErrorReturnsEmpty(t *testing.T) {
	entries := &fakeEntryRepo{listErr: errors.New("no such table")}
	svc := NewQueryService(entries, &fakeRunRepo{}, nil)

	got := svc.ListMarkets(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetMarket(t *testing.T) {
	svc := NewQueryService(&fakeEntryRepo{listed: []*domain.MarketEntry{entry("BTC")}}, &fakeRunRepo{}, nil)

	got, err := svc.GetMarket(context.Background(), " btc ")
	require.NoError(t, err)
	assert.Equal(t, "BTC", got.Symbol)

	_, err = svc.GetMarket(context.Background(), "doge")
	assert.ErrorIs(t, err, domain.ErrMarketEntryNotFound)
}

func TestLatestRun(t *testing.T) {
	runs := &fakeRunRepo{}
	svc := NewQueryService(&fakeEntryRepo{}, runs, nil)
	assert.Nil(t, svc.LatestRun(context.Background()))

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	run := domain.NewRefreshRun(domain.TriggerManual, "stub", start)
	run.Finish(domain.StatusSucceeded, nil, start.Add(1500*time.Millisecond))
	runs.saved = append(runs.saved, run)

	latest := svc.LatestRun(context.Background())
	require.NotNil(t, latest)
	assert.Equal(t, run.RunID, latest.RunID)
	assert.Equal(t, "succeeded", latest.Status)
	assert.Equal(t, int64(1500), latest.DurationMs)
}

func TestRefreshLogsDurationWithRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := logger.Get()
	logger.SetDefault(logger.New(buf, logger.Config{Level: "info", Format: "json"}))
	t.Cleanup(func() { logger.SetDefault(prev) })

	fetcher := &stubFetcher{result: &domain.FetchResult{Source: "stub", Drafts: []*domain.Draft{validDraft("btc")}}}
	svc := NewRefreshService(fetcher, &fakeEntryRepo{}, &fakeRunRepo{}, nil, nil, nil)
	run := svc.Refresh(context.Background(), domain.TriggerManual)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Refresh finished"`)
	assert.Contains(t, out, `"trace_id":"`+run.RunID+`"`)
	assert.Contains(t, out, `"duration"`)
}
