package application_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/coinboard/internal/markets/application"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/internal/markets/infrastructure/persistence/rdb"
	"github.com/wyfcoding/coinboard/internal/markets/infrastructure/source"
	"github.com/wyfcoding/coinboard/pkg/db"
)

type harness struct {
	status  atomic.Int32
	body    atomic.Value
	refresh *application.RefreshService
	query   *application.QueryService
}

// newHarness 组装真实的 CoinGecko 抓取器、sqlite 存储与两个服务
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.status.Store(http.StatusOK)
	h.body.Store(`[]`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(h.status.Load()))
		w.Write([]byte(h.body.Load().(string)))
	}))
	t.Cleanup(srv.Close)

	database, err := db.Init(db.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "coinboard.db"),
	})
	require.NoError(t, err)
	require.NoError(t, rdb.AutoMigrate(database))
	t.Cleanup(func() { database.Close() })

	fetcher := source.NewCoinGecko(source.Options{
		Endpoint: srv.URL,
		Currency: "usd",
		Limit:    5,
		Order:    "market_cap_desc",
		Timeout:  2 * time.Second,
	})
	entries := rdb.NewMarketEntryRepository(database)
	runs := rdb.NewRefreshRunRepository(database)

	h.refresh = application.NewRefreshService(fetcher, entries, runs, nil, nil, nil)
	h.query = application.NewQueryService(entries, runs, nil)
	return h
}

func TestRefreshThenListCompactMarketCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.body.Store(`[{"symbol":"btc","current_price":50000,"market_cap":"1.2T"}]`)

	run := h.refresh.Refresh(ctx, domain.TriggerManual)
	require.Equal(t, domain.StatusSucceeded, run.Status, run.Error)
	assert.Equal(t, 1, run.Inserted)

	rows := h.query.ListMarkets(ctx)
	require.Len(t, rows, 1)
	assert.Equal(t, "BTC", rows[0].Symbol)
	assert.True(t, rows[0].Price.Equal(decimal.NewFromInt(50000)))
	require.True(t, rows[0].MarketCap.Valid)
	assert.True(t, rows[0].MarketCap.Decimal.Equal(decimal.NewFromInt(1_200_000_000_000)))

	latest := h.query.LatestRun(ctx)
	require.NotNil(t, latest)
	assert.Equal(t, run.RunID, latest.RunID)
}

func TestRefreshTwiceUpdatesInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.body.Store(`[
		{"symbol":"btc","name":"Bitcoin","current_price":50000,"market_cap":1000},
		{"symbol":"eth","name":"Ethereum","current_price":3000,"market_cap":2000}
	]`)
	first := h.refresh.Refresh(ctx, domain.TriggerManual)
	require.True(t, first.Succeeded(), first.Error)
	assert.Equal(t, 2, first.Inserted)

	h.body.Store(`[
		{"symbol":"btc","name":"Bitcoin","current_price":51000,"market_cap":3000},
		{"symbol":"sol","name":"Solana","current_price":150,"market_cap":null}
	]`)
	second := h.refresh.Refresh(ctx, domain.TriggerScheduled)
	require.True(t, second.Succeeded(), second.Error)
	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Updated)

	rows := h.query.ListMarkets(ctx)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, []string{rows[0].Symbol, rows[1].Symbol, rows[2].Symbol})
	assert.True(t, rows[0].Price.Equal(decimal.NewFromInt(51000)))
	assert.False(t, rows[2].MarketCap.Valid)
}

func TestRefreshUpstreamOutageKeepsPreviousData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.body.Store(`[{"symbol":"btc","current_price":50000,"market_cap":1000}]`)
	require.True(t, h.refresh.Refresh(ctx, domain.TriggerManual).Succeeded())
	before := h.query.ListMarkets(ctx)

	h.status.Store(http.StatusServiceUnavailable)
	h.body.Store(`{"error":"maintenance"}`)
	run := h.refresh.Refresh(ctx, domain.TriggerManual)

	assert.Equal(t, domain.StatusFetchEmpty, run.Status)
	assert.NotEmpty(t, run.Error)

	after := h.query.ListMarkets(ctx)
	require.Len(t, after, len(before))
	assert.Equal(t, before[0].Symbol, after[0].Symbol)
	assert.True(t, before[0].Price.Equal(after[0].Price))
	assert.Equal(t, before[0].LastUpdated.Unix(), after[0].LastUpdated.Unix())

	runs, err := h.query.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "fetch_empty", runs[0].Status)
}

func TestRefreshSkipsBadItemsWithoutBlockingBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.body.Store(`[
		{"symbol":"btc","current_price":50000,"market_cap":1000},
		{"symbol":"bad","current_price":-1},
		{"symbol":"eth","current_price":3000,"market_cap":1e50000000}
	]`)

	run := h.refresh.Refresh(ctx, domain.TriggerManual)
	require.Equal(t, domain.StatusSucceeded, run.Status, run.Error)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 2, run.Inserted)

	rows := h.query.ListMarkets(ctx)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTC", rows[0].Symbol)
	assert.Equal(t, "ETH", rows[1].Symbol)
	// 超出范围的市值视为缺失
	assert.False(t, rows[1].MarketCap.Valid)
}
