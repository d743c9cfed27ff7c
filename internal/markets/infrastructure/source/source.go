// Package source 实现远端行情数据源（JSON API 与 HTML 页面）
//
// 所有数据源遵循同一策略：传输失败或整体结构不符时返回空结果并记录日志，
// 单条数据缺字段或数值无法解析时跳过该条，其余条目照常返回。
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/config"
	"github.com/wyfcoding/coinboard/pkg/logger"
	"github.com/wyfcoding/coinboard/pkg/numeric"
)

const (
	NameCoinGecko     = "coingecko"
	NameCoinMarketCap = "coinmarketcap"
	NameHTML          = "html"
)

// Options 数据源参数，每次抓取使用相同的静态参数
type Options struct {
	// API 根地址或页面地址
	Endpoint string
	// API Key
	APIKey string
	// 计价货币，如 usd
	Currency string
	// 抓取条数
	Limit int
	// 排序方式，如 market_cap_desc
	Order string
	// 单次请求超时
	Timeout time.Duration
	// User-Agent
	UserAgent string
}

// OptionsFromConfig 由配置构造参数
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	return Options{
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Currency:  cfg.Currency,
		Limit:     cfg.Limit,
		Order:     cfg.Order,
		Timeout:   cfg.TimeoutDuration(),
		UserAgent: cfg.UserAgent,
	}
}

// New 根据配置创建数据源
func New(cfg config.ScraperConfig) (domain.Fetcher, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.Source {
	case NameCoinGecko:
		return NewCoinGecko(opts), nil
	case NameCoinMarketCap:
		return NewCoinMarketCap(opts), nil
	case NameHTML:
		return NewHTMLTable(opts), nil
	default:
		return nil, fmt.Errorf("unsupported scraper source: %s", cfg.Source)
	}
}

// newClient 创建共享配置的 HTTP 客户端，不做重试：每次刷新只尝试一次
func newClient(opts Options, accept string) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", accept)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return client
}

// get 执行一次 GET，非 2xx 视为传输失败
func get(ctx context.Context, req *resty.Request, url string) ([]byte, error) {
	resp, err := req.SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// failed 构造空结果并记录告警
func failed(ctx context.Context, source string, err error) *domain.FetchResult {
	logger.Warn(ctx, "Fetch failed, returning empty result", "source", source, "error", err)
	return &domain.FetchResult{Source: source, Err: err}
}

// skip 记录被跳过的条目
func skip(ctx context.Context, res *domain.FetchResult, index int, reason error) {
	res.Skipped++
	logger.Debug(ctx, "Skipping source item", "source", res.Source, "index", index, "reason", reason)
}

// decodeNumbers 解码 JSON，数字保留为 json.Number 以免丢失精度
func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// rawItem 列表中的单个条目，逐条解码以便单独跳过
type rawItem = json.RawMessage

// parseRank 解析排名，无法解析时为 0
func parseRank(v any) int {
	d, ok := numeric.Parse(v)
	if !ok || !d.IsPositive() {
		return 0
	}
	return int(d.IntPart())
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
