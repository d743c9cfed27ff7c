package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/numeric"
)

// coinGeckoCoin /coins/markets 返回的单个条目
// 数值字段声明为 any：上游可能给出数字、null 或带后缀的字符串
type coinGeckoCoin struct {
	ID                string `json:"id"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Image             string `json:"image"`
	CurrentPrice      any    `json:"current_price"`
	MarketCap         any    `json:"market_cap"`
	MarketCapRank     any    `json:"market_cap_rank"`
	TotalVolume       any    `json:"total_volume"`
	CirculatingSupply any    `json:"circulating_supply"`
	Change1h          any    `json:"price_change_percentage_1h_in_currency"`
	Change24h         any    `json:"price_change_percentage_24h_in_currency"`
	Change24hFallback any    `json:"price_change_percentage_24h"`
	Change7d          any    `json:"price_change_percentage_7d_in_currency"`
}

// CoinGecko 基于 CoinGecko /coins/markets 的数据源
type CoinGecko struct {
	opts   Options
	client *resty.Client
}

// NewCoinGecko 创建 CoinGecko 数据源
func NewCoinGecko(opts Options) *CoinGecko {
	return &CoinGecko{opts: opts, client: newClient(opts, "application/json")}
}

// Name 数据源名称
func (s *CoinGecko) Name() string {
	return NameCoinGecko
}

// Fetch 抓取一页行情
func (s *CoinGecko) Fetch(ctx context.Context) *domain.FetchResult {
	req := s.client.R().SetQueryParams(map[string]string{
		"vs_currency":             s.opts.Currency,
		"order":                   s.opts.Order,
		"per_page":                strconv.Itoa(s.opts.Limit),
		"page":                    "1",
		"price_change_percentage": "1h,24h,7d",
	})
	if s.opts.APIKey != "" {
		req.SetHeader("x-cg-demo-api-key", s.opts.APIKey)
	}

	body, err := get(ctx, req, joinURL(s.opts.Endpoint, "/coins/markets"))
	if err != nil {
		return failed(ctx, NameCoinGecko, err)
	}

	var items []rawItem
	if err := decodeNumbers(body, &items); err != nil {
		return failed(ctx, NameCoinGecko, fmt.Errorf("unexpected response shape: %w", err))
	}

	res := &domain.FetchResult{Source: NameCoinGecko, Drafts: make([]*domain.Draft, 0, len(items))}
	for i, raw := range items {
		var coin coinGeckoCoin
		if err := decodeNumbers(raw, &coin); err != nil {
			skip(ctx, res, i, err)
			continue
		}
		d, err := coin.toDraft()
		if err != nil {
			skip(ctx, res, i, err)
			continue
		}
		res.Drafts = append(res.Drafts, d)
	}
	return res
}

func (c *coinGeckoCoin) toDraft() (*domain.Draft, error) {
	symbol := domain.NormalizeSymbol(c.Symbol)
	if symbol == "" {
		return nil, domain.ErrEmptySymbol
	}
	price := numeric.ParseOptional(c.CurrentPrice)
	if !price.Valid {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrMissingPrice)
	}

	change24h := numeric.ParseOptional(c.Change24h)
	if !change24h.Valid {
		change24h = numeric.ParseOptional(c.Change24hFallback)
	}

	name := c.Name
	if name == "" {
		name = symbol
	}

	d := &domain.Draft{
		Symbol:            symbol,
		Name:              name,
		IconURL:           c.Image,
		Price:             price,
		PercentChange1h:   numeric.ParseOptional(c.Change1h),
		PercentChange24h:  change24h,
		PercentChange7d:   numeric.ParseOptional(c.Change7d),
		MarketCap:         numeric.ParseOptional(c.MarketCap),
		Volume24h:         numeric.ParseOptional(c.TotalVolume),
		CirculatingSupply: numeric.ParseOptional(c.CirculatingSupply),
		Rank:              parseRank(c.MarketCapRank),
		Source:            NameCoinGecko,
	}
	// 无法持久化的条目（如负价格）单独跳过
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
