package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/numeric"
)

const cmcLogoURL = "https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png"

// cmcListing /v1/cryptocurrency/listings/latest 的响应
type cmcListing struct {
	Status *struct {
		ErrorCode    any    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data []rawItem `json:"data"`
}

// cmcCoin 单个条目，报价按计价货币嵌套在 quote 下
type cmcCoin struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Symbol            string              `json:"symbol"`
	CMCRank           any                 `json:"cmc_rank"`
	CirculatingSupply any                 `json:"circulating_supply"`
	Quote             map[string]cmcQuote `json:"quote"`
}

type cmcQuote struct {
	Price            any `json:"price"`
	Volume24h        any `json:"volume_24h"`
	PercentChange1h  any `json:"percent_change_1h"`
	PercentChange24h any `json:"percent_change_24h"`
	PercentChange7d  any `json:"percent_change_7d"`
	MarketCap        any `json:"market_cap"`
}

// CoinMarketCap 基于 CoinMarketCap Pro API 的数据源
type CoinMarketCap struct {
	opts   Options
	client *resty.Client
}

// NewCoinMarketCap 创建 CoinMarketCap 数据源
func NewCoinMarketCap(opts Options) *CoinMarketCap {
	return &CoinMarketCap{opts: opts, client: newClient(opts, "application/json")}
}

// Name 数据源名称
func (s *CoinMarketCap) Name() string {
	return NameCoinMarketCap
}

// Fetch 抓取最新榜单
func (s *CoinMarketCap) Fetch(ctx context.Context) *domain.FetchResult {
	sort, dir := splitOrder(s.opts.Order)
	req := s.client.R().
		SetHeader("X-CMC_PRO_API_KEY", s.opts.APIKey).
		SetQueryParams(map[string]string{
			"start":    "1",
			"limit":    strconv.Itoa(s.opts.Limit),
			"convert":  s.convert(),
			"sort":     sort,
			"sort_dir": dir,
		})

	body, err := get(ctx, req, joinURL(s.opts.Endpoint, "/v1/cryptocurrency/listings/latest"))
	if err != nil {
		return failed(ctx, NameCoinMarketCap, err)
	}

	var listing cmcListing
	if err := decodeNumbers(body, &listing); err != nil {
		return failed(ctx, NameCoinMarketCap, fmt.Errorf("unexpected response shape: %w", err))
	}
	if listing.Data == nil {
		msg := "missing data field"
		if listing.Status != nil && listing.Status.ErrorMessage != "" {
			msg = listing.Status.ErrorMessage
		}
		return failed(ctx, NameCoinMarketCap, errors.New(msg))
	}

	res := &domain.FetchResult{Source: NameCoinMarketCap, Drafts: make([]*domain.Draft, 0, len(listing.Data))}
	for i, raw := range listing.Data {
		var coin cmcCoin
		if err := decodeNumbers(raw, &coin); err != nil {
			skip(ctx, res, i, err)
			continue
		}
		d, err := coin.toDraft(s.convert())
		if err != nil {
			skip(ctx, res, i, err)
			continue
		}
		res.Drafts = append(res.Drafts, d)
	}
	return res
}

func (s *CoinMarketCap) convert() string {
	if s.opts.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(s.opts.Currency)
}

func (c *cmcCoin) toDraft(convert string) (*domain.Draft, error) {
	symbol := domain.NormalizeSymbol(c.Symbol)
	if symbol == "" {
		return nil, domain.ErrEmptySymbol
	}
	quote, ok := c.Quote[convert]
	if !ok {
		return nil, fmt.Errorf("%s: no %s quote", symbol, convert)
	}
	price := numeric.ParseOptional(quote.Price)
	if !price.Valid {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrMissingPrice)
	}

	name := c.Name
	if name == "" {
		name = symbol
	}
	var icon string
	if c.ID > 0 {
		icon = fmt.Sprintf(cmcLogoURL, c.ID)
	}

	d := &domain.Draft{
		Symbol:            symbol,
		Name:              name,
		IconURL:           icon,
		Price:             price,
		PercentChange1h:   numeric.ParseOptional(quote.PercentChange1h),
		PercentChange24h:  numeric.ParseOptional(quote.PercentChange24h),
		PercentChange7d:   numeric.ParseOptional(quote.PercentChange7d),
		MarketCap:         numeric.ParseOptional(quote.MarketCap),
		Volume24h:         numeric.ParseOptional(quote.Volume24h),
		CirculatingSupply: numeric.ParseOptional(c.CirculatingSupply),
		Rank:              parseRank(c.CMCRank),
		Source:            NameCoinMarketCap,
	}
	// 无法持久化的条目（如负价格）单独跳过
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// splitOrder 把 market_cap_desc 拆成 CoinMarketCap 的 sort 与 sort_dir
func splitOrder(order string) (string, string) {
	if order == "" {
		return "market_cap", "desc"
	}
	if i := strings.LastIndex(order, "_"); i > 0 {
		switch dir := order[i+1:]; dir {
		case "asc", "desc":
			return order[:i], dir
		}
	}
	return order, "desc"
}
