package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/numeric"
)

// 列类型
type column int

const (
	colRank column = iota
	colName
	colSymbol
	colPrice
	colChange1h
	colChange24h
	colChange7d
	colMarketCap
	colVolume
	colSupply
)

// 表头规整后（小写、仅保留字母数字）到列类型的映射
var headerColumns = map[string]column{
	"rank":              colRank,
	"name":              colName,
	"coin":              colName,
	"symbol":            colSymbol,
	"price":             colPrice,
	"1h":                colChange1h,
	"24h":               colChange24h,
	"7d":                colChange7d,
	"marketcap":         colMarketCap,
	"volume24h":         colVolume,
	"24hvolume":         colVolume,
	"volume":            colVolume,
	"circulatingsupply": colSupply,
}

// HTMLTable 从行情页面的表格中解析条目，按表头名称定位列
type HTMLTable struct {
	opts   Options
	client *resty.Client
}

// NewHTMLTable 创建 HTML 表格数据源
func NewHTMLTable(opts Options) *HTMLTable {
	return &HTMLTable{opts: opts, client: newClient(opts, "text/html,application/xhtml+xml")}
}

// Name 数据源名称
func (s *HTMLTable) Name() string {
	return NameHTML
}

// Fetch 抓取页面并逐行解析，单行失败只跳过该行
func (s *HTMLTable) Fetch(ctx context.Context) *domain.FetchResult {
	body, err := get(ctx, s.client.R(), s.opts.Endpoint)
	if err != nil {
		return failed(ctx, NameHTML, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return failed(ctx, NameHTML, fmt.Errorf("parse html: %w", err))
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return failed(ctx, NameHTML, errors.New("no table found"))
	}

	cols := headerIndex(table)
	if _, ok := cols[colPrice]; !ok {
		return failed(ctx, NameHTML, errors.New("price column not found"))
	}
	_, hasName := cols[colName]
	_, hasSymbol := cols[colSymbol]
	if !hasName && !hasSymbol {
		return failed(ctx, NameHTML, errors.New("name column not found"))
	}

	rows := table.Find("tbody tr")
	res := &domain.FetchResult{Source: NameHTML, Drafts: make([]*domain.Draft, 0, rows.Length())}
	rows.Each(func(i int, row *goquery.Selection) {
		if row.Find("td").Length() == 0 {
			return
		}
		if s.opts.Limit > 0 && len(res.Drafts) >= s.opts.Limit {
			return
		}
		d, err := parseRow(row.Find("td"), cols)
		if err != nil {
			skip(ctx, res, i, err)
			return
		}
		res.Drafts = append(res.Drafts, d)
	})
	return res
}

// headerIndex 读取表头，返回列类型到单元格下标的映射
func headerIndex(table *goquery.Selection) map[column]int {
	headers := table.Find("thead th")
	if headers.Length() == 0 {
		headers = table.Find("tr").First().Find("th")
	}

	cols := make(map[column]int)
	headers.Each(func(i int, th *goquery.Selection) {
		text := strings.TrimSpace(th.Text())
		if text == "#" {
			cols[colRank] = i
			return
		}
		if c, ok := headerColumns[normalizeHeader(text)]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	})
	return cols
}

func normalizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func parseRow(cells *goquery.Selection, cols map[column]int) (*domain.Draft, error) {
	cell := func(c column) *goquery.Selection {
		i, ok := cols[c]
		if !ok || i >= cells.Length() {
			return nil
		}
		return cells.Eq(i)
	}
	text := func(c column) string {
		if sel := cell(c); sel != nil {
			return strings.TrimSpace(sel.Text())
		}
		return ""
	}

	name, symbol, icon := nameCell(cell(colName))
	if s := text(colSymbol); s != "" {
		symbol = s
	}
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.ErrEmptySymbol
	}
	if name == "" {
		name = symbol
	}

	price := numeric.ParseOptional(text(colPrice))
	if !price.Valid {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrMissingPrice)
	}

	d := &domain.Draft{
		Symbol:            symbol,
		Name:              name,
		IconURL:           icon,
		Price:             price,
		PercentChange1h:   numeric.ParseOptional(text(colChange1h)),
		PercentChange24h:  numeric.ParseOptional(text(colChange24h)),
		PercentChange7d:   numeric.ParseOptional(text(colChange7d)),
		MarketCap:         numeric.ParseOptional(text(colMarketCap)),
		Volume24h:         numeric.ParseOptional(stripUnit(text(colVolume))),
		CirculatingSupply: numeric.ParseOptional(stripUnit(text(colSupply))),
		Rank:              parseRank(text(colRank)),
		Source:            NameHTML,
	}
	// 无法持久化的条目（如负价格）单独跳过
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// nameCell 解析名称单元格，兼容 "Bitcoin BTC" 与带 symbol 子元素的两种结构
func nameCell(sel *goquery.Selection) (name, symbol, icon string) {
	if sel == nil {
		return "", "", ""
	}
	icon, _ = sel.Find("img").First().Attr("src")

	if sym := sel.Find("[class*=symbol]").First(); sym.Length() > 0 {
		symbol = strings.TrimSpace(sym.Text())
		if n := sel.Find("[class*=name]").First(); n.Length() > 0 {
			name = strings.TrimSpace(n.Text())
		} else {
			name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sel.Text()), symbol))
		}
		return name, symbol, icon
	}

	fields := strings.Fields(sel.Text())
	if len(fields) == 0 {
		return "", "", icon
	}
	if last := fields[len(fields)-1]; len(fields) > 1 && isTicker(last) {
		return strings.Join(fields[:len(fields)-1], " "), last, icon
	}
	return strings.Join(fields, " "), "", icon
}

func isTicker(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// stripUnit 去掉数值后面的币种单位，例如 "19.6M BTC" -> "19.6M"
// 单个字母的尾部视为数量级后缀保留
func stripUnit(s string) string {
	fields := strings.Fields(s)
	if n := len(fields); n > 1 && len(fields[n-1]) > 1 && isTicker(fields[n-1]) {
		return strings.Join(fields[:n-1], "")
	}
	return s
}
