package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Draft 规整后、尚未持久化的行情条目
type Draft struct {
	Symbol            string
	Name              string
	IconURL           string
	Price             decimal.NullDecimal
	PercentChange1h   decimal.NullDecimal
	PercentChange24h  decimal.NullDecimal
	PercentChange7d   decimal.NullDecimal
	MarketCap         decimal.NullDecimal
	Volume24h         decimal.NullDecimal
	CirculatingSupply decimal.NullDecimal
	Rank              int
	Source            string
}

// Validate 校验草稿可以被持久化：标识键非空且价格存在
func (d *Draft) Validate() error {
	if NormalizeSymbol(d.Symbol) == "" {
		return ErrEmptySymbol
	}
	if !d.Price.Valid {
		return fmt.Errorf("%s: %w", d.Symbol, ErrMissingPrice)
	}
	if d.Price.Decimal.IsNegative() {
		return fmt.Errorf("%s: %w", d.Symbol, ErrNegativePrice)
	}
	return nil
}

// Key 返回规整后的标识键
func (d *Draft) Key() string {
	return NormalizeSymbol(d.Symbol)
}

// Dedupe 按标识键去重，同一键出现多次时后出现的草稿生效，保留首次出现的位置
func Dedupe(drafts []*Draft) []*Draft {
	out := make([]*Draft, 0, len(drafts))
	pos := make(map[string]int, len(drafts))
	for _, d := range drafts {
		if d == nil {
			continue
		}
		k := d.Key()
		if i, ok := pos[k]; ok {
			out[i] = d
			continue
		}
		pos[k] = len(out)
		out = append(out, d)
	}
	return out
}
