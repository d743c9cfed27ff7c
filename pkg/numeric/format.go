package numeric

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Placeholder 缺失值的展示占位符
const Placeholder = "—"

var compactUnits = []struct {
	exp    int32
	suffix string
}{
	{12, "T"},
	{9, "B"},
	{6, "M"},
	{3, "K"},
}

// FormatCompact 以 K/M/B/T 后缀展示，例如 1200000000000 -> "1.2T"
func FormatCompact(d decimal.NullDecimal) string {
	if !d.Valid {
		return Placeholder
	}
	abs := d.Decimal.Abs()
	for _, u := range compactUnits {
		if abs.GreaterThanOrEqual(decimal.New(1, u.exp)) {
			return trimNumber(d.Decimal.Shift(-u.exp).Round(2)) + u.suffix
		}
	}
	return trimNumber(d.Decimal.Round(2))
}

// FormatPrice 以千分位展示价格，小于 1 的价格保留更多位数
func FormatPrice(d decimal.Decimal, symbol string) string {
	digits := 2
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		digits = 8
	}
	f, _ := d.Round(int32(digits)).Float64()
	return symbol + humanize.CommafWithDigits(f, digits)
}

// FormatPercent 带符号的百分比，例如 "+1.23%"
func FormatPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return Placeholder
	}
	s := d.Decimal.StringFixed(2)
	if d.Decimal.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

func trimNumber(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

var currencyGlyphs = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"cny": "¥",
	"krw": "₩",
	"inr": "₹",
	"btc": "₿",
}

// CurrencySymbol 返回计价货币的展示符号，未知货币返回大写代码加空格
func CurrencySymbol(code string) string {
	if g, ok := currencyGlyphs[strings.ToLower(code)]; ok {
		return g
	}
	if code == "" {
		return ""
	}
	return strings.ToUpper(code) + " "
}
