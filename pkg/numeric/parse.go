// Package numeric 把抓取到的原始字段（带货币符号、千分位、百分号、K/M/B/T 后缀的字符串或原生数字）
// 规整为 decimal，并提供反向的展示格式化。
//
// 解析函数是全函数：任何输入都不会 panic，无法解析时返回 ok=false。
package numeric

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// 被剥离的货币符号
const currencySymbols = "$€£¥₩₿₹"

var (
	plainNumber = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

	suffixExp = map[rune]int32{
		'K': 3,
		'M': 6,
		'B': 9,
		'T': 12,
	}
)

// maxExponent 可接受的数量级上限，超出范围（如 1e50000000）视为无法解析
const maxExponent = 64

// Parse 把任意原始值转换为 decimal
func Parse(v any) (decimal.Decimal, bool) {
	d, ok := parse(v)
	if !ok {
		return decimal.Zero, false
	}
	return bounded(d)
}

// bounded 拒绝整数位或小数位超过 maxExponent 的值
func bounded(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	exp := int(d.Exponent())
	if exp < -maxExponent || exp > maxExponent || d.NumDigits()+exp > maxExponent {
		return decimal.Zero, false
	}
	return d, true
}

func parse(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case decimal.NullDecimal:
		return x.Decimal, x.Valid
	case string:
		return ParseString(x)
	case *string:
		if x == nil {
			return decimal.Zero, false
		}
		return ParseString(*x)
	case json.Number:
		return ParseString(string(x))
	case float64:
		return fromFloat(x)
	case *float64:
		if x == nil {
			return decimal.Zero, false
		}
		return fromFloat(*x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int8:
		return decimal.NewFromInt(int64(x)), true
	case int16:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return fromUint(uint64(x))
	case uint16:
		return fromUint(uint64(x))
	case uint32:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	default:
		return decimal.Zero, false
	}
}

// ParseOptional 用于可选字段，无法解析时返回 Valid=false
func ParseOptional(v any) decimal.NullDecimal {
	d, ok := Parse(v)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// ParseString 解析字符串，例如 "$1,234.5"、"-0.42%"、"1.2T"、"€ 3.4 b"
func ParseString(raw string) (decimal.Decimal, bool) {
	d, ok := parseString(raw)
	if !ok {
		return decimal.Zero, false
	}
	return bounded(d)
}

func parseString(raw string) (decimal.Decimal, bool) {
	s := strings.Map(func(r rune) rune {
		switch {
		case r == ',' || r == '_' || r == '%':
			return -1
		case unicode.IsSpace(r):
			return -1
		case strings.ContainsRune(currencySymbols, r):
			return -1
		case r == '−': // 排版用的减号
			return '-'
		}
		return r
	}, raw)
	if s == "" {
		return decimal.Zero, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, false
	}

	var exp int32
	last := unicode.ToUpper(rune(s[len(s)-1]))
	if e, ok := suffixExp[last]; ok {
		exp = e
		s = s[:len(s)-1]
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp != 0 {
		d = d.Shift(exp)
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromUint(u uint64) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strconv.FormatUint(u, 10))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
