package http

import (
	"embed"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/coinboard/pkg/numeric"
)

//go:embed templates/*.html
var templateFS embed.FS

// ViewOptions 页面展示参数
type ViewOptions struct {
	Title    string
	Currency string         // 计价货币代码，如 usd
	Location *time.Location // 展示时区
}

// NewTemplate 解析内嵌模板并注册格式化函数
func NewTemplate(view ViewOptions) (*template.Template, error) {
	loc := view.Location
	if loc == nil {
		loc = time.UTC
	}
	glyph := numeric.CurrencySymbol(view.Currency)

	funcs := template.FuncMap{
		"price": func(d decimal.Decimal) string {
			return numeric.FormatPrice(d, glyph)
		},
		"compact": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return numeric.Placeholder
			}
			return glyph + numeric.FormatCompact(d)
		},
		"amount":  numeric.FormatCompact,
		"percent": numeric.FormatPercent,
		"trend": func(d decimal.NullDecimal) string {
			switch {
			case !d.Valid || d.Decimal.IsZero():
				return "flat"
			case d.Decimal.IsNegative():
				return "down"
			default:
				return "up"
			}
		},
		"localtime": func(t time.Time) string {
			if t.IsZero() {
				return numeric.Placeholder
			}
			return t.In(loc).Format("2006-01-02 15:04:05 MST")
		},
	}

	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
