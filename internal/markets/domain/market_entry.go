// Package domain 包含行情榜单服务的领域模型、值对象、仓储与外部协作者接口
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptySymbol 标识键为空
	ErrEmptySymbol = errors.New("market entry symbol is empty")
	// ErrMissingPrice 缺少价格
	ErrMissingPrice = errors.New("market entry price is missing")
	// ErrNegativePrice 价格为负
	ErrNegativePrice = errors.New("market entry price is negative")
	// ErrMarketEntryNotFound 条目不存在
	ErrMarketEntryNotFound = errors.New("market entry not found")
)

// NormalizeSymbol 规整标识键：去除首尾空白并转为大写
// 所有读写路径都必须经过该函数，保证同一资产只对应一行
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MarketEntry 行情条目实体
// 代表一个被跟踪资产的当前状态，每次刷新原地覆盖，不保留历史
type MarketEntry struct {
	// 主键
	ID uint
	// 标识键（交易符号，如 BTC）
	Symbol string
	// 展示名称
	Name string
	// 图标地址（可选）
	IconURL string
	// 当前价格
	Price decimal.Decimal
	// 1 小时涨跌幅（%）
	PercentChange1h decimal.NullDecimal
	// 24 小时涨跌幅（%）
	PercentChange24h decimal.NullDecimal
	// 7 天涨跌幅（%）
	PercentChange7d decimal.NullDecimal
	// 市值
	MarketCap decimal.NullDecimal
	// 24 小时成交额
	Volume24h decimal.NullDecimal
	// 流通量
	CirculatingSupply decimal.NullDecimal
	// 数据源给出的排名，0 表示未知
	Rank int
	// 最后一次写入的数据源
	Source string
	// 创建时间，更新时不覆盖
	CreatedAt time.Time
	// 最后更新时间，每次写入都会刷新
	LastUpdated time.Time
}

// UpsertResult 一次批量写入的结果
type UpsertResult struct {
	// 新插入的条目数
	Inserted int
	// 覆盖更新的条目数
	Updated int
}

// Total 写入总数
func (r *UpsertResult) Total() int {
	return r.Inserted + r.Updated
}
