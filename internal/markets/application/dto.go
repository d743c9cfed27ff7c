package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
)

// MarketEntryDTO 行情条目 DTO
// 可选数值为空时序列化为 null
type MarketEntryDTO struct {
	Position          int                 `json:"position"` // 榜单中的位置，从 1 开始
	Symbol            string              `json:"symbol"`
	Name              string              `json:"name"`
	IconURL           string              `json:"icon_url,omitempty"`
	Price             decimal.Decimal     `json:"price"`
	PercentChange1h   decimal.NullDecimal `json:"percent_change_1h"`
	PercentChange24h  decimal.NullDecimal `json:"percent_change_24h"`
	PercentChange7d   decimal.NullDecimal `json:"percent_change_7d"`
	MarketCap         decimal.NullDecimal `json:"market_cap"`
	Volume24h         decimal.NullDecimal `json:"volume_24h"`
	CirculatingSupply decimal.NullDecimal `json:"circulating_supply"`
	Rank              int                 `json:"rank,omitempty"` // 数据源给出的排名
	Source            string              `json:"source"`
	LastUpdated       time.Time           `json:"last_updated"`
}

// RefreshRunDTO 刷新报告 DTO
type RefreshRunDTO struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`
	Skipped    int       `json:"skipped"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

func toMarketEntryDTO(e *domain.MarketEntry, position int) *MarketEntryDTO {
	return &MarketEntryDTO{
		Position:          position,
		Symbol:            e.Symbol,
		Name:              e.Name,
		IconURL:           e.IconURL,
		Price:             e.Price,
		PercentChange1h:   e.PercentChange1h,
		PercentChange24h:  e.PercentChange24h,
		PercentChange7d:   e.PercentChange7d,
		MarketCap:         e.MarketCap,
		Volume24h:         e.Volume24h,
		CirculatingSupply: e.CirculatingSupply,
		Rank:              e.Rank,
		Source:            e.Source,
		LastUpdated:       e.LastUpdated,
	}
}

// ToRefreshRunDTO 转换刷新报告
func ToRefreshRunDTO(r *domain.RefreshRun) *RefreshRunDTO {
	return &RefreshRunDTO{
		RunID:      r.RunID,
		Trigger:    string(r.Trigger),
		Source:     r.Source,
		Status:     string(r.Status),
		Fetched:    r.Fetched,
		Skipped:    r.Skipped,
		Inserted:   r.Inserted,
		Updated:    r.Updated,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
	}
}
