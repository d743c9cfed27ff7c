// Package rdb 基于 GORM 的关系型存储实现（sqlite / mysql / postgres）
package rdb

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/coinboard/internal/markets/domain"
	"github.com/wyfcoding/coinboard/pkg/db"
)

// MarketEntryPO 行情条目数据库模型
// decimal 列在 mysql/postgres 上精确存储；sqlite 按 NUMERIC 亲和性存为 REAL，约 15 位有效数字
type MarketEntryPO struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`
	// 标识键，唯一索引保证同一资产只有一行
	Symbol            string              `gorm:"column:symbol;type:varchar(32);not null;uniqueIndex:uk_market_entries_symbol"`
	Name              string              `gorm:"column:name;type:varchar(128);not null;default:''"`
	IconURL           string              `gorm:"column:icon_url;type:varchar(512);not null;default:''"`
	Price             decimal.Decimal     `gorm:"column:price;type:decimal(38,12);not null"`
	PercentChange1h   decimal.NullDecimal `gorm:"column:percent_change_1h;type:decimal(20,8)"`
	PercentChange24h  decimal.NullDecimal `gorm:"column:percent_change_24h;type:decimal(20,8)"`
	PercentChange7d   decimal.NullDecimal `gorm:"column:percent_change_7d;type:decimal(20,8)"`
	MarketCap         decimal.NullDecimal `gorm:"column:market_cap;type:decimal(38,12);index:idx_market_entries_market_cap"`
	Volume24h         decimal.NullDecimal `gorm:"column:volume_24h;type:decimal(38,12)"`
	CirculatingSupply decimal.NullDecimal `gorm:"column:circulating_supply;type:decimal(38,12)"`
	SourceRank        int                 `gorm:"column:source_rank;not null;default:0"`
	Source            string              `gorm:"column:source;type:varchar(32);not null;default:''"`
	CreatedAt         time.Time           `gorm:"column:created_at;not null"`
	LastUpdated       time.Time           `gorm:"column:last_updated;not null"`
}

// TableName 指定表名
func (MarketEntryPO) TableName() string {
	return "market_entries"
}

// 冲突时覆盖的列，id、symbol、created_at 保持不变
var marketEntryMutableColumns = []string{
	"name",
	"icon_url",
	"price",
	"percent_change_1h",
	"percent_change_24h",
	"percent_change_7d",
	"market_cap",
	"volume_24h",
	"circulating_supply",
	"source_rank",
	"source",
	"last_updated",
}

// FromDraft 由草稿构造待写入的模型
func FromDraft(d *domain.Draft, now time.Time) *MarketEntryPO {
	return &MarketEntryPO{
		Symbol:            d.Key(),
		Name:              d.Name,
		IconURL:           d.IconURL,
		Price:             d.Price.Decimal,
		PercentChange1h:   d.PercentChange1h,
		PercentChange24h:  d.PercentChange24h,
		PercentChange7d:   d.PercentChange7d,
		MarketCap:         d.MarketCap,
		Volume24h:         d.Volume24h,
		CirculatingSupply: d.CirculatingSupply,
		SourceRank:        d.Rank,
		Source:            d.Source,
		CreatedAt:         now,
		LastUpdated:       now,
	}
}

// ToDomain 转换为领域对象
func (m *MarketEntryPO) ToDomain() *domain.MarketEntry {
	return &domain.MarketEntry{
		ID:                m.ID,
		Symbol:            m.Symbol,
		Name:              m.Name,
		IconURL:           m.IconURL,
		Price:             m.Price,
		PercentChange1h:   m.PercentChange1h,
		PercentChange24h:  m.PercentChange24h,
		PercentChange7d:   m.PercentChange7d,
		MarketCap:         m.MarketCap,
		Volume24h:         m.Volume24h,
		CirculatingSupply: m.CirculatingSupply,
		Rank:              m.SourceRank,
		Source:            m.Source,
		CreatedAt:         m.CreatedAt,
		LastUpdated:       m.LastUpdated,
	}
}

// RefreshRunPO 刷新报告数据库模型
type RefreshRunPO struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string    `gorm:"column:run_id;type:varchar(36);not null;uniqueIndex:uk_refresh_runs_run_id"`
	Trigger    string    `gorm:"column:trigger_type;type:varchar(16);not null"`
	Source     string    `gorm:"column:source;type:varchar(32);not null"`
	Status     string    `gorm:"column:status;type:varchar(16);not null;index:idx_refresh_runs_status"`
	Fetched    int       `gorm:"column:fetched;not null;default:0"`
	Skipped    int       `gorm:"column:skipped;not null;default:0"`
	Inserted   int       `gorm:"column:inserted;not null;default:0"`
	Updated    int       `gorm:"column:updated;not null;default:0"`
	Error      string    `gorm:"column:error;type:text"`
	StartedAt  time.Time `gorm:"column:started_at;not null;index:idx_refresh_runs_started_at"`
	FinishedAt time.Time `gorm:"column:finished_at;not null"`
}

// TableName 指定表名
func (RefreshRunPO) TableName() string {
	return "refresh_runs"
}

// FromRefreshRun 由领域对象构造模型
func FromRefreshRun(r *domain.RefreshRun) *RefreshRunPO {
	return &RefreshRunPO{
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
	}
}

// ToDomain 转换为领域对象
func (m *RefreshRunPO) ToDomain() *domain.RefreshRun {
	return &domain.RefreshRun{
		RunID:      m.RunID,
		Trigger:    domain.RefreshTrigger(m.Trigger),
		Source:     m.Source,
		Status:     domain.RefreshStatus(m.Status),
		Fetched:    m.Fetched,
		Skipped:    m.Skipped,
		Inserted:   m.Inserted,
		Updated:    m.Updated,
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(database *db.DB) error {
	return database.AutoMigrate(&MarketEntryPO{}, &RefreshRunPO{})
}
