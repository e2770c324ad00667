package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryPoint is append-only. (market_id, timestamp) is unique so a retried sync
// inside the same timestamp bucket collides instead of double counting.
type PriceHistoryPoint struct {
	ID          uint64           `gorm:"primaryKey;autoIncrement"`
	MarketID    uint64           `gorm:"not null;uniqueIndex:uniq_price_history_market_ts,priority:1"`
	ConditionID string           `gorm:"type:text;not null;index"`
	PriceYes    float64          `gorm:"not null"`
	PriceNo     float64          `gorm:"not null"`
	Volume      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Liquidity   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Timestamp   time.Time        `gorm:"type:timestamptz;not null;uniqueIndex:uniq_price_history_market_ts,priority:2;index"`
}

func (PriceHistoryPoint) TableName() string {
	return "market_price_history"
}

func (p PriceHistoryPoint) VolumeFloat() float64 {
	if p.Volume == nil {
		return 0
	}
	return p.Volume.InexactFloat64()
}
