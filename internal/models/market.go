package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type MarketTag struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// Market is the canonical market row. ConditionID is the business key; ID is the surrogate.
type Market struct {
	ID          uint64           `gorm:"primaryKey;autoIncrement"`
	ConditionID string           `gorm:"type:text;uniqueIndex;not null;comment:upstream condition id"`
	ExternalID  *string          `gorm:"type:text;index;comment:gamma market id"`
	Question    string           `gorm:"type:text;not null"`
	Description *string          `gorm:"type:text"`
	Slug        *string          `gorm:"type:text;index"`
	StartDate   *time.Time       `gorm:"type:timestamptz"`
	EndDate     *time.Time       `gorm:"type:timestamptz"`
	Outcomes    datatypes.JSON   `gorm:"type:jsonb;not null;comment:ordered [{name,price}]"`
	Volume      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Liquidity   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Active      bool             `gorm:"not null;default:true;index"`
	Closed      bool             `gorm:"not null;default:false;index"`
	Archived    bool             `gorm:"not null;default:false"`
	Category    *string          `gorm:"type:text"`
	Tags        datatypes.JSON   `gorm:"type:jsonb"`
	ImageURL    *string          `gorm:"type:text"`

	LastSyncedAt time.Time      `gorm:"type:timestamptz;not null"`
	CreatedAt    time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"type:timestamptz;autoUpdateTime"`
	RawJSON      datatypes.JSON `gorm:"type:jsonb"`
}

func (Market) TableName() string {
	return "markets"
}

func (m Market) OutcomeList() []Outcome {
	if len(m.Outcomes) == 0 {
		return nil
	}
	var out []Outcome
	if err := json.Unmarshal(m.Outcomes, &out); err != nil {
		return nil
	}
	return out
}

func (m Market) TagList() []MarketTag {
	if len(m.Tags) == 0 {
		return nil
	}
	var out []MarketTag
	if err := json.Unmarshal(m.Tags, &out); err != nil {
		return nil
	}
	return out
}

// YesNoPrices picks the "Yes" outcome price (first outcome when there is no "Yes") and
// the "No" price, which defaults to 1-yes when absent.
func YesNoPrices(outcomes []Outcome) (yes float64, no float64, ok bool) {
	if len(outcomes) == 0 {
		return 0, 0, false
	}
	yesIdx := -1
	noIdx := -1
	for i, o := range outcomes {
		switch strings.ToLower(strings.TrimSpace(o.Name)) {
		case "yes":
			if yesIdx < 0 {
				yesIdx = i
			}
		case "no":
			if noIdx < 0 {
				noIdx = i
			}
		}
	}
	if yesIdx < 0 {
		yesIdx = 0
	}
	yes = outcomes[yesIdx].Price
	if noIdx >= 0 && noIdx != yesIdx {
		no = outcomes[noIdx].Price
	} else {
		no = 1 - yes
	}
	return yes, no, true
}
