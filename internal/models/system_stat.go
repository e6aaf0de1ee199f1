package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatKeyGlobalUsage is the system_stats key holding the cumulative spend
// counter. It is a cache over SUM(usage_records.cost) and is re-derivable via
// reconciliation.
const StatKeyGlobalUsage = "global_usage_total"

// SystemStat stores a named decimal aggregate.
type SystemStat struct {
	Key string `gorm:"type:text;primaryKey"` // Stat identifier.

	ValueDecimal decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0"` // Current value.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (SystemStat) TableName() string {
	return "system_stats"
}
