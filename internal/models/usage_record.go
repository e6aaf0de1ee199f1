package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageRecord is the immutable snapshot of one billed request.
type UsageRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID string `gorm:"type:text;not null;index"` // Billed account ID.
	Nickname  string `gorm:"type:text;not null"`       // Account display name at billing time.

	ModelName string `gorm:"type:text;not null;index"` // Billed model.

	InputTokens  int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Output token count.

	Cost         decimal.Decimal `gorm:"type:decimal(16,4);not null"` // Total charge including surcharge.
	BalanceAfter decimal.Decimal `gorm:"type:decimal(16,4);not null"` // Debited pool balance after this charge.

	UseTime time.Time `gorm:"not null;autoCreateTime;index"` // Billing timestamp.
}

// TableName overrides the default table name.
func (UsageRecord) TableName() string {
	return "usage_records"
}
