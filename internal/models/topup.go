package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Top-up target types.
const (
	// TopupTargetUser marks a personal balance change.
	TopupTargetUser = "USER"
	// TopupTargetGroup marks a group balance change.
	TopupTargetGroup = "GROUP"
)

// Topup records an administrative balance change applied outside settlement.
type Topup struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TargetID   string `gorm:"type:text;not null;index"` // Account or group ID.
	TargetType string `gorm:"type:text;not null"`       // USER or GROUP.

	Amount decimal.Decimal `gorm:"type:decimal(16,4);not null"` // Signed delta applied.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (Topup) TableName() string {
	return "topup_history"
}
