package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a billable identity provisioned from the upstream gateway.
type Account struct {
	ID string `gorm:"type:text;primaryKey"` // Upstream identity ID.

	Email string `gorm:"type:text;not null;default:'';index"` // Contact email.
	Name  string `gorm:"type:text;not null;default:''"`       // Display name.
	Role  string `gorm:"type:text;not null;default:'user'"`   // Upstream role marker.

	Balance decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0"` // Personal pool balance.

	Deleted bool `gorm:"not null;default:false;index"` // Soft-delete flag; debits refuse once set.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
