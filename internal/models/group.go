package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group is a shared balance pool debited before its members' personal pools.
type Group struct {
	ID string `gorm:"type:text;primaryKey"` // Group identifier.

	Name       string `gorm:"type:text;not null"` // Display name.
	AdminEmail string `gorm:"type:text"`          // Contact for balance alerts.

	Balance        decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0"`     // Shared pool balance.
	AlertThreshold decimal.Decimal `gorm:"type:decimal(16,4);not null;default:10.00"` // Low-balance alert level.

	LastAlertedAt *time.Time // Last time a low-balance alert fired.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// GroupMembership maps an account to at most one group.
type GroupMembership struct {
	AccountID string `gorm:"type:text;primaryKey"` // Member account ID.
	GroupID   string `gorm:"type:text;not null;index"`

	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"` // Owning group; deletion cascades the mapping.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (GroupMembership) TableName() string {
	return "group_memberships"
}
