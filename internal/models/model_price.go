package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelPrice stores the price policy for one model. Token prices are currency
// per 1,000,000 tokens. A non-negative PerMsgPrice overrides token pricing;
// the sentinel -1 means "use token pricing".
type ModelPrice struct {
	ID string `gorm:"type:text;primaryKey"` // Model identifier.

	Name        string `gorm:"type:text;not null"` // Model display name.
	BaseModelID string `gorm:"type:text"`          // Variant parent used to seed prices.

	InputPrice  decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0"`  // Price per 1M input tokens.
	OutputPrice decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0"`  // Price per 1M output tokens.
	PerMsgPrice decimal.Decimal `gorm:"type:decimal(10,6);not null;default:-1"` // Fixed per-message price; -1 disables.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UsesTokenPricing reports whether the model charges by token counts.
func (p *ModelPrice) UsesTokenPricing() bool {
	return p.PerMsgPrice.IsNegative()
}
