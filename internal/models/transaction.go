package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	// TransactionTypeUsage records a metered charge.
	TransactionTypeUsage = "USAGE"
	// TransactionTypeTopup records an administrative balance increase.
	TransactionTypeTopup = "TOPUP"
	// TransactionTypeRefund records an administrative balance decrease.
	TransactionTypeRefund = "REFUND"
)

// Transaction sources identify the debited pool.
const (
	// SourcePersonal marks a charge against the account's own balance.
	SourcePersonal = "PERSONAL"
	// SourceGroup marks a charge against the shared group balance.
	SourceGroup = "GROUP"
)

// Transaction is an append-only ledger row. Rows are never mutated after
// insert except to backfill RecordID once the sibling usage record exists.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID string  `gorm:"type:text;index"` // Charged account, when personal or member-triggered.
	GroupID   *string `gorm:"type:text;index"` // Charged group, when source is GROUP.

	Type   string `gorm:"type:text;not null"` // USAGE, TOPUP or REFUND.
	Source string `gorm:"type:text;not null"` // PERSONAL or GROUP.

	Amount  decimal.Decimal `gorm:"type:decimal(16,4);not null"` // Signed amount; negative for debits.
	ModelID string          `gorm:"type:text"`                   // Billed model, when usage.

	RecordID *uint64 `gorm:"index"` // Linked usage record, backfilled after insert.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
