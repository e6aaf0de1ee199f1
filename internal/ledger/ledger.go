// Package ledger implements the metered billing core: pricing resolution,
// the global quota guard, the admission estimator run before the upstream
// model call, and the settlement engine that atomically debits balances
// afterwards.
package ledger

import "github.com/shopspring/decimal"

// Identity is the authenticated caller attached to every inlet/outlet call.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// maxBalance is the sanity ceiling for any pool balance. Crossing it after a
// debit is treated as data corruption rather than a billing outcome.
var maxBalance = decimal.RequireFromString("999999.9999")

// million scales per-1M-token prices to per-token amounts.
var million = decimal.NewFromInt(1_000_000)

// unmeteredBalance is the sentinel returned for soft-deleted accounts that
// are waved through admission without billing.
var unmeteredBalance = decimal.NewFromInt(-1)
