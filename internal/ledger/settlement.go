package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/metrics"
	"github.com/metergate/metergate/internal/models"
)

// TokenUsage is the token accounting for one request, either reported by the
// upstream provider or estimated from message content.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// SettleResult describes a committed settlement.
type SettleResult struct {
	// Charge is the total amount debited, surcharge included.
	Charge decimal.Decimal
	// Balance is the paying pool's balance after the debit.
	Balance decimal.Decimal
	// Source is the pool that paid, PERSONAL or GROUP.
	Source string
	// RecordID is the usage record written for this settlement.
	RecordID uint64

	InputTokens  int64
	OutputTokens int64
}

// Engine settles requests after the upstream model call. Every settlement
// runs in a single database transaction: the cascading debit, the ledger
// transaction row, the usage record and the global counter increment all
// commit or roll back together.
type Engine struct {
	db      *gorm.DB
	cfg     *config.Manager
	guard   *Guard
	pricing *Pricing
}

// NewEngine constructs a settlement Engine.
func NewEngine(db *gorm.DB, cfg *config.Manager, guard *Guard, pricing *Pricing) *Engine {
	return &Engine{db: db, cfg: cfg, guard: guard, pricing: pricing}
}

// Settle charges an account for a completed request and returns what was
// debited. The upstream call has already happened, so a failure here is an
// unbilled loss; insufficient funds are logged for audit before the error
// is returned.
func (e *Engine) Settle(ctx context.Context, id Identity, modelID string, usage TokenUsage) (*SettleResult, error) {
	result, err := e.settle(ctx, id, modelID, usage)
	switch {
	case err == nil:
		metrics.Settlements.WithLabelValues(result.Source, metrics.OutcomeOK).Inc()
		metrics.ChargedTotal.Add(result.Charge.InexactFloat64())
		e.guard.InvalidateCache(ctx)
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrAccountDeleted):
		metrics.Settlements.WithLabelValues("none", metrics.OutcomeRejected).Inc()
	default:
		metrics.Settlements.WithLabelValues("none", metrics.OutcomeError).Inc()
	}
	return result, err
}

func (e *Engine) settle(ctx context.Context, id Identity, modelID string, usage TokenUsage) (*SettleResult, error) {
	price, err := e.pricing.GetOrCreate(ctx, modelID, modelID, "")
	if err != nil {
		return nil, err
	}

	base := baseCost(price, usage)
	surcharge := e.pricing.Surcharge(modelID)
	charge := base.Add(surcharge).Round(4)

	result := &SettleResult{
		Charge:       charge,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}

	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, errAccount := getOrCreateAccount(tx, e.cfg.Current(), id)
		if errAccount != nil {
			return errAccount
		}

		p, errPools := resolvePools(tx, account)
		if errPools != nil {
			return errPools
		}

		source, remaining, errDebit := debitCascading(tx, p, charge)
		if errDebit != nil {
			return errDebit
		}
		if remaining.GreaterThan(maxBalance) {
			return ErrBalanceOverflow
		}
		result.Source = source
		result.Balance = remaining

		entry := models.Transaction{
			AccountID: account.ID,
			Type:      models.TransactionTypeUsage,
			Source:    source,
			Amount:    charge.Neg(),
			ModelID:   modelID,
		}
		if source == models.SourceGroup && p.group != nil {
			groupID := p.group.ID
			entry.GroupID = &groupID
		}
		if errEntry := tx.Create(&entry).Error; errEntry != nil {
			return errEntry
		}

		record := models.UsageRecord{
			AccountID:    account.ID,
			Nickname:     account.Name,
			ModelName:    modelID,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			Cost:         charge,
			BalanceAfter: remaining,
		}
		if errRecord := tx.Create(&record).Error; errRecord != nil {
			return errRecord
		}
		result.RecordID = record.ID

		errLink := tx.Model(&models.Transaction{}).
			Where("id = ?", entry.ID).
			UpdateColumn("record_id", record.ID).Error
		if errLink != nil {
			return errLink
		}

		return e.guard.RecordSpend(tx, charge)
	})
	if errTx != nil {
		if errors.Is(errTx, ErrInsufficientFunds) || errors.Is(errTx, ErrAccountDeleted) {
			log.WithField("account", id.ID).
				WithField("model", modelID).
				WithField("charge", charge.String()).
				WithError(errTx).
				Warn("ledger: settlement refused after upstream call, charge is an unbilled loss")
		}
		return nil, errTx
	}
	return result, nil
}

// baseCost computes the pre-surcharge cost of a request. Zero output tokens
// mean the upstream produced nothing billable and the base cost is zero
// regardless of pricing mode.
func baseCost(price *models.ModelPrice, usage TokenUsage) decimal.Decimal {
	if usage.OutputTokens == 0 {
		return decimal.Zero
	}
	if !price.UsesTokenPricing() {
		return price.PerMsgPrice
	}
	input := decimal.NewFromInt(usage.InputTokens).Mul(price.InputPrice).Div(million)
	output := decimal.NewFromInt(usage.OutputTokens).Mul(price.OutputPrice).Div(million)
	return input.Add(output)
}
