package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/metrics"
	"github.com/metergate/metergate/internal/models"
)

// AdmissionResult is the inlet-phase verdict for a request.
type AdmissionResult struct {
	// Balance is the apparent remaining balance of the pool that would pay,
	// after the surcharge. It is -1 for unmetered (deleted) accounts.
	Balance decimal.Decimal
	// Surcharge is the flat inlet cost for the target model.
	Surcharge decimal.Decimal
	// Source is the pool that would pay, empty for unmetered accounts.
	Source string
	// Unmetered marks a soft-deleted account waved through without billing.
	Unmetered bool
}

// Estimator runs the inlet-phase admission check before the upstream model
// call. It provisions accounts lazily but never mutates a balance.
type Estimator struct {
	db      *gorm.DB
	cfg     *config.Manager
	guard   *Guard
	pricing *Pricing
}

// NewEstimator constructs an admission Estimator.
func NewEstimator(db *gorm.DB, cfg *config.Manager, guard *Guard, pricing *Pricing) *Estimator {
	return &Estimator{db: db, cfg: cfg, guard: guard, pricing: pricing}
}

// CheckAdmission decides whether a request may proceed to the upstream
// model. Rejections carry ErrQuotaExpired, ErrQuotaExceeded or
// ErrInsufficientFunds; anything else is an internal failure.
func (e *Estimator) CheckAdmission(ctx context.Context, id Identity, modelID string) (*AdmissionResult, error) {
	result, err := e.checkAdmission(ctx, id, modelID)
	switch {
	case err == nil:
		metrics.AdmissionChecks.WithLabelValues(metrics.OutcomeOK).Inc()
	case errors.Is(err, ErrQuotaExpired), errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrInsufficientFunds):
		metrics.AdmissionChecks.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		metrics.AdmissionChecks.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return result, err
}

func (e *Estimator) checkAdmission(ctx context.Context, id Identity, modelID string) (*AdmissionResult, error) {
	if err := e.guard.CheckAdmission(ctx); err != nil {
		return nil, err
	}

	tx := e.db.WithContext(ctx)
	account, err := getOrCreateAccount(tx, e.cfg.Current(), id)
	if err != nil {
		return nil, err
	}
	if account.Deleted {
		return &AdmissionResult{Balance: unmeteredBalance, Unmetered: true}, nil
	}

	p, err := resolvePools(tx, account)
	if err != nil {
		return nil, err
	}

	surcharge := e.pricing.Surcharge(modelID)
	if p.group != nil && p.group.Balance.GreaterThanOrEqual(surcharge) {
		return &AdmissionResult{
			Balance:   p.group.Balance.Sub(surcharge),
			Surcharge: surcharge,
			Source:    models.SourceGroup,
		}, nil
	}
	if account.Balance.GreaterThanOrEqual(surcharge) {
		return &AdmissionResult{
			Balance:   account.Balance.Sub(surcharge),
			Surcharge: surcharge,
			Source:    models.SourcePersonal,
		}, nil
	}
	return nil, ErrInsufficientFunds
}
