package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/cache"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/models"
)

// QuotaStatus describes the global spend quota at a point in time.
type QuotaStatus struct {
	Enabled   bool            `json:"enabled"`
	Used      decimal.Decimal `json:"used"`
	Ceiling   decimal.Decimal `json:"ceiling"`
	ExpireAt  *time.Time      `json:"expire_at,omitempty"`
	Exhausted bool            `json:"exhausted"`
	Expired   bool            `json:"expired"`
}

// Guard enforces the global spend quota. The admission check is advisory:
// it reads a counter that lags concurrent settlements, so one request may
// slip past an almost-exhausted quota. Settled spend is authoritative.
type Guard struct {
	db    *gorm.DB
	cfg   *config.Manager
	cache *cache.UsageCache
	now   func() time.Time
}

// NewGuard constructs a quota Guard. cache may wrap a nil client.
func NewGuard(db *gorm.DB, cfg *config.Manager, usage *cache.UsageCache) *Guard {
	return &Guard{db: db, cfg: cfg, cache: usage, now: time.Now}
}

// CheckAdmission returns nil when the global quota admits another request.
// ErrQuotaExpired and ErrQuotaExceeded are the two rejection causes.
func (g *Guard) CheckAdmission(ctx context.Context) error {
	cfg := g.cfg.Current()
	if !cfg.GlobalQuota.Enabled {
		return nil
	}
	if expireAt, ok := cfg.QuotaExpireAt(); ok && g.now().After(expireAt) {
		return ErrQuotaExpired
	}
	used, err := g.UsedTotal(ctx)
	if err != nil {
		return err
	}
	if used.GreaterThanOrEqual(cfg.QuotaCeiling()) {
		return ErrQuotaExceeded
	}
	return nil
}

// UsedTotal returns the cumulative settled spend, consulting the cache
// before the database.
func (g *Guard) UsedTotal(ctx context.Context) (decimal.Decimal, error) {
	if cached, ok := g.cache.GetGlobalUsage(ctx); ok {
		return cached, nil
	}

	var stat models.SystemStat
	errFind := g.db.WithContext(ctx).Take(&stat, "key = ?", models.StatKeyGlobalUsage).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if errFind != nil {
		return decimal.Zero, errFind
	}
	g.cache.SetGlobalUsage(ctx, stat.ValueDecimal)
	return stat.ValueDecimal, nil
}

// RecordSpend adds a settled charge to the global usage counter. Call it
// inside the settlement transaction so the counter and the ledger move
// together.
func (g *Guard) RecordSpend(tx *gorm.DB, amount decimal.Decimal) error {
	res := tx.Model(&models.SystemStat{}).
		Where("key = ?", models.StatKeyGlobalUsage).
		UpdateColumn("value_decimal", gorm.Expr("value_decimal + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Create(&models.SystemStat{
			Key:          models.StatKeyGlobalUsage,
			ValueDecimal: amount,
		}).Error
	}
	return nil
}

// InvalidateCache drops the cached usage counter after a settlement commits.
func (g *Guard) InvalidateCache(ctx context.Context) {
	g.cache.Invalidate(ctx)
}

// Status reports the quota state for the panel.
func (g *Guard) Status(ctx context.Context) (*QuotaStatus, error) {
	cfg := g.cfg.Current()
	status := &QuotaStatus{Enabled: cfg.GlobalQuota.Enabled}
	if !status.Enabled {
		return status, nil
	}

	used, err := g.UsedTotal(ctx)
	if err != nil {
		return nil, err
	}
	status.Used = used
	status.Ceiling = cfg.QuotaCeiling()
	status.Exhausted = used.GreaterThanOrEqual(status.Ceiling)
	if expireAt, ok := cfg.QuotaExpireAt(); ok {
		status.ExpireAt = &expireAt
		status.Expired = g.now().After(expireAt)
	}
	return status, nil
}

// logCounterDrift is a helper for the reconciliation job.
func logCounterDrift(recorded, actual decimal.Decimal) {
	if recorded.Equal(actual) {
		return
	}
	log.WithField("recorded", recorded.String()).
		WithField("actual", actual.String()).
		Warn("quota: global usage counter drifted from settled records")
}
