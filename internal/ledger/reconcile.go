package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/metergate/metergate/internal/cache"
	"github.com/metergate/metergate/internal/metrics"
	"github.com/metergate/metergate/internal/models"
)

// Reconciler rebuilds the global usage counter from the settled usage
// records. The counter can drift after manual record deletions or a counter
// row lost to schema repair; reconciliation makes the records authoritative
// again.
type Reconciler struct {
	db    *gorm.DB
	cache *cache.UsageCache
}

// NewReconciler constructs a Reconciler.
func NewReconciler(db *gorm.DB, usage *cache.UsageCache) *Reconciler {
	return &Reconciler{db: db, cache: usage}
}

// ReconcileGlobalUsage recomputes the counter from usage records and
// overwrites the stats row. It is idempotent and returns the drift that was
// repaired (actual minus recorded).
func (r *Reconciler) ReconcileGlobalUsage(ctx context.Context) (decimal.Decimal, error) {
	var actual decimal.Decimal
	errSum := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(cost), 0)").
		Row().Scan(&actual)
	if errSum != nil {
		return decimal.Zero, errSum
	}

	var recorded decimal.Decimal
	var stat models.SystemStat
	errFind := r.db.WithContext(ctx).Take(&stat, "key = ?", models.StatKeyGlobalUsage).Error
	if errFind == nil {
		recorded = stat.ValueDecimal
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return decimal.Zero, errFind
	}

	errUpsert := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value_decimal": actual}),
	}).Create(&models.SystemStat{
		Key:          models.StatKeyGlobalUsage,
		ValueDecimal: actual,
	}).Error
	if errUpsert != nil {
		return decimal.Zero, errUpsert
	}

	drift := actual.Sub(recorded)
	metrics.ReconcileDrift.Set(drift.Abs().InexactFloat64())
	logCounterDrift(recorded, actual)
	r.cache.Invalidate(ctx)

	log.WithField("total", actual.String()).
		WithField("drift", drift.String()).
		Info("ledger: reconciled global usage counter")
	return drift, nil
}
