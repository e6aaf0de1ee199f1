package ledger

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/metergate/metergate/internal/models"
)

// alertThrottle is the minimum interval between repeated alerts for the
// same group.
const alertThrottle = 24 * time.Hour

// AlertSweeper watches group balances and raises an alert when one falls
// below its configured threshold. Alerts are log lines; delivery to the
// group admin happens outside the ledger.
type AlertSweeper struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAlertSweeper constructs an AlertSweeper.
func NewAlertSweeper(db *gorm.DB) *AlertSweeper {
	return &AlertSweeper{db: db, now: time.Now}
}

// SweepGroupAlerts scans all groups once. A group below its threshold is
// alerted at most once per throttle interval; a group back above its
// threshold is re-armed.
func (s *AlertSweeper) SweepGroupAlerts(ctx context.Context) error {
	var groups []models.Group
	if errFind := s.db.WithContext(ctx).Find(&groups).Error; errFind != nil {
		return errFind
	}

	now := s.now()
	for i := range groups {
		group := &groups[i]
		if group.Balance.GreaterThanOrEqual(group.AlertThreshold) {
			if group.LastAlertedAt != nil {
				s.updateLastAlerted(ctx, group.ID, nil)
			}
			continue
		}
		if group.LastAlertedAt != nil && now.Sub(*group.LastAlertedAt) < alertThrottle {
			continue
		}
		log.WithField("group", group.ID).
			WithField("admin_email", group.AdminEmail).
			WithField("balance", group.Balance.String()).
			WithField("threshold", group.AlertThreshold.String()).
			Warn("ledger: group balance below alert threshold")
		s.updateLastAlerted(ctx, group.ID, &now)
	}
	return nil
}

func (s *AlertSweeper) updateLastAlerted(ctx context.Context, groupID string, at *time.Time) {
	errUpdate := s.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ?", groupID).
		UpdateColumn("last_alerted_at", at).Error
	if errUpdate != nil {
		log.WithError(errUpdate).WithField("group", groupID).Warn("ledger: failed to update alert timestamp")
	}
}
