package ledger

import (
	"context"
	"testing"

	"github.com/metergate/metergate/internal/models"
)

func TestSweepGroupAlertsMarksLowBalanceGroups(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	createGroup(t, conn, "low", "5")
	createGroup(t, conn, "healthy", "500")

	sweeper := NewAlertSweeper(conn)
	if errSweep := sweeper.SweepGroupAlerts(context.Background()); errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}

	var low models.Group
	if errFind := conn.Take(&low, "id = ?", "low").Error; errFind != nil {
		t.Fatalf("load group: %v", errFind)
	}
	if low.LastAlertedAt == nil {
		t.Fatalf("low balance group must be marked alerted")
	}

	var healthy models.Group
	if errFind := conn.Take(&healthy, "id = ?", "healthy").Error; errFind != nil {
		t.Fatalf("load group: %v", errFind)
	}
	if healthy.LastAlertedAt != nil {
		t.Fatalf("healthy group must not be alerted")
	}
}

func TestSweepGroupAlertsThrottlesRepeats(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	createGroup(t, conn, "low", "5")

	sweeper := NewAlertSweeper(conn)
	if errSweep := sweeper.SweepGroupAlerts(context.Background()); errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}
	var first models.Group
	if errFind := conn.Take(&first, "id = ?", "low").Error; errFind != nil {
		t.Fatalf("load group: %v", errFind)
	}

	if errSweep := sweeper.SweepGroupAlerts(context.Background()); errSweep != nil {
		t.Fatalf("second sweep: %v", errSweep)
	}
	var second models.Group
	if errFind := conn.Take(&second, "id = ?", "low").Error; errFind != nil {
		t.Fatalf("load group: %v", errFind)
	}
	if !second.LastAlertedAt.Equal(*first.LastAlertedAt) {
		t.Fatalf("repeat alert within the throttle window must not update the timestamp")
	}
}

func TestSweepGroupAlertsRearmsRecoveredGroups(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	createGroup(t, conn, "low", "5")

	sweeper := NewAlertSweeper(conn)
	if errSweep := sweeper.SweepGroupAlerts(context.Background()); errSweep != nil {
		t.Fatalf("sweep: %v", errSweep)
	}

	errTopup := conn.Model(&models.Group{}).
		Where("id = ?", "low").
		UpdateColumn("balance", mustDecimal(t, "100")).Error
	if errTopup != nil {
		t.Fatalf("top up group: %v", errTopup)
	}

	if errSweep := sweeper.SweepGroupAlerts(context.Background()); errSweep != nil {
		t.Fatalf("second sweep: %v", errSweep)
	}
	var group models.Group
	if errFind := conn.Take(&group, "id = ?", "low").Error; errFind != nil {
		t.Fatalf("load group: %v", errFind)
	}
	if group.LastAlertedAt != nil {
		t.Fatalf("recovered group must be re-armed")
	}
}
