package ledger

import (
	"context"
	"testing"

	"github.com/metergate/metergate/internal/models"
)

func TestReconcileRepairsDriftedCounter(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	for _, cost := range []string{"1.5", "2.5", "6"} {
		record := models.UsageRecord{
			AccountID:    "u1",
			Nickname:     "user u1",
			ModelName:    "gpt-test",
			OutputTokens: 10,
			Cost:         mustDecimal(t, cost),
			BalanceAfter: mustDecimal(t, "0"),
		}
		if errCreate := conn.Create(&record).Error; errCreate != nil {
			t.Fatalf("create usage record: %v", errCreate)
		}
	}

	// Drift the counter away from the settled records.
	errDrift := conn.Model(&models.SystemStat{}).
		Where("key = ?", models.StatKeyGlobalUsage).
		UpdateColumn("value_decimal", mustDecimal(t, "123")).Error
	if errDrift != nil {
		t.Fatalf("drift counter: %v", errDrift)
	}

	reconciler := NewReconciler(conn, nil)
	drift, errReconcile := reconciler.ReconcileGlobalUsage(context.Background())
	if errReconcile != nil {
		t.Fatalf("reconcile: %v", errReconcile)
	}
	if !drift.Equal(mustDecimal(t, "-113")) {
		t.Fatalf("expected drift -113, got %s", drift)
	}
	if !globalUsage(t, conn).Equal(mustDecimal(t, "10")) {
		t.Fatalf("expected counter 10, got %s", globalUsage(t, conn))
	}

	// A second run is a no-op.
	drift, errReconcile = reconciler.ReconcileGlobalUsage(context.Background())
	if errReconcile != nil {
		t.Fatalf("second reconcile: %v", errReconcile)
	}
	if !drift.IsZero() {
		t.Fatalf("expected zero drift on second run, got %s", drift)
	}
}

func TestReconcileWithNoRecordsZeroesCounter(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	errDrift := conn.Model(&models.SystemStat{}).
		Where("key = ?", models.StatKeyGlobalUsage).
		UpdateColumn("value_decimal", mustDecimal(t, "42")).Error
	if errDrift != nil {
		t.Fatalf("drift counter: %v", errDrift)
	}

	reconciler := NewReconciler(conn, nil)
	if _, errReconcile := reconciler.ReconcileGlobalUsage(context.Background()); errReconcile != nil {
		t.Fatalf("reconcile: %v", errReconcile)
	}
	if !globalUsage(t, conn).IsZero() {
		t.Fatalf("expected zero counter, got %s", globalUsage(t, conn))
	}
}
