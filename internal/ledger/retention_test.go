package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/metergate/metergate/internal/models"
	"github.com/metergate/metergate/internal/settings"
)

func TestRetentionCleanerDeletesOldRecords(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	old := models.UsageRecord{
		AccountID:    "u1",
		Nickname:     "user u1",
		ModelName:    "gpt-test",
		Cost:         mustDecimal(t, "1"),
		BalanceAfter: mustDecimal(t, "9"),
	}
	if errCreate := conn.Create(&old).Error; errCreate != nil {
		t.Fatalf("create record: %v", errCreate)
	}
	errAge := conn.Model(&models.UsageRecord{}).
		Where("id = ?", old.ID).
		UpdateColumn("use_time", time.Now().UTC().AddDate(0, 0, -90)).Error
	if errAge != nil {
		t.Fatalf("age record: %v", errAge)
	}

	fresh := models.UsageRecord{
		AccountID:    "u1",
		Nickname:     "user u1",
		ModelName:    "gpt-test",
		Cost:         mustDecimal(t, "2"),
		BalanceAfter: mustDecimal(t, "7"),
	}
	if errCreate := conn.Create(&fresh).Error; errCreate != nil {
		t.Fatalf("create record: %v", errCreate)
	}

	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.RecordsRetentionDaysKey: json.RawMessage(`30`),
	})

	cleaner := NewRetentionCleaner(conn)
	cleaner.CleanupOnce(context.Background())

	var remaining []models.UsageRecord
	if errFind := conn.Find(&remaining).Error; errFind != nil {
		t.Fatalf("load records: %v", errFind)
	}
	if len(remaining) != 1 || remaining[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh record to survive, got %d rows", len(remaining))
	}
}

func TestRetentionCleanerDisabledWithoutSetting(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)

	record := models.UsageRecord{
		AccountID:    "u1",
		Nickname:     "user u1",
		ModelName:    "gpt-test",
		Cost:         mustDecimal(t, "1"),
		BalanceAfter: mustDecimal(t, "9"),
	}
	if errCreate := conn.Create(&record).Error; errCreate != nil {
		t.Fatalf("create record: %v", errCreate)
	}
	errAge := conn.Model(&models.UsageRecord{}).
		Where("id = ?", record.ID).
		UpdateColumn("use_time", time.Now().UTC().AddDate(0, 0, -365)).Error
	if errAge != nil {
		t.Fatalf("age record: %v", errAge)
	}

	cleaner := NewRetentionCleaner(conn)
	cleaner.CleanupOnce(context.Background())

	var count int64
	if errCount := conn.Model(&models.UsageRecord{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count records: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("retention must be disabled without the setting, got %d rows", count)
	}
}
