package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/metergate/metergate/internal/models"
)

func resetSnapshot(t *testing.T) {
	t.Helper()
	StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
	t.Cleanup(func() {
		StoreDBConfig(time.Time{}, map[string]json.RawMessage{})
	})
}

func TestStringValueFallsBackWhenMissing(t *testing.T) {
	resetSnapshot(t)
	if got := StringValue(SiteNameKey, DefaultSiteName); got != DefaultSiteName {
		t.Fatalf("expected fallback %q, got %q", DefaultSiteName, got)
	}

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`"Billing Panel"`),
	})
	if got := StringValue(SiteNameKey, DefaultSiteName); got != "Billing Panel" {
		t.Fatalf("expected stored value, got %q", got)
	}
}

func TestDecimalValueAcceptsNumbersAndStrings(t *testing.T) {
	resetSnapshot(t)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		"as_number": json.RawMessage(`12.5`),
		"as_string": json.RawMessage(`"7.25"`),
		"garbage":   json.RawMessage(`{"nested": true}`),
	})

	if got, ok := DecimalValue("as_number"); !ok || got.String() != "12.5" {
		t.Fatalf("expected 12.5, got %v %v", got, ok)
	}
	if got, ok := DecimalValue("as_string"); !ok || got.String() != "7.25" {
		t.Fatalf("expected 7.25, got %v %v", got, ok)
	}
	if _, ok := DecimalValue("garbage"); ok {
		t.Fatalf("expected garbage value to be rejected")
	}
	if _, ok := DecimalValue("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestIntValueAcceptsNumbersAndStrings(t *testing.T) {
	resetSnapshot(t)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		"as_number":  json.RawMessage(`30`),
		"as_string":  json.RawMessage(`"45"`),
		"fractional": json.RawMessage(`1.5`),
	})

	if got, ok := IntValue("as_number"); !ok || got != 30 {
		t.Fatalf("expected 30, got %d %v", got, ok)
	}
	if got, ok := IntValue("as_string"); !ok || got != 45 {
		t.Fatalf("expected 45, got %d %v", got, ok)
	}
	if _, ok := IntValue("fractional"); ok {
		t.Fatalf("fractional values must be rejected")
	}
}

func TestRefreshDBConfigSnapshotLoadsFromDatabase(t *testing.T) {
	resetSnapshot(t)

	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	setting := models.Setting{
		Key:   SiteNameKey,
		Value: datatypes.JSON(`"Stored Name"`),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		t.Fatalf("create setting: %v", errCreate)
	}

	if errRefresh := RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if got := StringValue(SiteNameKey, DefaultSiteName); got != "Stored Name" {
		t.Fatalf("expected refreshed value, got %q", got)
	}
}
