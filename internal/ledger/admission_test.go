package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/metergate/metergate/internal/models"
)

func TestCheckAdmissionProvisionsAccountWithInitBalance(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, `
database:
  dsn: ":memory:"
accounts:
  init_balance: 25
`)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	result, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "fresh", Name: "Fresh"}, "gpt-test")
	if errCheck != nil {
		t.Fatalf("check admission: %v", errCheck)
	}
	if result.Source != models.SourcePersonal {
		t.Fatalf("expected personal source, got %s", result.Source)
	}
	if !result.Balance.Equal(mustDecimal(t, "25")) {
		t.Fatalf("expected apparent balance 25, got %s", result.Balance)
	}
	if !accountBalance(t, conn, "fresh").Equal(mustDecimal(t, "25")) {
		t.Fatalf("account not provisioned with init balance")
	}
}

func TestCheckAdmissionGroupPoolChecksFirst(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, `
database:
  dsn: ":memory:"
pricing:
  surcharges:
    gpt-test: 2
`)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	createAccount(t, conn, "u1", "100", false)
	createGroup(t, conn, "g1", "50", "u1")

	result, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "u1"}, "gpt-test")
	if errCheck != nil {
		t.Fatalf("check admission: %v", errCheck)
	}
	if result.Source != models.SourceGroup {
		t.Fatalf("expected group source, got %s", result.Source)
	}
	if !result.Balance.Equal(mustDecimal(t, "48")) {
		t.Fatalf("expected apparent balance 48, got %s", result.Balance)
	}
	if !result.Surcharge.Equal(mustDecimal(t, "2")) {
		t.Fatalf("expected surcharge 2, got %s", result.Surcharge)
	}
	// Admission never mutates balances.
	if !groupBalance(t, conn, "g1").Equal(mustDecimal(t, "50")) {
		t.Fatalf("group balance must be untouched")
	}
}

func TestCheckAdmissionInsufficientFunds(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, `
database:
  dsn: ":memory:"
pricing:
  surcharges:
    gpt-test: 5
`)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	createAccount(t, conn, "broke", "1", false)

	_, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "broke"}, "gpt-test")
	if !errors.Is(errCheck, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", errCheck)
	}
}

func TestCheckAdmissionDeletedAccountIsUnmetered(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, baseTestConfig)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	createAccount(t, conn, "gone", "0", true)

	result, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "gone"}, "gpt-test")
	if errCheck != nil {
		t.Fatalf("check admission: %v", errCheck)
	}
	if !result.Unmetered {
		t.Fatalf("expected unmetered result")
	}
	if !result.Balance.Equal(mustDecimal(t, "-1")) {
		t.Fatalf("expected sentinel balance -1, got %s", result.Balance)
	}
}

func TestCheckAdmissionRejectsExhaustedQuota(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, `
database:
  dsn: ":memory:"
global_quota:
  enabled: true
  quota: 100
`)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	createAccount(t, conn, "u1", "100", false)
	if errSeed := guard.RecordSpend(conn, mustDecimal(t, "100")); errSeed != nil {
		t.Fatalf("seed counter: %v", errSeed)
	}

	_, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "u1"}, "gpt-test")
	if !errors.Is(errCheck, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", errCheck)
	}
}

func TestCheckAdmissionRejectsExpiredQuota(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	manager := testConfigManager(t, `
database:
  dsn: ":memory:"
global_quota:
  enabled: true
  quota: 100
  expire_date: "2001-01-01"
`)
	guard := NewGuard(conn, manager, nil)
	estimator := NewEstimator(conn, manager, guard, NewPricing(conn, manager))

	createAccount(t, conn, "u1", "100", false)

	_, errCheck := estimator.CheckAdmission(context.Background(), Identity{ID: "u1"}, "gpt-test")
	if !errors.Is(errCheck, ErrQuotaExpired) {
		t.Fatalf("expected ErrQuotaExpired, got %v", errCheck)
	}
}
