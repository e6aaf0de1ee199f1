package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/metergate/metergate/internal/settings"
)

func TestResolveReturnsStoredPriceRow(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	pricing := NewPricing(conn, testConfigManager(t, baseTestConfig))

	createModelPrice(t, conn, "gpt-test", "30", "90", "-1")

	price, errResolve := pricing.Resolve(context.Background(), "gpt-test")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if !price.InputPrice.Equal(mustDecimal(t, "30")) || !price.OutputPrice.Equal(mustDecimal(t, "90")) {
		t.Fatalf("unexpected prices: %s / %s", price.InputPrice, price.OutputPrice)
	}
	if !price.UsesTokenPricing() {
		t.Fatalf("expected token pricing")
	}
}

func TestResolveUnknownModelFallsBackToDefaultsWithoutCreating(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	pricing := NewPricing(conn, testConfigManager(t, baseTestConfig))

	price, errResolve := pricing.Resolve(context.Background(), "never-seen")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if !price.InputPrice.Equal(mustDecimal(t, "60")) {
		t.Fatalf("expected default input price 60, got %s", price.InputPrice)
	}

	var count int64
	if errCount := conn.Table("model_prices").Count(&count).Error; errCount != nil {
		t.Fatalf("count prices: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("resolve must not create rows, found %d", count)
	}
}

func TestGetOrCreateSeedsVariantFromBaseModel(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	pricing := NewPricing(conn, testConfigManager(t, baseTestConfig))

	createModelPrice(t, conn, "gpt-base", "12", "24", "-1")

	price, errGet := pricing.GetOrCreate(context.Background(), "gpt-base:variant", "", "gpt-base")
	if errGet != nil {
		t.Fatalf("get or create: %v", errGet)
	}
	if !price.InputPrice.Equal(mustDecimal(t, "12")) || !price.OutputPrice.Equal(mustDecimal(t, "24")) {
		t.Fatalf("variant not seeded from base: %s / %s", price.InputPrice, price.OutputPrice)
	}
	if price.BaseModelID != "gpt-base" {
		t.Fatalf("expected base model id, got %q", price.BaseModelID)
	}

	// Second call returns the stored row.
	again, errAgain := pricing.GetOrCreate(context.Background(), "gpt-base:variant", "", "")
	if errAgain != nil {
		t.Fatalf("second get or create: %v", errAgain)
	}
	if !again.InputPrice.Equal(price.InputPrice) {
		t.Fatalf("expected the same stored row")
	}
}

func TestDefaultsOverriddenBySettings(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	pricing := NewPricing(conn, testConfigManager(t, baseTestConfig))

	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.DefaultInputPriceKey:  json.RawMessage(`"15"`),
		settings.DefaultOutputPriceKey: json.RawMessage(`45`),
	})

	price, errResolve := pricing.Resolve(context.Background(), "never-seen")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if !price.InputPrice.Equal(mustDecimal(t, "15")) {
		t.Fatalf("expected overridden input price 15, got %s", price.InputPrice)
	}
	if !price.OutputPrice.Equal(mustDecimal(t, "45")) {
		t.Fatalf("expected overridden output price 45, got %s", price.OutputPrice)
	}
}

func TestResolveFailsClosedWhenDefaultsUnusable(t *testing.T) {
	resetSettings(t)
	conn := setupTestDB(t)
	pricing := NewPricing(conn, testConfigManager(t, `
database:
  dsn: ":memory:"
pricing:
  default_input_price: -1
  default_output_price: -1
`))

	_, errResolve := pricing.Resolve(context.Background(), "never-seen")
	if !errors.Is(errResolve, ErrUnpriceableModel) {
		t.Fatalf("expected ErrUnpriceableModel, got %v", errResolve)
	}
}
