package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/db"
	"github.com/metergate/metergate/internal/models"
	"github.com/metergate/metergate/internal/settings"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory SQLite database with migrations applied.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

// testConfigManager parses a config document and wraps it in a static manager.
func testConfigManager(t *testing.T, raw string) *config.Manager {
	t.Helper()
	cfg, errParse := config.Parse([]byte(raw))
	if errParse != nil {
		t.Fatalf("parse test config: %v", errParse)
	}
	return config.NewStaticManager(cfg)
}

// baseTestConfig is a minimal valid config for ledger tests.
const baseTestConfig = `
database:
  dsn: ":memory:"
`

func resetSettings(t *testing.T) {
	t.Helper()
	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{})
	t.Cleanup(func() {
		settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{})
	})
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	parsed, errParse := decimal.NewFromString(raw)
	if errParse != nil {
		t.Fatalf("parse decimal %q: %v", raw, errParse)
	}
	return parsed
}

func createAccount(t *testing.T, conn *gorm.DB, id, balance string, deleted bool) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:      id,
		Name:    "user " + id,
		Balance: mustDecimal(t, balance),
		Deleted: deleted,
	}
	if errCreate := conn.Create(account).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	return account
}

func createGroup(t *testing.T, conn *gorm.DB, id, balance string, members ...string) *models.Group {
	t.Helper()
	group := &models.Group{
		ID:             id,
		Name:           "group " + id,
		Balance:        mustDecimal(t, balance),
		AlertThreshold: mustDecimal(t, "10.00"),
	}
	if errCreate := conn.Create(group).Error; errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}
	for _, member := range members {
		membership := &models.GroupMembership{AccountID: member, GroupID: id}
		if errCreate := conn.Create(membership).Error; errCreate != nil {
			t.Fatalf("create membership: %v", errCreate)
		}
	}
	return group
}

func createModelPrice(t *testing.T, conn *gorm.DB, id, input, output, perMsg string) *models.ModelPrice {
	t.Helper()
	price := &models.ModelPrice{
		ID:          id,
		Name:        id,
		InputPrice:  mustDecimal(t, input),
		OutputPrice: mustDecimal(t, output),
		PerMsgPrice: mustDecimal(t, perMsg),
	}
	if errCreate := conn.Create(price).Error; errCreate != nil {
		t.Fatalf("create model price: %v", errCreate)
	}
	return price
}

func accountBalance(t *testing.T, conn *gorm.DB, id string) decimal.Decimal {
	t.Helper()
	var account models.Account
	if errFind := conn.Take(&account, "id = ?", id).Error; errFind != nil {
		t.Fatalf("load account %s: %v", id, errFind)
	}
	return account.Balance
}

func groupBalance(t *testing.T, conn *gorm.DB, id string) decimal.Decimal {
	t.Helper()
	var group models.Group
	if errFind := conn.Take(&group, "id = ?", id).Error; errFind != nil {
		t.Fatalf("load group %s: %v", id, errFind)
	}
	return group.Balance
}

func globalUsage(t *testing.T, conn *gorm.DB) decimal.Decimal {
	t.Helper()
	var stat models.SystemStat
	if errFind := conn.Take(&stat, "key = ?", models.StatKeyGlobalUsage).Error; errFind != nil {
		t.Fatalf("load global usage stat: %v", errFind)
	}
	return stat.ValueDecimal
}
