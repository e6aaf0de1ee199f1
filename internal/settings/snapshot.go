package settings

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// dbConfigSnapshot holds the in-memory DB config values.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalDBConfig stores the latest dbConfigSnapshot atomically.
var globalDBConfig atomic.Value // stores dbConfigSnapshot

// init seeds the global DB config snapshot.
func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}

	globalDBConfig.Store(dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// DBConfigUpdatedAt returns the last update timestamp for DB config.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

// DBConfigValue returns a copy of the raw config value for a key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	cfg := loadDBConfig()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// StringValue returns a settings value decoded as a string.
func StringValue(key, fallback string) string {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var out string
	if errUnmarshal := json.Unmarshal(raw, &out); errUnmarshal != nil {
		return fallback
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback
	}
	return out
}

// DecimalValue returns a settings value decoded as a decimal. JSON numbers
// and numeric strings are both accepted.
func DecimalValue(key string) (decimal.Decimal, bool) {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return decimal.Zero, false
	}

	var asNumber json.Number
	if errUnmarshal := json.Unmarshal(raw, &asNumber); errUnmarshal == nil {
		if parsed, errParse := decimal.NewFromString(asNumber.String()); errParse == nil {
			return parsed, true
		}
	}

	var asString string
	if errUnmarshal := json.Unmarshal(raw, &asString); errUnmarshal == nil {
		if parsed, errParse := decimal.NewFromString(strings.TrimSpace(asString)); errParse == nil {
			return parsed, true
		}
	}
	return decimal.Zero, false
}

// IntValue returns a settings value decoded as an integer. JSON numbers and
// numeric strings are both accepted; fractional numbers are rejected.
func IntValue(key string) (int, bool) {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return 0, false
	}

	var asNumber json.Number
	if errUnmarshal := json.Unmarshal(raw, &asNumber); errUnmarshal == nil {
		if parsed, errParse := asNumber.Int64(); errParse == nil {
			return int(parsed), true
		}
	}

	var asString string
	if errUnmarshal := json.Unmarshal(raw, &asString); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(asString)); errParse == nil {
			return parsed, true
		}
	}
	return 0, false
}

// loadDBConfig returns the current snapshot with safe defaults.
func loadDBConfig() dbConfigSnapshot {
	v := globalDBConfig.Load()
	cfg, ok := v.(dbConfigSnapshot)
	if !ok {
		return dbConfigSnapshot{values: map[string]json.RawMessage{}}
	}
	if cfg.values == nil {
		return dbConfigSnapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
