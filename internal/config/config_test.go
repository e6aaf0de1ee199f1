package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, errParse := Parse([]byte(`
database:
  dsn: "billing.db"
`))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.SessionTTLDuration() != 12*time.Hour {
		t.Fatalf("expected default session ttl 12h, got %s", cfg.SessionTTLDuration())
	}
	input, output, perMsg, ok := cfg.DefaultPrices()
	if !ok {
		t.Fatalf("default prices must be usable")
	}
	if input.String() != "60" || output.String() != "60" || perMsg.String() != "-1" {
		t.Fatalf("unexpected default prices: %s/%s/%s", input, output, perMsg)
	}
}

func TestParseRequiresDSN(t *testing.T) {
	if _, errParse := Parse([]byte(`server: {addr: ":9999"}`)); errParse == nil {
		t.Fatalf("expected error for missing dsn")
	}
}

func TestParseExpireDateLayouts(t *testing.T) {
	for _, raw := range []string{
		"2099-01-02",
		"2099-01-02 15:04:05",
		"2099-01-02T15:04:05Z",
	} {
		cfg, errParse := Parse([]byte(`
database:
  dsn: "billing.db"
global_quota:
  enabled: true
  quota: 10
  expire_date: "` + raw + `"`))
		if errParse != nil {
			t.Fatalf("parse expire date %q: %v", raw, errParse)
		}
		if _, ok := cfg.QuotaExpireAt(); !ok {
			t.Fatalf("expire date %q not parsed", raw)
		}
	}
}

func TestParseRejectsBadExpireDate(t *testing.T) {
	_, errParse := Parse([]byte(`
database:
  dsn: "billing.db"
global_quota:
  expire_date: "soon"`))
	if errParse == nil {
		t.Fatalf("expected error for bad expire date")
	}
}

func TestSurchargeFor(t *testing.T) {
	cfg, errParse := Parse([]byte(`
database:
  dsn: "billing.db"
pricing:
  surcharges:
    gpt-test: 0.5
    free-model: 0
`))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if got := cfg.SurchargeFor("gpt-test"); got.String() != "0.5" {
		t.Fatalf("expected surcharge 0.5, got %s", got)
	}
	if got := cfg.SurchargeFor("free-model"); !got.IsZero() {
		t.Fatalf("zero surcharge must stay zero, got %s", got)
	}
	if got := cfg.SurchargeFor("unknown"); !got.IsZero() {
		t.Fatalf("unknown model must have zero surcharge, got %s", got)
	}
}

func TestDefaultPricesFailClosedOnNegatives(t *testing.T) {
	cfg, errParse := Parse([]byte(`
database:
  dsn: "billing.db"
pricing:
  default_input_price: -1
  default_output_price: 60
`))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if _, _, _, ok := cfg.DefaultPrices(); ok {
		t.Fatalf("negative token defaults must be unusable")
	}
}

func TestManagerReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(addr string) {
		t.Helper()
		doc := "server:\n  addr: \"" + addr + "\"\ndatabase:\n  dsn: \"billing.db\"\n"
		if errWrite := os.WriteFile(path, []byte(doc), 0644); errWrite != nil {
			t.Fatalf("write config: %v", errWrite)
		}
	}

	write(":8080")
	manager, errNew := NewManager(path)
	if errNew != nil {
		t.Fatalf("new manager: %v", errNew)
	}
	if manager.Current().Server.Addr != ":8080" {
		t.Fatalf("unexpected initial addr")
	}

	write(":9090")
	if errReload := manager.Reload(); errReload != nil {
		t.Fatalf("reload: %v", errReload)
	}
	if manager.Current().Server.Addr != ":9090" {
		t.Fatalf("reload did not swap the snapshot")
	}

	// A broken file keeps the previous snapshot.
	if errWrite := os.WriteFile(path, []byte("server: ["), 0644); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	if errReload := manager.Reload(); errReload == nil {
		t.Fatalf("expected reload error for broken file")
	}
	if manager.Current().Server.Addr != ":9090" {
		t.Fatalf("failed reload must keep the previous snapshot")
	}
}
