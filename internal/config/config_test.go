package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Simplici0/voltquote/internal/pricing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "DB_PATH", "PORT", "MIGRATIONS_DIR", "POLICY_FILE", "POLICY_CACHE_TTL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.AppEnv != "dev" || !cfg.IsDev() {
		t.Fatalf("app env = %q, want dev", cfg.AppEnv)
	}
	if cfg.DBPath != "./voltquote.db" || cfg.Port != "8080" || cfg.MigrationsDir != "migrations" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PolicyCacheTTL != 5*time.Minute {
		t.Fatalf("ttl = %v, want 5m", cfg.PolicyCacheTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PATH", "/var/lib/voltquote/q.db")
	t.Setenv("PORT", "9090")
	t.Setenv("POLICY_CACHE_TTL", "30s")

	cfg := Load()
	if cfg.IsDev() {
		t.Fatalf("production should not be dev")
	}
	if cfg.DBPath != "/var/lib/voltquote/q.db" || cfg.Port != "9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PolicyCacheTTL != 30*time.Second {
		t.Fatalf("ttl = %v, want 30s", cfg.PolicyCacheTTL)
	}
}

func TestLoadBadTTLFallsBack(t *testing.T) {
	t.Setenv("POLICY_CACHE_TTL", "soon")
	if got := Load().PolicyCacheTTL; got != 5*time.Minute {
		t.Fatalf("ttl = %v, want 5m", got)
	}
}

const overlay = `
version = "margin-policy/2025.12.0"

[guards.bess]
market_price = 118
market_date = "2025-12-01"

[risk]
elevated = 0.03

[segments]
channel = 0.95

[products.engineering]
additive = true
fixed_adder = 0.04

[quote_guards]
bess_fleet_ceiling_per_kwh = 260
`

func TestParsePolicyOverlay(t *testing.T) {
	base := pricing.DefaultPolicy()
	p, err := ParsePolicy([]byte(overlay), base)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.Version != "margin-policy/2025.12.0" {
		t.Fatalf("version = %q", p.Version)
	}
	g := p.Guards[pricing.ClassBESS]
	if g.MarketPrice != 118 || g.MarketDate != "2025-12-01" {
		t.Fatalf("bess guard = %+v", g)
	}
	if g.CeilingPrice != base.Guards[pricing.ClassBESS].CeilingPrice || g.Unit != "kWh" {
		t.Fatalf("unset guard fields should keep base values: %+v", g)
	}
	if p.Risk[pricing.RiskElevated] != 0.03 || p.Segments["channel"] != 0.95 {
		t.Fatalf("risk/segments = %v / %v", p.Risk, p.Segments)
	}
	if pc := p.Products[pricing.ClassEngineering]; !pc.IsAdditive || pc.FixedAdder != 0.04 {
		t.Fatalf("engineering = %+v", pc)
	}
	if p.QuoteGuards.BESSFleetCeilingPerKWh != 260 || p.QuoteGuards.BlendedMarginMax != base.QuoteGuards.BlendedMarginMax {
		t.Fatalf("quote guards = %+v", p.QuoteGuards)
	}
	if len(p.Bands) != len(base.Bands) {
		t.Fatalf("bands = %d, want %d", len(p.Bands), len(base.Bands))
	}

	if base.Guards[pricing.ClassBESS].MarketPrice != 125 {
		t.Fatalf("base policy was mutated")
	}
}

func TestParsePolicyBandsReplaceBase(t *testing.T) {
	doc := `
[[bands]]
name = "small"
min_total = 0
max_total = 1000000
margin_min = 0.15
margin_max = 0.30
margin_target = 0.20

[[bands]]
name = "large"
min_total = 1000000
margin_min = 0.05
margin_max = 0.15
margin_target = 0.10
`
	p, err := ParsePolicy([]byte(doc), pricing.DefaultPolicy())
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if len(p.Bands) != 2 || p.Bands[1].MaxTotal != pricing.Unbounded {
		t.Fatalf("bands = %+v", p.Bands)
	}
	if b := p.MarginBand(2_000_000); b.Name != "large" {
		t.Fatalf("band = %q, want large", b.Name)
	}
}

func TestParsePolicyWithoutVersionTagsChangedTables(t *testing.T) {
	base := pricing.DefaultPolicy()

	same, err := ParsePolicy([]byte("[risk]\nstandard = 0\n"), base)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if same.Version != base.Version {
		t.Fatalf("no-op overlay version = %q, want %q", same.Version, base.Version)
	}

	changed, err := ParsePolicy([]byte("[guards.bess]\nceiling_price = 200\n"), base)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if !strings.HasPrefix(changed.Version, base.Version+"+file.") {
		t.Fatalf("changed overlay version = %q", changed.Version)
	}

	other, err := ParsePolicy([]byte("[guards.bess]\nceiling_price = 210\n"), base)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if other.Version == changed.Version {
		t.Fatalf("different overlays share version %q", other.Version)
	}
}

func TestParsePolicyRejectsInvalid(t *testing.T) {
	doc := `
[guards.bess]
quote_floor_price = 300
`
	_, err := ParsePolicy([]byte(doc), pricing.DefaultPolicy())
	if err == nil || !strings.Contains(err.Error(), "guard") {
		t.Fatalf("err = %v, want guard validation error", err)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	base := pricing.DefaultPolicy()
	p, err := LoadPolicyFile("", base)
	if err != nil || p.Version != base.Version {
		t.Fatalf("empty path: %v, %q", err, p.Version)
	}

	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = LoadPolicyFile(path, base)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	if p.Version != "margin-policy/2025.12.0" {
		t.Fatalf("version = %q", p.Version)
	}

	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.toml"), base); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
