package seed

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/db"
	"github.com/Simplici0/voltquote/internal/migrations"
	"github.com/Simplici0/voltquote/internal/pricing"
)

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	database := openMigrated(t)
	policy := pricing.DefaultPolicy()
	cfg := Config{Policy: policy, SeedRates: true}
	wantInserts := 1 + len(policy.Guards) + len(collab.StaticStates())

	for i := 0; i < 10; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != wantInserts {
				t.Fatalf("expected %d inserts in first run, got %d", wantInserts, stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM policy_meta WHERE version = ?`, policy.Version, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM price_guards WHERE active = 1`, nil, len(policy.Guards))
	assertCount(t, database, `SELECT COUNT(*) FROM utility_rates WHERE state = ?`, "CA", 1)

	var floor float64
	if err := database.QueryRow(`SELECT quote_floor_price FROM price_guards WHERE product_class = ?`, "bess").Scan(&floor); err != nil {
		t.Fatalf("query bess floor: %v", err)
	}
	if floor != policy.Guards[pricing.ClassBESS].QuoteFloorPrice {
		t.Fatalf("bess floor = %v, want %v", floor, policy.Guards[pricing.ClassBESS].QuoteFloorPrice)
	}
}

func TestRunKeepsOperatorEdits(t *testing.T) {
	t.Parallel()

	database := openMigrated(t)
	if _, err := Run(database, Config{}); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if _, err := database.Exec(`UPDATE price_guards SET market_price = 131 WHERE product_class = 'bess'`); err != nil {
		t.Fatalf("edit guard: %v", err)
	}
	if _, err := Run(database, Config{}); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var market float64
	if err := database.QueryRow(`SELECT market_price FROM price_guards WHERE product_class = 'bess'`).Scan(&market); err != nil {
		t.Fatalf("query market: %v", err)
	}
	if market != 131 {
		t.Fatalf("market = %v, want 131", market)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM utility_rates`, nil, 0)
}

func TestRunFollowsBaseVersion(t *testing.T) {
	t.Parallel()

	database := openMigrated(t)
	if _, err := Run(database, Config{}); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	next := pricing.DefaultPolicy().Clone()
	next.Version = "margin-policy/2026.01.0"
	stats, err := Run(database, Config{Policy: next})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if stats.Inserts != 0 || stats.Updates != 1 {
		t.Fatalf("stats = %+v, want 0 inserts and 1 update", stats)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM policy_meta WHERE version = ?`, next.Version, 1)

	stats, err = Run(database, Config{Policy: next})
	if err != nil {
		t.Fatalf("reseed again: %v", err)
	}
	if stats.Updates != 0 {
		t.Fatalf("unchanged version should not update, got %+v", stats)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
