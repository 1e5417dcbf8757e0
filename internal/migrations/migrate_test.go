package migrations

import (
	"path/filepath"
	"testing"

	"github.com/Simplici0/voltquote/internal/db"
)

func TestUpCreatesSchema(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Up(conn, "../../migrations"); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := Up(conn, "../../migrations"); err != nil {
		t.Fatalf("second Up should be a no-op: %v", err)
	}

	v, err := Version(conn)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}

	for _, table := range []string{"quotes", "price_guards", "policy_meta", "utility_rates"} {
		var n int
		if err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n); err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}
