package seed

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/pricing"
)

// Config selects what the startup seed writes.
type Config struct {
	Policy pricing.Policy
	// Rates are written when SeedRates is set; nil means the static table.
	Rates     []collab.UtilityRate
	SeedRates bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way. Existing guard and rate
// rows are left untouched so operator edits survive restarts; the policy_meta
// row follows the base policy version.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	if cfg.Policy.Version == "" {
		cfg.Policy = pricing.DefaultPolicy()
	}
	if cfg.SeedRates && cfg.Rates == nil {
		cfg.Rates = collab.StaticStates()
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensurePolicyMeta(tx, cfg.Policy.Version, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensurePriceGuards(tx, cfg.Policy.Guards, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if cfg.SeedRates {
		if err := ensureUtilityRates(tx, cfg.Rates, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensurePolicyMeta(tx *sql.Tx, version string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM policy_meta WHERE id = 1 LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check policy meta existence: %w", err)
	}
	if exists {
		res, err := tx.Exec(`
			UPDATE policy_meta
			SET version = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = 1 AND version <> ?
		`, version, version)
		if err != nil {
			return fmt.Errorf("update policy meta: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.Updates++
		}
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO policy_meta (id, version) VALUES (1, ?)`, version); err != nil {
		return fmt.Errorf("insert policy meta: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensurePriceGuards(tx *sql.Tx, guards map[pricing.ProductClass]pricing.PriceGuard, stats *Stats) error {
	classes := make([]string, 0, len(guards))
	for class := range guards {
		classes = append(classes, string(class))
	}
	sort.Strings(classes)

	for _, class := range classes {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM price_guards WHERE product_class = ? LIMIT 1)`, class).Scan(&exists); err != nil {
			return fmt.Errorf("check price guard %s existence: %w", class, err)
		}
		if exists {
			continue
		}

		g := guards[pricing.ProductClass(class)]
		if _, err := tx.Exec(`
			INSERT INTO price_guards (
				product_class,
				unit,
				market_price,
				market_source,
				market_date,
				procurement_buffer_pct,
				procurement_buffer_trigger,
				review_below_price,
				quote_floor_price,
				ceiling_price,
				active
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`,
			class,
			g.Unit,
			g.MarketPrice,
			g.MarketSource,
			g.MarketDate,
			g.ProcurementBufferPct,
			g.ProcurementBufferTrigger,
			g.ReviewBelowPrice,
			g.QuoteFloorPrice,
			g.CeilingPrice,
		); err != nil {
			return fmt.Errorf("insert price guard %s: %w", class, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureUtilityRates(tx *sql.Tx, rates []collab.UtilityRate, stats *Stats) error {
	for _, r := range rates {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM utility_rates WHERE state = ? LIMIT 1)`, r.State).Scan(&exists); err != nil {
			return fmt.Errorf("check utility rate %s existence: %w", r.State, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO utility_rates (state, energy_per_kwh, demand_per_kw, source)
			VALUES (?, ?, ?, ?)
		`, r.State, r.EnergyPerKWh, r.DemandPerKW, r.Source); err != nil {
			return fmt.Errorf("insert utility rate %s: %w", r.State, err)
		}
		stats.Inserts++
	}
	return nil
}
