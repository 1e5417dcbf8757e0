package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/voltquote/internal/collab"
)

// RateTable serves utility rates from the utility_rates table and falls back
// to the static table for states without a row.
type RateTable struct {
	db *sql.DB
}

// NewRateTable returns a DB-backed rate source.
func NewRateTable(db *sql.DB) *RateTable {
	return &RateTable{db: db}
}

// UtilityRate implements collab.RateSource.
func (t *RateTable) UtilityRate(ctx context.Context, state string) (collab.UtilityRate, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return collab.StaticRate(state), nil
	}

	r := collab.UtilityRate{State: state}
	err := t.db.QueryRowContext(ctx, `
		SELECT energy_per_kwh, demand_per_kw, source
		FROM utility_rates
		WHERE state = ?
	`, state).Scan(&r.EnergyPerKWh, &r.DemandPerKW, &r.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return collab.StaticRate(state), nil
	}
	if err != nil {
		return collab.UtilityRate{}, fmt.Errorf("query utility rate %s: %w", state, err)
	}
	if r.Source == "" {
		r.Source = "utility_rates table: " + state
	}
	return r, nil
}

// Upsert stores a state rate override.
func (t *RateTable) Upsert(ctx context.Context, r collab.UtilityRate) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO utility_rates (state, energy_per_kwh, demand_per_kw, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(state) DO UPDATE SET
			energy_per_kwh = excluded.energy_per_kwh,
			demand_per_kw = excluded.demand_per_kw,
			source = excluded.source,
			updated_at = CURRENT_TIMESTAMP
	`, strings.ToUpper(r.State), r.EnergyPerKWh, r.DemandPerKW, r.Source)
	if err != nil {
		return fmt.Errorf("upsert utility rate %s: %w", r.State, err)
	}
	return nil
}
