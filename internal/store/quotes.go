// Package store persists quote snapshots and serves DB-backed overrides of
// the pricing and tariff tables.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/voltquote/internal/quote"
)

// ErrNotFound is returned when a quote id has no row.
var ErrNotFound = errors.New("not found")

const timeLayout = "2006-01-02 15:04:05"

// Quotes stores immutable quote snapshots.
type Quotes struct {
	db *sql.DB
}

// NewQuotes returns a quote store over db.
func NewQuotes(db *sql.DB) *Quotes {
	return &Quotes{db: db}
}

// Summary is a list row; the full quote stays in the snapshot.
type Summary struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	Industry      string    `json:"industry"`
	Subtype       string    `json:"subtype"`
	State         string    `json:"state"`
	PeakDemandKW  float64   `json:"peakDemandKW"`
	SellTotal     float64   `json:"sellTotal"`
	BlendedMargin float64   `json:"blendedMargin"`
	NeedsReview   bool      `json:"needsReview"`
	PolicyVersion string    `json:"policyVersion"`
	Checksum      string    `json:"checksum"`
}

// Save inserts a quote. Quotes are never updated in place.
func (s *Quotes) Save(ctx context.Context, q quote.Quote) error {
	snapshot, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (
			id,
			created_at,
			industry,
			subtype,
			state,
			peak_demand_kw,
			sell_total,
			blended_margin,
			needs_review,
			engine_version,
			policy_version,
			checksum,
			snapshot_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID,
		q.CreatedAt.UTC().Format(timeLayout),
		q.Inputs.Industry,
		q.Inputs.Subtype,
		q.Inputs.Location.State,
		q.Results.PeakDemandKW,
		q.Pricing.SellTotal,
		q.Pricing.BlendedMargin,
		q.NeedsReview(),
		q.Versions.Engine,
		q.Versions.Policy,
		q.Checksum,
		string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert quote %s: %w", q.ID, err)
	}
	return nil
}

// Get returns the stored snapshot without recalculating anything.
func (s *Quotes) Get(ctx context.Context, id string) (quote.Quote, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM quotes WHERE id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.Quote{}, fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return quote.Quote{}, fmt.Errorf("query quote %s: %w", id, err)
	}

	var q quote.Quote
	if err := json.Unmarshal([]byte(snapshot), &q); err != nil {
		return quote.Quote{}, fmt.Errorf("decode quote %s: %w", id, err)
	}
	return q, nil
}

// List returns newest quotes first, optionally filtered by industry, state or id.
func (s *Quotes) List(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			created_at,
			industry,
			subtype,
			state,
			peak_demand_kw,
			sell_total,
			blended_margin,
			needs_review,
			policy_version,
			checksum
		FROM quotes
		WHERE (? = '' OR industry LIKE ? OR state LIKE ? OR id LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
		LIMIT ?
	`, query, search, search, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]Summary, 0)
	for rows.Next() {
		var item Summary
		var createdAt string
		if err := rows.Scan(
			&item.ID,
			&createdAt,
			&item.Industry,
			&item.Subtype,
			&item.State,
			&item.PeakDemandKW,
			&item.SellTotal,
			&item.BlendedMargin,
			&item.NeedsReview,
			&item.PolicyVersion,
			&item.Checksum,
		); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		item.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		quotes = append(quotes, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return quotes, nil
}

// Delete removes a quote.
func (s *Quotes) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete quote %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quote %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("quote %s: %w", id, ErrNotFound)
	}
	return nil
}
