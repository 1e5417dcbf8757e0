package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Simplici0/voltquote/internal/pricing"
)

const policyCacheKey = "policy"

// PolicySource merges DB price-guard overrides over a base policy and caches
// the merged snapshot for a TTL. Any DB or validation failure serves the
// base policy instead; callers always get a usable snapshot.
type PolicySource struct {
	db    *sql.DB
	base  pricing.Policy
	cache *Cache[pricing.Policy]
}

// NewPolicySource returns a source over db. A nil db serves base unchanged.
func NewPolicySource(db *sql.DB, base pricing.Policy, ttl time.Duration, obs CacheObserver) *PolicySource {
	return &PolicySource{db: db, base: base, cache: NewCache[pricing.Policy](ttl, obs)}
}

// Policy returns the current merged snapshot.
func (s *PolicySource) Policy(ctx context.Context) pricing.Policy {
	if p, ok := s.cache.Get(policyCacheKey); ok {
		return p
	}
	p, err := s.Load(ctx)
	if err != nil {
		slog.Warn("policy overrides unavailable, using base policy", "error", err, "version", s.base.Version)
		p = s.base
	}
	s.cache.Set(policyCacheKey, p)
	return p
}

// Invalidate forces the next Policy call to reload.
func (s *PolicySource) Invalidate() {
	s.cache.Invalidate(policyCacheKey)
}

// Load reads overrides and returns the validated merged policy. Its version is
// the base version when the rows match the base tables, and otherwise the base
// version tagged with a hash of the merged tables, so every edit shows up in
// the quotes priced under it.
func (s *PolicySource) Load(ctx context.Context) (pricing.Policy, error) {
	if s.db == nil {
		return s.base, nil
	}
	guards, err := s.guardOverrides(ctx)
	if err != nil {
		return pricing.Policy{}, err
	}
	seeded, err := s.metaVersion(ctx)
	if err != nil {
		return pricing.Policy{}, err
	}
	if seeded != "" && seeded != s.base.Version {
		slog.Warn("price guard rows were seeded for another base policy", "seeded", seeded, "base", s.base.Version)
	}
	if len(guards) == 0 {
		return s.base, nil
	}

	p := s.base.Clone()
	for class, g := range guards {
		p.Guards[class] = g
	}
	p.Version = p.DerivedVersion(s.base, "db")
	if err := p.Validate(); err != nil {
		return pricing.Policy{}, fmt.Errorf("validate merged policy: %w", err)
	}
	return p, nil
}

func (s *PolicySource) guardOverrides(ctx context.Context) (map[pricing.ProductClass]pricing.PriceGuard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			product_class,
			unit,
			market_price,
			market_source,
			market_date,
			procurement_buffer_pct,
			procurement_buffer_trigger,
			review_below_price,
			quote_floor_price,
			ceiling_price
		FROM price_guards
		WHERE active = 1
		ORDER BY product_class
	`)
	if err != nil {
		return nil, fmt.Errorf("query price guards: %w", err)
	}
	defer rows.Close()

	guards := make(map[pricing.ProductClass]pricing.PriceGuard)
	for rows.Next() {
		var class string
		var g pricing.PriceGuard
		if err := rows.Scan(
			&class,
			&g.Unit,
			&g.MarketPrice,
			&g.MarketSource,
			&g.MarketDate,
			&g.ProcurementBufferPct,
			&g.ProcurementBufferTrigger,
			&g.ReviewBelowPrice,
			&g.QuoteFloorPrice,
			&g.CeilingPrice,
		); err != nil {
			return nil, fmt.Errorf("scan price guard: %w", err)
		}
		guards[pricing.ProductClass(class)] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price guards: %w", err)
	}
	return guards, nil
}

func (s *PolicySource) metaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT version FROM policy_meta WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query policy version: %w", err)
	}
	return version, nil
}

// SaveGuard upserts one guard row and drops the cached snapshot. The merged
// policy is validated first so a bad row never reaches the table.
func (s *PolicySource) SaveGuard(ctx context.Context, class pricing.ProductClass, g pricing.PriceGuard) error {
	if s.db == nil {
		return errors.New("policy source has no database")
	}
	current, err := s.Load(ctx)
	if err != nil {
		current = s.base
	}
	candidate := current.Clone()
	candidate.Guards[class] = g
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("validate guard %s: %w", class, err)
	}

	_, err = s.db.ExecContext(ctx, `
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
		ON CONFLICT(product_class) DO UPDATE SET
			unit = excluded.unit,
			market_price = excluded.market_price,
			market_source = excluded.market_source,
			market_date = excluded.market_date,
			procurement_buffer_pct = excluded.procurement_buffer_pct,
			procurement_buffer_trigger = excluded.procurement_buffer_trigger,
			review_below_price = excluded.review_below_price,
			quote_floor_price = excluded.quote_floor_price,
			ceiling_price = excluded.ceiling_price,
			active = 1,
			updated_at = CURRENT_TIMESTAMP
	`,
		string(class),
		g.Unit,
		g.MarketPrice,
		g.MarketSource,
		g.MarketDate,
		g.ProcurementBufferPct,
		g.ProcurementBufferTrigger,
		g.ReviewBelowPrice,
		g.QuoteFloorPrice,
		g.CeilingPrice,
	)
	if err != nil {
		return fmt.Errorf("upsert price guard %s: %w", class, err)
	}
	s.Invalidate()
	return nil
}
