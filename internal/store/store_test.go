package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/db"
	"github.com/Simplici0/voltquote/internal/facility"
	"github.com/Simplici0/voltquote/internal/migrations"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/quote"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrations.Up(conn, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func buildQuote(t *testing.T, at time.Time, id, industry string, attrs facility.Attributes) quote.Quote {
	t.Helper()

	a := quote.New()
	a.Now = func() time.Time { return at }
	a.NewID = func() string { return id }
	q, err := a.Build(context.Background(), quote.Request{
		Location:   quote.Location{State: "TX"},
		Industry:   industry,
		Attributes: attrs,
	})
	if err != nil {
		t.Fatalf("build quote: %v", err)
	}
	return q
}

func TestQuotesSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewQuotes(openTestDB(t))
	q := buildQuote(t, time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC), "q_1", "hotel", facility.Attributes{"roomCount": 150.0})

	if err := s.Save(ctx, q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "q_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Checksum != q.Checksum || got.Versions != q.Versions {
		t.Fatalf("checksum/versions changed: %+v vs %+v", got.Versions, q.Versions)
	}
	if got.Pricing.SellTotal != q.Pricing.SellTotal || len(got.Pricing.LineItems) != len(q.Pricing.LineItems) {
		t.Fatalf("pricing changed: %v vs %v", got.Pricing.SellTotal, q.Pricing.SellTotal)
	}
	if got.Pricing.Band.MaxTotal != q.Pricing.Band.MaxTotal {
		t.Fatalf("band max = %v, want %v", got.Pricing.Band.MaxTotal, q.Pricing.Band.MaxTotal)
	}
	if len(got.Steps) != len(q.Steps) {
		t.Fatalf("steps = %d, want %d", len(got.Steps), len(q.Steps))
	}
}

func TestQuotesGetMissing(t *testing.T) {
	s := NewQuotes(openTestDB(t))
	_, err := s.Get(context.Background(), "q_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "q_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v, want ErrNotFound", err)
	}
}

func TestQuotesListNewestFirstAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewQuotes(openTestDB(t))
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	for _, q := range []quote.Quote{
		buildQuote(t, base, "q_a", "hotel", facility.Attributes{"roomCount": 80.0}),
		buildQuote(t, base.Add(time.Hour), "q_b", "car-wash", facility.Attributes{"bayCount": 4.0}),
		buildQuote(t, base.Add(2*time.Hour), "q_c", "hotel", facility.Attributes{"roomCount": 200.0}),
	} {
		if err := s.Save(ctx, q); err != nil {
			t.Fatalf("Save %s: %v", q.ID, err)
		}
	}

	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "q_c" || all[2].ID != "q_a" {
		t.Fatalf("order = %+v", all)
	}
	if !all[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("created at = %v", all[0].CreatedAt)
	}

	hotels, err := s.List(ctx, "hotel", 10)
	if err != nil {
		t.Fatalf("List hotel: %v", err)
	}
	if len(hotels) != 2 {
		t.Fatalf("hotel rows = %d, want 2", len(hotels))
	}

	if err := s.Delete(ctx, "q_b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	left, _ := s.List(ctx, "", 0)
	if len(left) != 2 {
		t.Fatalf("rows after delete = %d, want 2", len(left))
	}
}

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }

func TestCacheExpiry(t *testing.T) {
	obs := &countingObserver{}
	c := NewCache[int](time.Minute, obs)
	now := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok := c.Get("k"); ok {
		t.Fatalf("empty cache hit")
	}
	c.Set("k", 7)
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatalf("Get = %v,%v, want 7,true", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry served")
	}
	if obs.hits != 1 || obs.misses != 2 {
		t.Fatalf("hits/misses = %d/%d, want 1/2", obs.hits, obs.misses)
	}
}

func TestPolicySourceWithoutOverridesServesBase(t *testing.T) {
	src := NewPolicySource(openTestDB(t), pricing.DefaultPolicy(), time.Minute, nil)
	p := src.Policy(context.Background())
	if p.Version != pricing.DefaultPolicyVersion {
		t.Fatalf("version = %q, want %q", p.Version, pricing.DefaultPolicyVersion)
	}
}

func TestPolicySourceMergesGuardOverrides(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	if _, err := conn.Exec(`INSERT INTO policy_meta (id, version) VALUES (1, 'margin-policy/2025.12.0')`); err != nil {
		t.Fatalf("insert meta: %v", err)
	}
	if _, err := conn.Exec(`
		INSERT INTO price_guards (product_class, unit, market_price, review_below_price, quote_floor_price, ceiling_price)
		VALUES ('bess', 'kWh', 118, 95, 110, 240)
	`); err != nil {
		t.Fatalf("insert guard: %v", err)
	}

	base := pricing.DefaultPolicy()
	src := NewPolicySource(conn, base, time.Minute, nil)
	p := src.Policy(ctx)
	if !strings.HasPrefix(p.Version, base.Version+"+db.") {
		t.Fatalf("version = %q, want base version with a content tag", p.Version)
	}
	if g := p.Guards[pricing.ClassBESS]; g.MarketPrice != 118 || g.CeilingPrice != 240 {
		t.Fatalf("bess guard = %+v", g)
	}
	if p.Guards[pricing.ClassInverter] != pricing.DefaultPolicy().Guards[pricing.ClassInverter] {
		t.Fatalf("inverter guard should keep the base values")
	}

	// Cached until invalidated.
	if _, err := conn.Exec(`UPDATE price_guards SET market_price = 121 WHERE product_class = 'bess'`); err != nil {
		t.Fatalf("update guard: %v", err)
	}
	if got := src.Policy(ctx).Guards[pricing.ClassBESS].MarketPrice; got != 118 {
		t.Fatalf("cached market = %v, want 118", got)
	}
	src.Invalidate()
	if got := src.Policy(ctx).Guards[pricing.ClassBESS].MarketPrice; got != 121 {
		t.Fatalf("reloaded market = %v, want 121", got)
	}
}

func TestPolicySourceFallsBackOnInvalidOverride(t *testing.T) {
	conn := openTestDB(t)
	// Satisfies the table CHECK but has no unit, which Validate rejects.
	if _, err := conn.Exec(`
		INSERT INTO price_guards (product_class, unit, market_price, review_below_price, quote_floor_price, ceiling_price)
		VALUES ('bess', '', -5, 95, 110, 240)
	`); err != nil {
		t.Fatalf("insert guard: %v", err)
	}

	src := NewPolicySource(conn, pricing.DefaultPolicy(), time.Minute, nil)
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
	p := src.Policy(context.Background())
	if p.Version != pricing.DefaultPolicyVersion || p.Guards[pricing.ClassBESS].MarketPrice != 125 {
		t.Fatalf("expected base policy, got %q / %+v", p.Version, p.Guards[pricing.ClassBESS])
	}
}

func TestPolicySourceFallsBackOnClosedDB(t *testing.T) {
	conn := openTestDB(t)
	conn.Close()

	src := NewPolicySource(conn, pricing.DefaultPolicy(), time.Minute, nil)
	if p := src.Policy(context.Background()); p.Version != pricing.DefaultPolicyVersion {
		t.Fatalf("version = %q", p.Version)
	}
}

func TestRateTable(t *testing.T) {
	ctx := context.Background()
	rt := NewRateTable(openTestDB(t))

	if err := rt.Upsert(ctx, collab.UtilityRate{State: "tx", EnergyPerKWh: 0.14, DemandPerKW: 17, Source: "ERCOT commercial 2025"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := rt.UtilityRate(ctx, "TX")
	if err != nil {
		t.Fatalf("UtilityRate: %v", err)
	}
	if got.EnergyPerKWh != 0.14 || got.DemandPerKW != 17 || got.State != "TX" {
		t.Fatalf("rate = %+v", got)
	}

	fallback, err := rt.UtilityRate(ctx, "CA")
	if err != nil {
		t.Fatalf("UtilityRate CA: %v", err)
	}
	if fallback != collab.StaticRate("CA") {
		t.Fatalf("fallback = %+v, want static table", fallback)
	}
}

func TestPolicySourceSaveGuard(t *testing.T) {
	ctx := context.Background()
	src := NewPolicySource(openTestDB(t), pricing.DefaultPolicy(), time.Hour, nil)
	_ = src.Policy(ctx)

	g := pricing.DefaultPolicy().Guards[pricing.ClassInverter]
	g.MarketPrice = 84
	if err := src.SaveGuard(ctx, pricing.ClassInverter, g); err != nil {
		t.Fatalf("SaveGuard: %v", err)
	}
	p := src.Policy(ctx)
	if p.Guards[pricing.ClassInverter].MarketPrice != 84 {
		t.Fatalf("inverter market = %v, want 84", p.Guards[pricing.ClassInverter].MarketPrice)
	}
	if !strings.HasPrefix(p.Version, pricing.DefaultPolicyVersion+"+db.") {
		t.Fatalf("version = %q", p.Version)
	}

	bad := g
	bad.QuoteFloorPrice = bad.CeilingPrice + 1
	if err := src.SaveGuard(ctx, pricing.ClassInverter, bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPolicyVersionFollowsGuardEdits(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	base := pricing.DefaultPolicy()
	src := NewPolicySource(conn, base, time.Hour, nil)

	// Rows equal to the base tables keep the base version.
	if err := src.SaveGuard(ctx, pricing.ClassBESS, base.Guards[pricing.ClassBESS]); err != nil {
		t.Fatalf("SaveGuard: %v", err)
	}
	if v := src.Policy(ctx).Version; v != base.Version {
		t.Fatalf("unchanged guard version = %q, want %q", v, base.Version)
	}

	g := base.Guards[pricing.ClassBESS]
	g.CeilingPrice = 200
	if err := src.SaveGuard(ctx, pricing.ClassBESS, g); err != nil {
		t.Fatalf("SaveGuard: %v", err)
	}
	first := src.Policy(ctx).Version
	if first == base.Version {
		t.Fatalf("guard edit did not change the version")
	}

	g.CeilingPrice = 220
	if err := src.SaveGuard(ctx, pricing.ClassBESS, g); err != nil {
		t.Fatalf("SaveGuard: %v", err)
	}
	second := src.Policy(ctx).Version
	if second == first {
		t.Fatalf("two different edits share version %q", second)
	}
}

func TestNewBaseVersionWinsOverSeededRow(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	if _, err := conn.Exec(`INSERT INTO policy_meta (id, version) VALUES (1, ?)`, pricing.DefaultPolicyVersion); err != nil {
		t.Fatalf("insert meta: %v", err)
	}

	next := pricing.DefaultPolicy().Clone()
	next.Version = "margin-policy/2026.01.0"
	next.Bands[0].MarginTarget = 0.30
	g := next.Guards[pricing.ClassBESS]
	g.CeilingPrice = 200
	if err := NewPolicySource(conn, pricing.DefaultPolicy(), time.Minute, nil).SaveGuard(ctx, pricing.ClassBESS, g); err != nil {
		t.Fatalf("SaveGuard: %v", err)
	}

	p := NewPolicySource(conn, next, time.Minute, nil).Policy(ctx)
	if !strings.HasPrefix(p.Version, "margin-policy/2026.01.0") {
		t.Fatalf("served version = %q, want the new base version", p.Version)
	}
	if p.Bands[0].MarginTarget != 0.30 || p.Guards[pricing.ClassBESS].CeilingPrice != 200 {
		t.Fatalf("merged policy = %+v / %+v", p.Bands[0], p.Guards[pricing.ClassBESS])
	}
}
