package pricing

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func ptr(f float64) *float64 { return &f }

func bessItem(unitCost, kwh float64) LineItem {
	return LineItem{ID: "bess", Description: "Battery", ProductClass: ClassBESS, Quantity: kwh, Unit: "kWh", UnitCost: unitCost}
}

func bosItem(cost float64) LineItem {
	return LineItem{ID: "bos", Description: "Balance of system", ProductClass: ClassBOS, Quantity: 1, Unit: "lot", UnitCost: cost}
}

func hasClamp(res Result, reason ClampReason) bool {
	for _, c := range res.ClampEvents {
		if c.Reason == reason {
			return true
		}
	}
	return false
}

func TestDefaultPolicyIsValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBandsAreContiguousAndExhaustive(t *testing.T) {
	p := DefaultPolicy()
	for i := 0; i+1 < len(p.Bands); i++ {
		if p.Bands[i].MaxTotal != p.Bands[i+1].MinTotal {
			t.Fatalf("band %d max %v != band %d min %v", i, p.Bands[i].MaxTotal, i+1, p.Bands[i+1].MinTotal)
		}
	}

	for _, x := range []float64{0, 1, 499_999.99, 500_000, 2_999_999, 3_000_000, 19_999_999, 20_000_000, 1e12} {
		matches := 0
		for _, b := range p.Bands {
			if b.Contains(x) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("total %v matched %d bands, want 1", x, matches)
		}
		if !p.MarginBand(x).Contains(x) {
			t.Fatalf("MarginBand(%v) returned %q which does not contain it", x, p.MarginBand(x).Name)
		}
	}
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	p := DefaultPolicy().Clone()
	p.Bands[1].MinTotal = 600_000
	g := p.Guards[ClassBESS]
	g.QuoteFloorPrice = 90
	p.Guards[ClassBESS] = g

	err := p.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"band", "guard"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}

func TestBandJSONKeepsUnboundedTop(t *testing.T) {
	last := DefaultPolicy().Bands[6]
	b, err := json.Marshal(last)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"maxTotal":null`) {
		t.Fatalf("json = %s", b)
	}
	var back MarginBand
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != last {
		t.Fatalf("round trip = %+v, want %+v", back, last)
	}
}

func TestCloneDoesNotShareTables(t *testing.T) {
	base := DefaultPolicy()
	c := base.Clone()
	c.Risk[RiskElevated] = 0.5
	c.Bands[0].MarginTarget = 0.9
	if base.Risk[RiskElevated] != 0.02 || base.Bands[0].MarginTarget != 0.25 {
		t.Fatalf("clone mutated the source policy")
	}
}

func TestSellNeverBelowObtainable(t *testing.T) {
	items := []LineItem{
		bessItem(300, 2000),
		bessItem(80, 500),
		{ID: "solar", ProductClass: ClassSolar, Quantity: 250_000, Unit: "W", UnitCost: 2.0},
		{ID: "gen", ProductClass: ClassGenerator, Quantity: 500, Unit: "kW", UnitCost: 320},
		{ID: "pcs", ProductClass: ClassInverter, Quantity: 500, Unit: "kW", UnitCost: 95},
		{ID: "ctl", ProductClass: ClassController, Quantity: 1, Unit: "each", UnitCost: 45_000},
		{ID: "eng", ProductClass: ClassEngineering, Quantity: 1, Unit: "lot", UnitCost: 25_000},
	}
	for _, maxMargin := range []*float64{nil, ptr(0), ptr(0.05), ptr(-0.1)} {
		for _, total := range []float64{0, 250_000, 4_000_000, 75_000_000} {
			res := Apply(Request{LineItems: items, TotalBaseCost: total, MaxMargin: maxMargin})
			for _, lr := range res.LineItems {
				if lr.SellPrice < lr.ObtainableCost || lr.ObtainableCost < 0 {
					t.Fatalf("line %s: sell %v obtainable %v", lr.ID, lr.SellPrice, lr.ObtainableCost)
				}
				if lr.SellUnitPrice < lr.ObtainableUnitCost {
					t.Fatalf("line %s: unit sell %v below obtainable %v", lr.ID, lr.SellUnitPrice, lr.ObtainableUnitCost)
				}
			}
			if res.SellTotal < res.ObtainableTotal {
				t.Fatalf("sell total %v below obtainable %v", res.SellTotal, res.ObtainableTotal)
			}
		}
	}
}

func TestMaxMarginZeroSellsAtObtainable(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, MaxMargin: ptr(0)})
	nearlyEqual(t, "sell", res.SellTotal, 100_000)
	nearlyEqual(t, "margin", res.BlendedMargin, 0)
	if !hasClamp(res, ReasonMaxMargin) {
		t.Fatalf("expected max_margin clamp, got %+v", res.ClampEvents)
	}
	if res.PassesQuoteLevelGuards {
		t.Fatalf("0%% blended margin should fail the sanity band")
	}
}

func TestLargerDealsGetSmallerMargin(t *testing.T) {
	small := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000})
	large := Apply(Request{LineItems: []LineItem{bosItem(50_000_000)}, TotalBaseCost: 50_000_000})

	nearlyEqual(t, "small margin", small.BlendedMargin, 0.25)
	nearlyEqual(t, "large margin", large.BlendedMargin, 0.06)
	if !(small.BlendedMarginPercent > large.BlendedMarginPercent) {
		t.Fatalf("small deal %v%% should exceed large deal %v%%", small.BlendedMarginPercent, large.BlendedMarginPercent)
	}

	p := DefaultPolicy()
	prev := math.Inf(1)
	for _, total := range []float64{1e4, 4e5, 1e6, 2e6, 4e6, 8e6, 1.5e7, 3e7, 1e8} {
		m := p.Apply(Request{LineItems: []LineItem{bosItem(total)}, TotalBaseCost: total}).BlendedMargin
		if m > prev {
			t.Fatalf("margin rose from %v to %v at total %v", prev, m, total)
		}
		prev = m
	}
}

func TestSegmentAndRiskOrdering(t *testing.T) {
	items := []LineItem{bosItem(2_000_000)}
	direct := Apply(Request{LineItems: items, TotalBaseCost: 2_000_000, Segment: SegmentDirect})
	for _, seg := range []CustomerSegment{SegmentGovernment, SegmentEPCPartner, SegmentUtility} {
		got := Apply(Request{LineItems: items, TotalBaseCost: 2_000_000, Segment: seg})
		if got.BlendedMargin > direct.BlendedMargin {
			t.Fatalf("%s margin %v above direct %v", seg, got.BlendedMargin, direct.BlendedMargin)
		}
	}

	standard := Apply(Request{LineItems: items, TotalBaseCost: 2_000_000, RiskLevel: RiskStandard})
	risky := Apply(Request{LineItems: items, TotalBaseCost: 2_000_000, RiskLevel: RiskHighComplexity})
	if risky.BlendedMargin < standard.BlendedMargin {
		t.Fatalf("high_complexity margin %v below standard %v", risky.BlendedMargin, standard.BlendedMargin)
	}
	nearlyEqual(t, "high complexity margin", risky.BlendedMargin, 0.20)
}

func TestProcurementBufferActivation(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bessItem(100, 1000), bessItem(120, 1000)}, TotalBaseCost: 220_000})

	cheap, normal := res.LineItems[0], res.LineItems[1]
	if !cheap.ProcurementBufferApplied || !(cheap.ObtainableCost > cheap.MarketCost) {
		t.Fatalf("below-trigger item should be buffered: %+v", cheap)
	}
	nearlyEqual(t, "buffered unit", cheap.ObtainableUnitCost, 110)
	if normal.ProcurementBufferApplied || normal.ObtainableCost != normal.MarketCost {
		t.Fatalf("above-trigger item should not be buffered: %+v", normal)
	}
}

func TestReviewEventBelowThreshold(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bessItem(80, 1000)}, TotalBaseCost: 80_000})

	if len(res.ReviewEvents) == 0 || !res.NeedsHumanReview {
		t.Fatalf("expected review event, got %+v", res.ReviewEvents)
	}
	if res.ReviewEvents[0].Threshold != 100 {
		t.Fatalf("threshold = %v, want 100", res.ReviewEvents[0].Threshold)
	}
	lr := res.LineItems[0]
	if lr.SellUnitPrice < 115 {
		t.Fatalf("sell unit %v below quote floor 115", lr.SellUnitPrice)
	}
	if !hasClamp(res, ReasonQuoteFloor) {
		t.Fatalf("expected quote floor clamp, got %+v", res.ClampEvents)
	}
	nearlyEqual(t, "market unit", lr.MarketUnitCost, 80)
}

func TestReviewDoesNotFireAboveThreshold(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bessItem(140, 1000)}, TotalBaseCost: 140_000})
	if res.NeedsHumanReview || len(res.ReviewEvents) != 0 {
		t.Fatalf("unexpected review events %+v", res.ReviewEvents)
	}
}

func TestCeilingProtectsObtainableCost(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bessItem(300, 100)}, TotalBaseCost: 30_000})
	lr := res.LineItems[0]
	nearlyEqual(t, "sell unit", lr.SellUnitPrice, 300)
	if !hasClamp(res, ReasonObtainableProtected) {
		t.Fatalf("expected obtainable_cost_protected clamp, got %+v", res.ClampEvents)
	}

	res = Apply(Request{LineItems: []LineItem{bessItem(220, 100)}, TotalBaseCost: 22_000})
	nearlyEqual(t, "sell unit at ceiling", res.LineItems[0].SellUnitPrice, 250)
	if !hasClamp(res, ReasonCeiling) {
		t.Fatalf("expected ceiling clamp, got %+v", res.ClampEvents)
	}
}

func TestForceMarginSkipsComposition(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, ForceMargin: ptr(0.5), RiskLevel: RiskHighComplexity})
	nearlyEqual(t, "forced margin", res.BlendedMargin, 0.5)
	if hasClamp(res, ReasonBandCeiling) {
		t.Fatalf("forced margin must not be band-clamped")
	}

	capped := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, ForceMargin: ptr(0.5), MaxMargin: ptr(0.1)})
	nearlyEqual(t, "capped margin", capped.BlendedMargin, 0.1)
}

func TestAdditiveProductMargin(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{{ID: "eng", ProductClass: ClassEngineering, Quantity: 1, UnitCost: 10_000}}, TotalBaseCost: 1_000_000})
	nearlyEqual(t, "engineering margin", res.LineItems[0].AppliedMargin, 0.25)
}

func TestBandClampLogged(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, Segment: SegmentUtility})
	nearlyEqual(t, "utility margin", res.BlendedMargin, 0.2)
	if hasClamp(res, ReasonBandFloor) {
		t.Fatalf("margin on the band floor should not clamp")
	}

	ceiling := Apply(Request{LineItems: []LineItem{{ID: "ctl", ProductClass: ClassController, Quantity: 1, UnitCost: 100_000}}, TotalBaseCost: 2_000_000, RiskLevel: RiskHighComplexity})
	if !hasClamp(ceiling, ReasonBandCeiling) {
		t.Fatalf("expected band ceiling clamp, got %+v", ceiling.ClampEvents)
	}
	nearlyEqual(t, "ceiling margin", ceiling.LineItems[0].AppliedMargin, 0.22)

	floor := Apply(Request{LineItems: []LineItem{{ID: "gen", ProductClass: ClassGenerator, Quantity: 100, Unit: "kW", UnitCost: 600}}, TotalBaseCost: 2_000_000, Segment: SegmentEPCPartner})
	if !hasClamp(floor, ReasonBandFloor) {
		t.Fatalf("expected band floor clamp, got %+v", floor.ClampEvents)
	}
	nearlyEqual(t, "floor margin", floor.LineItems[0].AppliedMargin, 0.12)
}

func TestQuoteLevelGuards(t *testing.T) {
	empty := Apply(Request{})
	if empty.PassesQuoteLevelGuards || len(empty.Warnings) == 0 {
		t.Fatalf("empty quote should warn and fail guards")
	}

	fleet := Apply(Request{
		LineItems:     []LineItem{bessItem(240, 1000)},
		TotalBaseCost: 240_000,
		Units:         QuoteUnits{StorageKWh: 800},
	})
	if fleet.PassesQuoteLevelGuards {
		t.Fatalf("fleet $/kWh above ceiling should fail guards")
	}
	found := false
	for _, w := range fleet.Warnings {
		if strings.Contains(w, "fleet") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fleet warning, got %v", fleet.Warnings)
	}

	ok := Apply(Request{LineItems: []LineItem{bosItem(1_000_000)}, TotalBaseCost: 1_000_000})
	if !ok.PassesQuoteLevelGuards || len(ok.Warnings) != 0 {
		t.Fatalf("plain quote should pass: %v", ok.Warnings)
	}
}

func TestUnknownRiskAndSegmentFallBack(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, RiskLevel: "extreme", Segment: "friends"})
	if res.RiskLevel != RiskStandard || res.Segment != SegmentDirect {
		t.Fatalf("fallback = %s/%s", res.RiskLevel, res.Segment)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", res.Warnings)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	req := Request{
		LineItems: []LineItem{
			bessItem(98.5, 4000),
			{ID: "solar", ProductClass: ClassSolar, Quantity: 500_000, Unit: "W", UnitCost: 0.68},
			{ID: "inst", ProductClass: ClassInstallation, Quantity: 1, UnitCost: 120_000},
		},
		TotalBaseCost: 900_000,
		RiskLevel:     RiskElevated,
		Segment:       SegmentGovernment,
	}
	p := DefaultPolicy()
	a, b := p.Apply(req), p.Apply(req)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Apply is not deterministic")
	}
}

func TestOutOfRangeNumbersAreClamped(t *testing.T) {
	cases := []struct {
		name   string
		req    Request
		reason ClampReason
	}{
		{
			name:   "huge unit cost",
			req:    Request{LineItems: []LineItem{{ID: "bos", ProductClass: ClassBOS, Quantity: 1, UnitCost: 1.7e308}}},
			reason: ReasonSanityLimit,
		},
		{
			name:   "infinite unit cost",
			req:    Request{LineItems: []LineItem{{ID: "bos", ProductClass: ClassBOS, Quantity: 1, UnitCost: math.Inf(1)}}},
			reason: ReasonNotFinite,
		},
		{
			name:   "NaN quantity",
			req:    Request{LineItems: []LineItem{bessItem(130, math.NaN())}},
			reason: ReasonNotFinite,
		},
		{
			name:   "huge forced margin",
			req:    Request{LineItems: []LineItem{{ID: "bos", ProductClass: ClassBOS, Quantity: 1, UnitCost: 5e11}}, ForceMargin: ptr(1e300)},
			reason: ReasonNotFinite,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Apply(tc.req)
			if !hasClamp(res, tc.reason) {
				t.Fatalf("clamps = %+v, want %s", res.ClampEvents, tc.reason)
			}
			for _, v := range []float64{res.MarketTotal, res.ObtainableTotal, res.SellTotal} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("non-finite total in %+v", res)
				}
			}
			if res.SellTotal < res.ObtainableTotal {
				t.Fatalf("sell %v below obtainable %v", res.SellTotal, res.ObtainableTotal)
			}
			if _, err := json.Marshal(res); err != nil {
				t.Fatalf("result does not encode: %v", err)
			}
		})
	}
}

func TestNonFiniteOverridesIgnored(t *testing.T) {
	res := Apply(Request{LineItems: []LineItem{bosItem(100_000)}, TotalBaseCost: 100_000, ForceMargin: ptr(math.NaN())})
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "force margin") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if res.LineItems[0].AppliedMargin != res.LineItems[0].TargetMargin || math.IsNaN(res.LineItems[0].AppliedMargin) {
		t.Fatalf("line = %+v", res.LineItems[0])
	}
}

func TestFingerprintTracksTablesNotVersion(t *testing.T) {
	base := DefaultPolicy()
	renamed := base.Clone()
	renamed.Version = "margin-policy/renamed"
	if renamed.Fingerprint() != base.Fingerprint() {
		t.Fatalf("version should not change the fingerprint")
	}
	if got := renamed.DerivedVersion(base, "db"); got != base.Version {
		t.Fatalf("unchanged tables derived %q, want %q", got, base.Version)
	}

	edited := base.Clone()
	g := edited.Guards[ClassBESS]
	g.CeilingPrice = 200
	edited.Guards[ClassBESS] = g
	v := edited.DerivedVersion(base, "db")
	if !strings.HasPrefix(v, base.Version+"+db.") || len(v) != len(base.Version)+len("+db.")+8 {
		t.Fatalf("derived version = %q", v)
	}

	g.CeilingPrice = 210
	edited.Guards[ClassBESS] = g
	if edited.DerivedVersion(base, "db") == v {
		t.Fatalf("different tables share version %q", v)
	}
}

func TestValidateErrorsAreStable(t *testing.T) {
	p := DefaultPolicy().Clone()
	for _, class := range []ProductClass{ClassEngineering, ClassInstallation, "zeta", "alpha"} {
		p.Products[class] = ProductMarginConfig{IsAdditive: true, FixedAdder: 0.01, MarginMultiplier: 1}
	}
	first := p.Validate().Error()
	for i := 0; i < 20; i++ {
		if got := p.Validate().Error(); got != first {
			t.Fatalf("validation message changed between runs:\n%s\n%s", first, got)
		}
	}
	if strings.Index(first, `"alpha"`) > strings.Index(first, `"zeta"`) {
		t.Fatalf("products not reported in sorted order: %s", first)
	}
}
