package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"
)

// DefaultPolicyVersion identifies the built-in policy tables.
const DefaultPolicyVersion = "margin-policy/2025.11.1"

// ProductClass groups line items that share margin and guard rules.
type ProductClass string

const (
	ClassBESS         ProductClass = "bess"
	ClassInverter     ProductClass = "inverter"
	ClassSolar        ProductClass = "solar"
	ClassGenerator    ProductClass = "generator"
	ClassEVCharger    ProductClass = "ev_charger"
	ClassController   ProductClass = "microgrid_controller"
	ClassBOS          ProductClass = "bos"
	ClassInstallation ProductClass = "installation"
	ClassEngineering  ProductClass = "engineering"
)

// RiskLevel adds a flat margin for project complexity.
type RiskLevel string

const (
	RiskStandard       RiskLevel = "standard"
	RiskElevated       RiskLevel = "elevated"
	RiskHighComplexity RiskLevel = "high_complexity"
)

// CustomerSegment scales the margin for the buyer type.
type CustomerSegment string

const (
	SegmentDirect     CustomerSegment = "direct"
	SegmentEPCPartner CustomerSegment = "epc_partner"
	SegmentGovernment CustomerSegment = "government"
	SegmentUtility    CustomerSegment = "utility"
)

// Unbounded marks the open upper end of the last margin band.
var Unbounded = math.Inf(1)

// MarginBand maps a deal-size interval [MinTotal, MaxTotal) to margin limits.
// Margins are fractions: 0.25 is 25%.
type MarginBand struct {
	Name         string
	MinTotal     float64
	MaxTotal     float64
	MarginMin    float64
	MarginMax    float64
	MarginTarget float64
}

// Contains reports whether total falls inside the band.
func (b MarginBand) Contains(total float64) bool {
	return total >= b.MinTotal && total < b.MaxTotal
}

// MarshalJSON writes an unbounded MaxTotal as null.
func (b MarginBand) MarshalJSON() ([]byte, error) {
	var maxTotal *float64
	if !math.IsInf(b.MaxTotal, 1) {
		maxTotal = &b.MaxTotal
	}
	return json.Marshal(struct {
		Name         string   `json:"name"`
		MinTotal     float64  `json:"minTotal"`
		MaxTotal     *float64 `json:"maxTotal"`
		MarginMin    float64  `json:"marginMin"`
		MarginMax    float64  `json:"marginMax"`
		MarginTarget float64  `json:"marginTarget"`
	}{b.Name, b.MinTotal, maxTotal, b.MarginMin, b.MarginMax, b.MarginTarget})
}

// UnmarshalJSON reads a null or missing maxTotal as unbounded.
func (b *MarginBand) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string   `json:"name"`
		MinTotal     float64  `json:"minTotal"`
		MaxTotal     *float64 `json:"maxTotal"`
		MarginMin    float64  `json:"marginMin"`
		MarginMax    float64  `json:"marginMax"`
		MarginTarget float64  `json:"marginTarget"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = MarginBand{
		Name:         raw.Name,
		MinTotal:     raw.MinTotal,
		MaxTotal:     Unbounded,
		MarginMin:    raw.MarginMin,
		MarginMax:    raw.MarginMax,
		MarginTarget: raw.MarginTarget,
	}
	if raw.MaxTotal != nil {
		b.MaxTotal = *raw.MaxTotal
	}
	return nil
}

// ProductMarginConfig adjusts the band target for one product class, either
// multiplicatively or, when IsAdditive is set, by a fixed adder.
type ProductMarginConfig struct {
	MarginMultiplier float64 `json:"marginMultiplier"`
	IsAdditive       bool    `json:"isAdditive"`
	FixedAdder       float64 `json:"fixedAdder"`
}

// PriceGuard holds the per-unit price rails for a product class.
type PriceGuard struct {
	Unit         string  `json:"unit"`
	MarketPrice  float64 `json:"marketPrice"`
	MarketSource string  `json:"marketSource"`
	MarketDate   string  `json:"marketDate"`
	// Layer 1
	ProcurementBufferPct     float64 `json:"procurementBufferPct"`
	ProcurementBufferTrigger float64 `json:"procurementBufferTrigger"`
	// Layer 2
	ReviewBelowPrice float64 `json:"reviewBelowPrice"`
	QuoteFloorPrice  float64 `json:"quoteFloorPrice"`
	CeilingPrice     float64 `json:"ceilingPrice"`
}

// QuoteGuards are checks over the whole quote after line-item clamping.
type QuoteGuards struct {
	BESSFleetCeilingPerKWh float64 `json:"bessFleetCeilingPerKWh"`
	BlendedMarginMin       float64 `json:"blendedMarginMin"`
	BlendedMarginMax       float64 `json:"blendedMarginMax"`
}

// Policy is an immutable snapshot of every pricing table.
type Policy struct {
	Version     string                               `json:"version"`
	Bands       []MarginBand                         `json:"bands"`
	Products    map[ProductClass]ProductMarginConfig `json:"products"`
	Guards      map[ProductClass]PriceGuard          `json:"guards"`
	Risk        map[RiskLevel]float64                `json:"risk"`
	Segments    map[CustomerSegment]float64          `json:"segments"`
	QuoteGuards QuoteGuards                          `json:"quoteGuards"`
}

// DefaultPolicy returns the built-in policy tables.
func DefaultPolicy() Policy {
	return Policy{
		Version: DefaultPolicyVersion,
		Bands: []MarginBand{
			{Name: "micro", MinTotal: 0, MaxTotal: 500_000, MarginMin: 0.20, MarginMax: 0.35, MarginTarget: 0.25},
			{Name: "small", MinTotal: 500_000, MaxTotal: 1_500_000, MarginMin: 0.15, MarginMax: 0.28, MarginTarget: 0.20},
			{Name: "mid", MinTotal: 1_500_000, MaxTotal: 3_000_000, MarginMin: 0.12, MarginMax: 0.22, MarginTarget: 0.16},
			{Name: "large", MinTotal: 3_000_000, MaxTotal: 5_000_000, MarginMin: 0.10, MarginMax: 0.18, MarginTarget: 0.13},
			{Name: "enterprise", MinTotal: 5_000_000, MaxTotal: 10_000_000, MarginMin: 0.08, MarginMax: 0.15, MarginTarget: 0.10},
			{Name: "utility", MinTotal: 10_000_000, MaxTotal: 20_000_000, MarginMin: 0.06, MarginMax: 0.12, MarginTarget: 0.08},
			{Name: "mega", MinTotal: 20_000_000, MaxTotal: Unbounded, MarginMin: 0.04, MarginMax: 0.10, MarginTarget: 0.06},
		},
		Products: map[ProductClass]ProductMarginConfig{
			ClassBESS:         {MarginMultiplier: 1.0},
			ClassInverter:     {MarginMultiplier: 1.0},
			ClassSolar:        {MarginMultiplier: 0.9},
			ClassGenerator:    {MarginMultiplier: 0.85},
			ClassEVCharger:    {MarginMultiplier: 1.1},
			ClassController:   {MarginMultiplier: 1.2},
			ClassBOS:          {MarginMultiplier: 1.0},
			ClassInstallation: {IsAdditive: true, FixedAdder: 0.02},
			ClassEngineering:  {IsAdditive: true, FixedAdder: 0.05},
		},
		Guards: map[ProductClass]PriceGuard{
			ClassBESS: {
				Unit: "kWh", MarketPrice: 125, MarketSource: "procurement benchmark: LFP containerized DC block", MarketDate: "2025-10-01",
				ProcurementBufferPct: 0.10, ProcurementBufferTrigger: 105,
				ReviewBelowPrice: 100, QuoteFloorPrice: 115, CeilingPrice: 250,
			},
			ClassInverter: {
				Unit: "kW", MarketPrice: 90, MarketSource: "procurement benchmark: bidirectional PCS", MarketDate: "2025-10-01",
				ProcurementBufferPct: 0.08, ProcurementBufferTrigger: 70,
				ReviewBelowPrice: 55, QuoteFloorPrice: 75, CeilingPrice: 180,
			},
			ClassSolar: {
				Unit: "W", MarketPrice: 0.85, MarketSource: "procurement benchmark: commercial rooftop PV", MarketDate: "2025-10-01",
				ProcurementBufferPct: 0.08, ProcurementBufferTrigger: 0.70,
				ReviewBelowPrice: 0.55, QuoteFloorPrice: 0.75, CeilingPrice: 1.60,
			},
			ClassGenerator: {
				Unit: "kW", MarketPrice: 500, MarketSource: "procurement benchmark: diesel standby genset", MarketDate: "2025-10-01",
				ProcurementBufferPct: 0.08, ProcurementBufferTrigger: 350,
				ReviewBelowPrice: 300, QuoteFloorPrice: 400, CeilingPrice: 900,
			},
		},
		Risk: map[RiskLevel]float64{
			RiskStandard:       0,
			RiskElevated:       0.02,
			RiskHighComplexity: 0.04,
		},
		Segments: map[CustomerSegment]float64{
			SegmentDirect:     1.0,
			SegmentEPCPartner: 0.85,
			SegmentGovernment: 0.90,
			SegmentUtility:    0.80,
		},
		QuoteGuards: QuoteGuards{
			BESSFleetCeilingPerKWh: 275,
			BlendedMarginMin:       0.02,
			BlendedMarginMax:       0.30,
		},
	}
}

// Clone returns a deep copy whose tables can be edited safely.
func (p Policy) Clone() Policy {
	out := p
	out.Bands = append([]MarginBand(nil), p.Bands...)
	out.Products = make(map[ProductClass]ProductMarginConfig, len(p.Products))
	for k, v := range p.Products {
		out.Products[k] = v
	}
	out.Guards = make(map[ProductClass]PriceGuard, len(p.Guards))
	for k, v := range p.Guards {
		out.Guards[k] = v
	}
	out.Risk = make(map[RiskLevel]float64, len(p.Risk))
	for k, v := range p.Risk {
		out.Risk[k] = v
	}
	out.Segments = make(map[CustomerSegment]float64, len(p.Segments))
	for k, v := range p.Segments {
		out.Segments[k] = v
	}
	return out
}

// Validate checks band contiguity, guard ordering and table completeness.
func (p Policy) Validate() error {
	var err error
	if p.Version == "" {
		err = multierr.Append(err, fmt.Errorf("policy version is empty"))
	}
	if len(p.Bands) == 0 {
		err = multierr.Append(err, fmt.Errorf("no margin bands"))
	} else {
		if p.Bands[0].MinTotal != 0 {
			err = multierr.Append(err, fmt.Errorf("first band %q must start at 0", p.Bands[0].Name))
		}
		last := p.Bands[len(p.Bands)-1]
		if !math.IsInf(last.MaxTotal, 1) {
			err = multierr.Append(err, fmt.Errorf("last band %q must be unbounded", last.Name))
		}
	}
	for i, b := range p.Bands {
		if b.MaxTotal <= b.MinTotal {
			err = multierr.Append(err, fmt.Errorf("band %q: max %v not above min %v", b.Name, b.MaxTotal, b.MinTotal))
		}
		if b.MarginMin > b.MarginTarget || b.MarginTarget > b.MarginMax {
			err = multierr.Append(err, fmt.Errorf("band %q: target %v outside [%v, %v]", b.Name, b.MarginTarget, b.MarginMin, b.MarginMax))
		}
		if i+1 < len(p.Bands) && b.MaxTotal != p.Bands[i+1].MinTotal {
			err = multierr.Append(err, fmt.Errorf("band %q ends at %v but %q starts at %v", b.Name, b.MaxTotal, p.Bands[i+1].Name, p.Bands[i+1].MinTotal))
		}
	}

	for _, class := range sortedKeys(p.Guards) {
		g := p.Guards[class]
		if !(g.ReviewBelowPrice <= g.QuoteFloorPrice && g.QuoteFloorPrice <= g.CeilingPrice) {
			err = multierr.Append(err, fmt.Errorf("guard %q: need review %v <= floor %v <= ceiling %v", class, g.ReviewBelowPrice, g.QuoteFloorPrice, g.CeilingPrice))
		}
		if g.Unit == "" || g.MarketPrice <= 0 {
			err = multierr.Append(err, fmt.Errorf("guard %q: need a unit and a positive market price", class))
		}
		if g.ProcurementBufferPct < 0 {
			err = multierr.Append(err, fmt.Errorf("guard %q: negative procurement buffer", class))
		}
	}
	for _, class := range sortedKeys(p.Products) {
		pc := p.Products[class]
		if pc.IsAdditive && pc.MarginMultiplier != 0 {
			err = multierr.Append(err, fmt.Errorf("product %q: both multiplier and fixed adder set", class))
		}
	}
	if _, ok := p.Risk[RiskStandard]; !ok {
		err = multierr.Append(err, fmt.Errorf("risk table missing %q", RiskStandard))
	}
	if _, ok := p.Segments[SegmentDirect]; !ok {
		err = multierr.Append(err, fmt.Errorf("segment table missing %q", SegmentDirect))
	}
	return err
}

// MarginBand returns the band containing total. Negative or NaN totals map to
// the first band and totals past the last bound map to the last band.
func (p Policy) MarginBand(total float64) MarginBand {
	if len(p.Bands) == 0 {
		return MarginBand{Name: "none", MaxTotal: Unbounded}
	}
	if math.IsNaN(total) || total < p.Bands[0].MinTotal {
		return p.Bands[0]
	}
	for _, b := range p.Bands {
		if b.Contains(total) {
			return b
		}
	}
	return p.Bands[len(p.Bands)-1]
}

// Fingerprint hashes every table except Version. Two policies with equal
// tables share a fingerprint whatever they are called.
func (p Policy) Fingerprint() string {
	tables := p
	tables.Version = ""
	b, err := json.Marshal(tables)
	if err != nil {
		// NaN margins do not encode; hash the Go syntax instead.
		b = []byte(fmt.Sprintf("%#v", tables))
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// DerivedVersion names a policy whose tables drifted from base: base's
// version plus a tag and a short content hash. Unchanged tables keep the base
// version.
func (p Policy) DerivedVersion(base Policy, tag string) string {
	fp := p.Fingerprint()
	if fp == base.Fingerprint() {
		return base.Version
	}
	return base.Version + "+" + tag + "." + fp[:8]
}

func sortedKeys[V any](m map[ProductClass]V) []ProductClass {
	out := make([]ProductClass, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
