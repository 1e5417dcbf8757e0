package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Simplici0/voltquote/internal/pricing"
)

// policyFile is the TOML overlay. Absent keys keep the base value; a bands
// array replaces the base bands wholesale, and the last band is unbounded
// when its max_total is omitted.
type policyFile struct {
	Version     string                 `toml:"version"`
	Bands       []bandFile             `toml:"bands"`
	Products    map[string]productFile `toml:"products"`
	Guards      map[string]guardFile   `toml:"guards"`
	Risk        map[string]float64     `toml:"risk"`
	Segments    map[string]float64     `toml:"segments"`
	QuoteGuards *quoteGuardsFile       `toml:"quote_guards"`
}

type bandFile struct {
	Name         string   `toml:"name"`
	MinTotal     float64  `toml:"min_total"`
	MaxTotal     *float64 `toml:"max_total"`
	MarginMin    float64  `toml:"margin_min"`
	MarginMax    float64  `toml:"margin_max"`
	MarginTarget float64  `toml:"margin_target"`
}

type productFile struct {
	MarginMultiplier float64 `toml:"margin_multiplier"`
	FixedAdder       float64 `toml:"fixed_adder"`
	Additive         bool    `toml:"additive"`
}

type guardFile struct {
	Unit                     *string  `toml:"unit"`
	MarketPrice              *float64 `toml:"market_price"`
	MarketSource             *string  `toml:"market_source"`
	MarketDate               *string  `toml:"market_date"`
	ProcurementBufferPct     *float64 `toml:"procurement_buffer_pct"`
	ProcurementBufferTrigger *float64 `toml:"procurement_buffer_trigger"`
	ReviewBelowPrice         *float64 `toml:"review_below_price"`
	QuoteFloorPrice          *float64 `toml:"quote_floor_price"`
	CeilingPrice             *float64 `toml:"ceiling_price"`
}

type quoteGuardsFile struct {
	BESSFleetCeilingPerKWh *float64 `toml:"bess_fleet_ceiling_per_kwh"`
	BlendedMarginMin       *float64 `toml:"blended_margin_min"`
	BlendedMarginMax       *float64 `toml:"blended_margin_max"`
}

// LoadPolicyFile overlays the TOML document at path onto base and validates
// the result. An empty path returns base unchanged.
func LoadPolicyFile(path string, base pricing.Policy) (pricing.Policy, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pricing.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

// ParsePolicy overlays a TOML document onto base. A document without a version
// that changes any table gets base's version tagged with a content hash.
func ParsePolicy(data []byte, base pricing.Policy) (pricing.Policy, error) {
	var f policyFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return pricing.Policy{}, fmt.Errorf("decode policy file: %w", err)
	}

	p := base.Clone()
	if len(f.Bands) > 0 {
		p.Bands = make([]pricing.MarginBand, 0, len(f.Bands))
		for _, b := range f.Bands {
			band := pricing.MarginBand{
				Name:         b.Name,
				MinTotal:     b.MinTotal,
				MaxTotal:     pricing.Unbounded,
				MarginMin:    b.MarginMin,
				MarginMax:    b.MarginMax,
				MarginTarget: b.MarginTarget,
			}
			if b.MaxTotal != nil {
				band.MaxTotal = *b.MaxTotal
			}
			p.Bands = append(p.Bands, band)
		}
	}
	for class, pf := range f.Products {
		cfg := pricing.ProductMarginConfig{MarginMultiplier: pf.MarginMultiplier}
		if pf.Additive {
			cfg = pricing.ProductMarginConfig{IsAdditive: true, FixedAdder: pf.FixedAdder}
		}
		p.Products[pricing.ProductClass(class)] = cfg
	}
	for class, gf := range f.Guards {
		g := p.Guards[pricing.ProductClass(class)]
		overlayString(&g.Unit, gf.Unit)
		overlayFloat(&g.MarketPrice, gf.MarketPrice)
		overlayString(&g.MarketSource, gf.MarketSource)
		overlayString(&g.MarketDate, gf.MarketDate)
		overlayFloat(&g.ProcurementBufferPct, gf.ProcurementBufferPct)
		overlayFloat(&g.ProcurementBufferTrigger, gf.ProcurementBufferTrigger)
		overlayFloat(&g.ReviewBelowPrice, gf.ReviewBelowPrice)
		overlayFloat(&g.QuoteFloorPrice, gf.QuoteFloorPrice)
		overlayFloat(&g.CeilingPrice, gf.CeilingPrice)
		p.Guards[pricing.ProductClass(class)] = g
	}
	for level, v := range f.Risk {
		p.Risk[pricing.RiskLevel(level)] = v
	}
	for seg, v := range f.Segments {
		p.Segments[pricing.CustomerSegment(seg)] = v
	}
	if qg := f.QuoteGuards; qg != nil {
		overlayFloat(&p.QuoteGuards.BESSFleetCeilingPerKWh, qg.BESSFleetCeilingPerKWh)
		overlayFloat(&p.QuoteGuards.BlendedMarginMin, qg.BlendedMarginMin)
		overlayFloat(&p.QuoteGuards.BlendedMarginMax, qg.BlendedMarginMax)
	}

	if f.Version != "" {
		p.Version = f.Version
	} else {
		p.Version = p.DerivedVersion(base, "file")
	}
	if err := p.Validate(); err != nil {
		return pricing.Policy{}, fmt.Errorf("validate policy file: %w", err)
	}
	return p, nil
}

func overlayFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func overlayString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
