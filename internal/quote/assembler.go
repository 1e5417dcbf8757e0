package quote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/catalog"
	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/facility"
	"github.com/Simplici0/voltquote/internal/finance"
	"github.com/Simplici0/voltquote/internal/industry"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/sizing"
)

// PolicySource hands out the margin policy snapshot for one calculation.
type PolicySource interface {
	Policy(ctx context.Context) pricing.Policy
}

// StaticPolicy serves a fixed policy.
type StaticPolicy pricing.Policy

// Policy returns the wrapped snapshot.
func (s StaticPolicy) Policy(context.Context) pricing.Policy { return pricing.Policy(s) }

// Assembler builds quotes. Every dependency is injected; the zero value is
// not usable, use New.
type Assembler struct {
	Registry *industry.Registry
	Catalog  catalog.Catalog
	Policies PolicySource
	Rates    collab.RateSource
	Sun      collab.SunSource
	Now      func() time.Time
	NewID    func() string
}

// New returns an Assembler over the built-in tables.
func New() *Assembler {
	return &Assembler{
		Registry: industry.Default(),
		Catalog:  catalog.Default(),
		Policies: StaticPolicy(pricing.DefaultPolicy()),
		Rates:    collab.StaticRates{},
		Sun:      collab.StaticSun{},
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    NewID,
	}
}

// NewID returns a fresh quote identifier.
func NewID() string {
	return "q_" + uuid.NewString()
}

// Build runs the full pipeline. Only registry lookups fail; collaborator
// failures degrade to static tables with a warning.
func (a *Assembler) Build(ctx context.Context, req Request) (Quote, error) {
	var warnings []string
	loc := collab.Locate(req.Location.ZIP, req.Location.State)
	attrs := req.Attributes
	if attrs == nil {
		attrs = facility.Attributes{}
	}

	opts := sizing.Options{
		IncludeSolar:     req.Options.IncludeSolar,
		IncludeGenerator: req.Options.IncludeGenerator,
		IncludeEV:        req.Options.IncludeEV,
		SolarKW:          req.Options.SolarKW,
		Chargers:         req.Options.Chargers,
	}
	if opts.IncludeSolar {
		sun, err := a.Sun.SunHours(ctx, loc)
		if err != nil {
			sun, _ = collab.StaticSun{}.SunHours(ctx, loc)
			warnings = append(warnings, fmt.Sprintf("solar resource lookup failed (%v); using %s", err, sun.Source))
		}
		opts.SunHours, opts.SunHoursSource = sun.Hours, sun.Source
	}

	sized, err := sizing.NewResolver(a.Registry).Resolve(req.Industry, req.Subtype, attrs, opts)
	if err != nil {
		return Quote{}, fmt.Errorf("resolve sizing: %w", err)
	}
	cfg, subtype := sized.Config, sized.Subtype
	warnings = append(append([]string{}, sized.Warnings...), warnings...)

	priced := a.Catalog.Price(sized.Equipment)
	policy := a.Policies.Policy(ctx)
	margin := policy.Apply(pricing.Request{
		LineItems:     priced.LineItems,
		TotalBaseCost: priced.BaseCost,
		RiskLevel:     req.Pricing.RiskLevel,
		Segment:       req.Pricing.Segment,
		ForceMargin:   req.Pricing.ForceMargin,
		MaxMargin:     req.Pricing.MaxMargin,
		Units:         pricing.QuoteUnits{StorageKWh: sized.Equipment.Battery.EnergyKWh},
	})
	warnings = append(warnings, margin.Warnings...)
	if margin.NeedsHumanReview {
		warnings = append(warnings, fmt.Sprintf("%d price(s) flagged for human review", len(margin.ReviewEvents)))
	}

	rate, err := a.Rates.UtilityRate(ctx, loc.State)
	if err != nil {
		rate = collab.StaticRate(loc.State)
		warnings = append(warnings, fmt.Sprintf("utility rate lookup failed (%v); using %s", err, rate.Source))
	}
	itcRate, itcWhy := collab.ITCRate(req.TaxCredit)
	factor, factorSrc := collab.EmissionFactor(loc.State)

	fin, finLog := finance.Summarize(finance.Input{
		SellTotal:      margin.SellTotal,
		EligibleCost:   finance.EligibleCost(margin.LineItems),
		ITCRate:        itcRate,
		ITCSource:      "ITC: " + itcWhy,
		Rate:           rate,
		Defaults:       cfg.Financial,
		BatteryKW:      sized.Equipment.Battery.PowerKW,
		BatteryKWStep:  sized.BatteryPowerStep(),
		BatteryKWh:     sized.Equipment.Battery.EnergyKWh,
		SolarAnnualKWh: solarKWh(sized.Equipment.Solar),
		EmissionFactor: factor,
		EmissionSource: factorSrc,
	})

	costs := equipmentCosts(margin)
	log := sized.Log.Concat(priced.Log).Concat(marginSteps(margin)).Concat(costSteps(sized.Equipment, costs)).Concat(finLog)

	inputs := Inputs{
		Location:   loc,
		Industry:   cfg.Slug,
		Subtype:    subtype,
		Attributes: attrs,
		Options:    req.Options,
		TaxCredit:  req.TaxCredit,
		Pricing:    req.Pricing,
	}
	versions := Versions{
		Engine:        EngineVersion,
		Policy:        policy.Version,
		Catalog:       a.Catalog.Version,
		IndustryRules: a.Registry.Version(),
		Rates:         collab.RatesVersion,
	}
	sum, err := Checksum(inputs, versions)
	if err != nil {
		return Quote{}, err
	}

	steps := log.Steps()
	return Quote{
		ID:        a.NewID(),
		CreatedAt: a.Now(),
		Versions:  versions,
		Checksum:  sum,
		Inputs:    inputs,
		Results:   results(cfg, sized, costs, rate, fin),
		Pricing:   margin,
		Steps:     steps,
		Sources:   sources(steps),
		Warnings:  append([]string{}, warnings...),
	}, nil
}

// Checksum hashes the canonical JSON of the normalized inputs and versions.
// encoding/json sorts map keys, so equal inputs hash equally.
func Checksum(inputs Inputs, versions Versions) (string, error) {
	b, err := json.Marshal(struct {
		Inputs   Inputs   `json:"inputs"`
		Versions Versions `json:"versions"`
	}{inputs, versions})
	if err != nil {
		return "", fmt.Errorf("encode checksum payload: %w", err)
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

func solarKWh(s *sizing.Solar) float64 {
	if s == nil {
		return 0
	}
	return s.AnnualKWh
}

func marginSteps(m pricing.Result) audit.Log {
	var log audit.Log
	log = log.Append(audit.Step{
		Category: audit.CategoryPricing,
		Label:    "margin_band",
		Formula:  "deal-size band containing base cost",
		Inputs: []audit.Input{
			audit.In("band", m.Band.Name, "margin policy "+m.PolicyVersion),
			audit.In("marginMin", m.Band.MarginMin, "margin policy "+m.PolicyVersion),
			audit.In("marginMax", m.Band.MarginMax, "margin policy "+m.PolicyVersion),
		},
		Output: m.Band.MarginTarget,
		Unit:   "ratio",
	})
	log = log.Append(audit.Step{
		Category: audit.CategoryPricing,
		Label:    "obtainable_total",
		Formula:  "Σ line obtainable cost (market + procurement buffer)",
		Inputs: []audit.Input{
			audit.In("marketTotal", m.MarketTotal, "cost steps"),
		},
		Output: m.ObtainableTotal,
		Unit:   "USD",
	})
	log = log.Append(audit.Step{
		Category: audit.CategoryPricing,
		Label:    "sell_total",
		Formula:  "Σ line sell price after margin and guard clamps",
		Inputs: []audit.Input{
			audit.In("obtainableTotal", m.ObtainableTotal, "obtainable_total step"),
			audit.In("clampEvents", len(m.ClampEvents), "margin engine"),
			audit.In("reviewEvents", len(m.ReviewEvents), "margin engine"),
		},
		Output: m.SellTotal,
		Unit:   "USD",
	})
	log = log.Append(audit.Step{
		Category: audit.CategoryPricing,
		Label:    "blended_margin",
		Formula:  "(sell total − obtainable total) ÷ obtainable total",
		Inputs: []audit.Input{
			audit.In("sellTotal", m.SellTotal, "sell_total step"),
			audit.In("obtainableTotal", m.ObtainableTotal, "obtainable_total step"),
		},
		Output: m.BlendedMargin,
		Unit:   "ratio",
	})
	return log
}

// equipmentCost is the customer price of one results block.
type equipmentCost struct {
	label   string
	classes []pricing.ProductClass
	lines   []audit.Input
	total   decimal.Decimal
}

// equipmentCosts sums line sell prices into the result blocks.
func equipmentCosts(m pricing.Result) map[string]*equipmentCost {
	costs := map[string]*equipmentCost{
		"battery":   {label: "battery_cost", classes: []pricing.ProductClass{pricing.ClassBESS, pricing.ClassInverter}},
		"solar":     {label: "solar_cost", classes: []pricing.ProductClass{pricing.ClassSolar}},
		"generator": {label: "generator_cost", classes: []pricing.ProductClass{pricing.ClassGenerator}},
		"ev":        {label: "ev_cost", classes: []pricing.ProductClass{pricing.ClassEVCharger}},
	}
	for _, l := range m.LineItems {
		for _, c := range costs {
			if slices.Contains(c.classes, l.ProductClass) {
				c.total = c.total.Add(decimal.NewFromFloat(l.SellPrice))
				c.lines = append(c.lines, audit.In(l.ID+"SellPrice", l.SellPrice, "margin engine"))
			}
		}
	}
	return costs
}

func (c *equipmentCost) value() float64 {
	return c.total.Round(2).InexactFloat64()
}

func costSteps(eq sizing.Equipment, costs map[string]*equipmentCost) audit.Log {
	present := []string{"battery"}
	if eq.Solar != nil {
		present = append(present, "solar")
	}
	if eq.Generator != nil {
		present = append(present, "generator")
	}
	if eq.EV != nil {
		present = append(present, "ev")
	}

	var log audit.Log
	for _, key := range present {
		c := costs[key]
		inputs := c.lines
		if len(inputs) == 0 {
			inputs = []audit.Input{audit.In("lineItems", 0, "margin engine")}
		}
		log = log.Append(audit.Step{
			Category: audit.CategoryPricing,
			Label:    c.label,
			Formula:  "Σ sell price of the component's line items",
			Inputs:   inputs,
			Output:   c.value(),
			Unit:     "USD",
		})
	}
	return log
}

func results(cfg industry.Config, sized sizing.Result, costs map[string]*equipmentCost, rate collab.UtilityRate, fin finance.Summary) Results {
	eq := sized.Equipment
	r := Results{
		IndustryName:    cfg.Name,
		Method:          sized.Method,
		PeakDemandKW:    sized.PeakDemandKW,
		Battery:         BatteryBlock{Battery: eq.Battery, Cost: costs["battery"].value()},
		Recommendations: sized.Recommendations,
		GridShortfallKW: sized.GridShortfallKW,
		UtilityRate:     rate,
		Financial:       fin,
	}
	if eq.Solar != nil {
		r.Solar = &SolarBlock{Solar: *eq.Solar, Cost: costs["solar"].value()}
	}
	if eq.Generator != nil {
		r.Generator = &GeneratorBlock{Generator: *eq.Generator, Cost: costs["generator"].value()}
	}
	if eq.EV != nil {
		r.EV = &EVBlock{EVCharging: *eq.EV, Cost: costs["ev"].value()}
	}
	return r
}

// sources lists distinct input sources in first-use order.
func sources(steps []audit.Step) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range steps {
		for _, in := range s.Inputs {
			if in.Source == "" || seen[in.Source] || isStepRef(in.Source) {
				continue
			}
			seen[in.Source] = true
			out = append(out, in.Source)
		}
	}
	return out
}

func isStepRef(src string) bool {
	return strings.HasSuffix(src, " step") || src == "cost steps"
}
