// Package sizing turns facility facts into a peak demand and equipment sizes.
package sizing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/facility"
	"github.com/Simplici0/voltquote/internal/industry"
)

const (
	// SolarPeakFraction sizes an optional array relative to peak demand.
	SolarPeakFraction = 0.5
	// SolarPerformanceRatio derates nameplate production for losses.
	SolarPerformanceRatio = 0.80
	// MaxPeakKW bounds a usable peak demand; larger values are treated as bad input.
	MaxPeakKW = 10_000_000
)

var (
	precomputedKWFields = []string{"peakDemandKW", "calculatedPeakKW", "precomputedPeakKW"}
	precomputedMWFields = []string{"peakLoad", "peakLoadMW"}
	gridCapacityFields  = []string{"gridCapacity", "gridCapacityMW"}

	unreliableGrid = map[string]bool{"off_grid": true, "unreliable": true, "microgrid": true}
)

// Options are the caller's equipment toggles.
type Options struct {
	IncludeSolar     bool           `json:"includeSolar"`
	IncludeGenerator bool           `json:"includeGenerator"`
	IncludeEV        bool           `json:"includeEV"`
	SolarKW          float64        `json:"solarKW,omitempty"`
	Chargers         map[string]int `json:"chargers,omitempty"`
	// SunHours is peak sun hours per day at the site, from the solar collaborator.
	SunHours       float64 `json:"sunHours,omitempty"`
	SunHoursSource string  `json:"sunHoursSource,omitempty"`
}

// Battery is the storage sizing.
type Battery struct {
	PowerKW       float64 `json:"powerKW"`
	EnergyKWh     float64 `json:"energyKWh"`
	DurationHours float64 `json:"durationHours"`
}

// Generator is the backup generator sizing.
type Generator struct {
	PowerKW  float64 `json:"powerKW"`
	Required bool    `json:"required"`
	Reason   string  `json:"reason"`
}

// Solar is the optional PV array sizing.
type Solar struct {
	CapacityKW float64 `json:"capacityKW"`
	AnnualKWh  float64 `json:"annualKWh"`
	SunHours   float64 `json:"sunHours"`
}

// ChargerCount is one charger class line.
type ChargerCount struct {
	Class  string  `json:"class"`
	Count  int     `json:"count"`
	KWEach float64 `json:"kwEach"`
	KW     float64 `json:"kw"`
}

// EVCharging is the charging load.
type EVCharging struct {
	Chargers []ChargerCount `json:"chargers"`
	TotalKW  float64        `json:"totalKW"`
}

// Equipment groups every sized component.
type Equipment struct {
	Battery   Battery     `json:"battery"`
	Generator *Generator  `json:"generator,omitempty"`
	Solar     *Solar      `json:"solar,omitempty"`
	EV        *EVCharging `json:"ev,omitempty"`
}

// Recommendations are hints that never change the sized equipment.
type Recommendations struct {
	Solar           bool   `json:"solar"`
	Generator       bool   `json:"generator"`
	GeneratorReason string `json:"generatorReason,omitempty"`
}

// Result is the resolver's output.
type Result struct {
	Industry        string          `json:"industry"`
	IndustryName    string          `json:"industryName"`
	Subtype         string          `json:"subtype"`
	Method          string          `json:"method"`
	PeakDemandKW    float64         `json:"peakDemandKW"`
	Equipment       Equipment       `json:"equipment"`
	Recommendations Recommendations `json:"recommendations"`
	GridShortfallKW float64         `json:"gridShortfallKW,omitempty"`
	Warnings        []string        `json:"warnings"`
	Log             audit.Log       `json:"-"`
	// Config is the industry rule set the facility was sized against.
	Config industry.Config `json:"-"`
}

// Resolver resolves industry slugs against a registry before sizing.
type Resolver struct {
	registry *industry.Registry
}

// NewResolver returns a Resolver backed by reg.
func NewResolver(reg *industry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Resolve looks up the industry by slug or alias and sizes the facility.
func (r *Resolver) Resolve(slug, subtype string, attrs facility.Attributes, opts Options) (Result, error) {
	cfg, err := r.registry.Lookup(slug)
	if err != nil {
		return Result{}, err
	}
	return Resolve(cfg, subtype, attrs, opts)
}

// demand threads the running peak and its log through the modifier fold.
type demand struct {
	kw  float64
	log audit.Log
}

// Resolve sizes a facility against one industry config.
func Resolve(cfg industry.Config, subtype string, attrs facility.Attributes, opts Options) (Result, error) {
	st, err := cfg.Subtype(subtype)
	if err != nil {
		return Result{}, err
	}
	if subtype == "" {
		subtype = cfg.DefaultSubtype
	}
	if attrs == nil {
		attrs = facility.Attributes{}
	}
	source := fmt.Sprintf("industry rules: %s", cfg.Slug)

	res := Result{
		Industry:     cfg.Slug,
		IndustryName: cfg.Name,
		Subtype:      subtype,
		Method:       string(cfg.Power.Method()),
		Warnings:     []string{},
		Config:       cfg,
	}

	d, precomputed := precomputedPeak(attrs)
	if precomputed {
		res.Method = "precomputed"
	} else {
		d = computePeak(cfg, attrs, source)
	}
	log := d.log
	if d.kw > MaxPeakKW {
		log = log.Append(audit.Step{
			Category: audit.CategoryDemand,
			Label:    "peak_demand_range",
			Formula:  "peak demand above sanity limit; using 0",
			Inputs: []audit.Input{
				audit.In("peakDemandKW", d.kw, "peak_demand step"),
				audit.In("maxPeakKW", float64(MaxPeakKW), "engine constant"),
			},
			Output: 0,
			Unit:   "kW",
		})
		res.Warnings = append(res.Warnings, fmt.Sprintf("peak demand %.3g kW above the %d kW sanity limit; using 0", d.kw, MaxPeakKW))
		d.kw = 0
	}
	res.PeakDemandKW = d.kw

	if res.PeakDemandKW == 0 {
		res.Warnings = append(res.Warnings, "peak demand resolved to zero: facility attributes missing or unusable")
	}

	var battery Battery
	battery, log = sizeBattery(cfg, st, subtype, res.PeakDemandKW, log)
	res.Equipment.Battery = battery

	res.Recommendations = recommend(cfg, st, attrs)
	if st.GeneratorRequired || opts.IncludeGenerator {
		var gen Generator
		gen, log = sizeGenerator(st, subtype, opts, res.PeakDemandKW, log)
		res.Equipment.Generator = &gen
	} else if res.Recommendations.Generator {
		res.Warnings = append(res.Warnings, "generator recommended but not included: "+res.Recommendations.GeneratorReason)
	}

	if opts.SolarKW > MaxPeakKW || math.IsNaN(opts.SolarKW) {
		res.Warnings = append(res.Warnings, "requested solar capacity out of range; sizing from peak demand")
		opts.SolarKW = 0
	}
	if opts.IncludeSolar {
		var sol Solar
		sol, log = sizeSolar(opts, res.PeakDemandKW, log)
		res.Equipment.Solar = &sol
	}

	if opts.IncludeEV || cfg.Power.Method() == industry.MethodChargerSum {
		var ev EVCharging
		ev, log = sizeEV(attrs, opts, log)
		res.Equipment.EV = &ev
		res.Warnings = append(res.Warnings, unknownChargerClasses(opts.Chargers)...)
	}

	res.GridShortfallKW, log = gridShortfall(attrs, res.PeakDemandKW, log)
	if res.GridShortfallKW > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("peak demand exceeds grid capacity by %.0f kW", res.GridShortfallKW))
	}

	res.Log = log
	return res, nil
}

// Steps returns the calculation log.
func (r Result) Steps() []audit.Step {
	return r.Log.Steps()
}

// BatteryPowerStep names the step that produced the final battery power.
func (r Result) BatteryPowerStep() string {
	label := "battery_power"
	for _, s := range r.Log.Steps() {
		if s.Label == "battery_power_bounds" {
			label = s.Label
		}
	}
	return label
}

func precomputedPeak(attrs facility.Attributes) (demand, bool) {
	if kw, key, ok := attrs.FirstNumber(precomputedKWFields); ok && kw > 0 {
		return demand{kw: kw, log: audit.Log{}.Append(audit.Step{
			Category: audit.CategoryDemand,
			Label:    "peak_demand",
			Formula:  "pre-computed peak demand (used verbatim)",
			Inputs:   []audit.Input{audit.In(key, kw, "facility attribute "+key)},
			Output:   kw,
			Unit:     "kW",
		})}, true
	}
	if mw, key, ok := attrs.FirstNumber(precomputedMWFields); ok && mw > 0 {
		kw := mw * 1000
		if math.IsInf(kw, 0) {
			kw = 0
		}
		return demand{kw: kw, log: audit.Log{}.Append(audit.Step{
			Category: audit.CategoryDemand,
			Label:    "peak_demand",
			Formula:  "stated peak load MW × 1000 (used verbatim)",
			Inputs:   []audit.Input{audit.In(key, mw, "facility attribute "+key)},
			Output:   kw,
			Unit:     "kW",
		})}, true
	}
	return demand{}, false
}

func computePeak(cfg industry.Config, attrs facility.Attributes, source string) demand {
	base, baseSteps := cfg.Power.BaseLoad(attrs, source)
	d := demand{kw: base}
	for _, s := range baseSteps {
		d.log = d.log.Append(s)
	}

	for _, m := range cfg.Modifiers {
		d = applyModifier(d, m, attrs, source)
	}

	rounded := math.Round(d.kw)
	d.log = d.log.Append(audit.Step{
		Category: audit.CategoryDemand,
		Label:    "peak_demand",
		Formula:  "round(demand after modifiers)",
		Inputs:   []audit.Input{audit.In("demandKW", d.kw, "previous step")},
		Output:   rounded,
		Unit:     "kW",
	})
	return demand{kw: rounded, log: d.log}
}

func applyModifier(d demand, m industry.PowerModifier, attrs facility.Attributes, source string) demand {
	if !attrs.Truthy(m.Trigger) {
		return d
	}

	mult := m.Multiplier
	multSource := source
	if m.Kind == industry.ModifierEfficiencyRatio {
		if v, ok := attrs.Number(m.Trigger); ok && v > 1 {
			mult = v
			multSource = "facility attribute " + m.Trigger
		}
	}

	kw := d.kw * mult
	if math.IsNaN(kw) || math.IsInf(kw, 0) {
		kw = 0
	}
	return demand{kw: kw, log: d.log.Append(audit.Step{
		Category: audit.CategoryModifier,
		Label:    "modifier:" + m.Name,
		Formula:  fmt.Sprintf("demand × %s multiplier", m.Name),
		Inputs: []audit.Input{
			audit.In("demandKW", d.kw, "previous step"),
			audit.In(m.Trigger, attrs[m.Trigger], "facility attribute "+m.Trigger),
			audit.In("multiplier", mult, multSource),
		},
		Output: kw,
		Unit:   "kW",
	})}
}

func sizeBattery(cfg industry.Config, st industry.SubtypeConfig, subtype string, peak float64, log audit.Log) (Battery, audit.Log) {
	subSource := fmt.Sprintf("industry rules: %s/%s", cfg.Slug, subtype)
	kw := math.Round(peak * st.BatteryRatio)
	log = log.Append(audit.Step{
		Category: audit.CategoryBattery,
		Label:    "battery_power",
		Formula:  "round(peak demand × battery ratio)",
		Inputs: []audit.Input{
			audit.In("peakDemandKW", peak, "peak_demand step"),
			audit.In("batteryRatio", st.BatteryRatio, subSource),
		},
		Output: kw,
		Unit:   "kW",
	})

	powerStep := "battery_power step"
	if bounded := boundBattery(kw, cfg.Battery); bounded != kw {
		log = log.Append(audit.Step{
			Category: audit.CategoryBattery,
			Label:    "battery_power_bounds",
			Formula:  "clamp battery power into industry bounds",
			Inputs: []audit.Input{
				audit.In("batteryKW", kw, "battery_power step"),
				audit.In("minKW", cfg.Battery.MinKW, "industry rules: "+cfg.Slug),
				audit.In("maxKW", cfg.Battery.MaxKW, "industry rules: "+cfg.Slug),
			},
			Output: bounded,
			Unit:   "kW",
		})
		kw = bounded
		powerStep = "battery_power_bounds step"
	}

	kwh := kw * st.DurationHours
	log = log.Append(audit.Step{
		Category: audit.CategoryBattery,
		Label:    "battery_energy",
		Formula:  "battery power × duration",
		Inputs: []audit.Input{
			audit.In("batteryKW", kw, powerStep),
			audit.In("durationHours", st.DurationHours, subSource),
		},
		Output: kwh,
		Unit:   "kWh",
	})
	return Battery{PowerKW: kw, EnergyKWh: kwh, DurationHours: st.DurationHours}, log
}

// boundBattery leaves a zero battery at zero.
func boundBattery(kw float64, b industry.BatteryDefaults) float64 {
	if kw <= 0 {
		return 0
	}
	if kw < b.MinKW {
		kw = b.MinKW
	}
	if b.MaxKW > 0 && kw > b.MaxKW {
		kw = b.MaxKW
	}
	return kw
}

func sizeGenerator(st industry.SubtypeConfig, subtype string, opts Options, peak float64, log audit.Log) (Generator, audit.Log) {
	reason := "requested"
	if st.GeneratorRequired {
		reason = "required for subtype " + subtype
	}
	critical := peak * st.CriticalLoadFraction
	kw := math.Round(critical * st.GeneratorOversize)
	log = log.Append(audit.Step{
		Category: audit.CategoryGenerator,
		Label:    "generator_power",
		Formula:  "round(peak demand × critical load fraction × oversize factor)",
		Inputs: []audit.Input{
			audit.In("peakDemandKW", peak, "peak_demand step"),
			audit.In("criticalLoadFraction", st.CriticalLoadFraction, "subtype "+subtype),
			audit.In("oversizeFactor", st.GeneratorOversize, "subtype "+subtype),
			audit.In("includeGenerator", opts.IncludeGenerator, "options"),
		},
		Output: kw,
		Unit:   "kW",
	})
	return Generator{PowerKW: kw, Required: st.GeneratorRequired, Reason: reason}, log
}

func sizeSolar(opts Options, peak float64, log audit.Log) (Solar, audit.Log) {
	kw := math.Round(peak * SolarPeakFraction)
	formula := "round(peak demand × solar fraction)"
	inputs := []audit.Input{
		audit.In("peakDemandKW", peak, "peak_demand step"),
		audit.In("solarFraction", SolarPeakFraction, "engine constant"),
	}
	if opts.SolarKW > 0 {
		kw = opts.SolarKW
		formula = "requested solar capacity"
		inputs = []audit.Input{audit.In("solarKW", opts.SolarKW, "options")}
	}
	log = log.Append(audit.Step{
		Category: audit.CategorySolar,
		Label:    "solar_capacity",
		Formula:  formula,
		Inputs:   inputs,
		Output:   kw,
		Unit:     "kW",
	})

	sunSource := opts.SunHoursSource
	if sunSource == "" {
		sunSource = "options"
	}
	annual := math.Round(kw * opts.SunHours * 365 * SolarPerformanceRatio)
	log = log.Append(audit.Step{
		Category: audit.CategorySolar,
		Label:    "solar_production",
		Formula:  "round(capacity × sun hours × 365 × performance ratio)",
		Inputs: []audit.Input{
			audit.In("solarKW", kw, "solar_capacity step"),
			audit.In("sunHours", opts.SunHours, sunSource),
			audit.In("performanceRatio", SolarPerformanceRatio, "engine constant"),
		},
		Output: annual,
		Unit:   "kWh/yr",
	})
	return Solar{CapacityKW: kw, AnnualKWh: annual, SunHours: opts.SunHours}, log
}

func sizeEV(attrs facility.Attributes, opts Options, log audit.Log) (EVCharging, audit.Log) {
	merged := attrs.Clone()
	classes := make([]industry.ChargerClass, 0, len(industry.ChargerClasses))
	for _, cls := range industry.ChargerClasses {
		key := "option:" + cls.Name
		if n, ok := opts.Chargers[cls.Name]; ok && n > 0 {
			merged[key] = float64(n)
		}
		// Option counts win over facility attributes.
		cls.Fields = append([]string{key}, cls.Fields...)
		classes = append(classes, cls)
	}

	total, inputs := industry.SumChargers(classes, merged, "charger class table")
	ev := EVCharging{Chargers: []ChargerCount{}, TotalKW: total}
	for _, cls := range classes {
		n, _, _ := merged.FirstNumber(cls.Fields)
		if n <= 0 {
			continue
		}
		ev.Chargers = append(ev.Chargers, ChargerCount{
			Class:  cls.Name,
			Count:  int(n),
			KWEach: cls.KW,
			KW:     n * cls.KW,
		})
	}
	for i := range inputs {
		inputs[i].Source = strings.Replace(inputs[i].Source, "facility attribute option:", "options chargers.", 1)
	}

	log = log.Append(audit.Step{
		Category: audit.CategoryEV,
		Label:    "ev_charging_load",
		Formula:  "Σ charger count × kW per class",
		Inputs:   inputs,
		Output:   total,
		Unit:     "kW",
	})
	return ev, log
}

// unknownChargerClasses warns about option counts no charger class prices.
func unknownChargerClasses(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		if _, ok := industry.ChargerClassByName(name); !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("unknown charger class %q ignored", name))
	}
	return out
}

func recommend(cfg industry.Config, st industry.SubtypeConfig, attrs facility.Attributes) Recommendations {
	rec := Recommendations{Solar: cfg.Recommendations.SolarRecommended}
	grid, _ := attrs.String("gridConnection")
	grid = strings.ToLower(grid)

	switch {
	case st.GeneratorRequired:
		rec.Generator, rec.GeneratorReason = true, "required by subtype"
	case cfg.Recommendations.Generator == industry.GeneratorAlways:
		rec.Generator, rec.GeneratorReason = true, "critical facility"
	case cfg.Recommendations.Generator == industry.GeneratorIfUnreliableGrid && unreliableGrid[grid]:
		rec.Generator, rec.GeneratorReason = true, "grid connection "+grid
	}
	return rec
}

func gridShortfall(attrs facility.Attributes, peak float64, log audit.Log) (float64, audit.Log) {
	mw, key, ok := attrs.FirstNumber(gridCapacityFields)
	if !ok || mw <= 0 {
		return 0, log
	}
	capKW := mw * 1000
	shortfall := math.Max(peak-capKW, 0)
	log = log.Append(audit.Step{
		Category: audit.CategoryGrid,
		Label:    "grid_shortfall",
		Formula:  "max(peak demand − grid capacity MW × 1000, 0)",
		Inputs: []audit.Input{
			audit.In("peakDemandKW", peak, "peak_demand step"),
			audit.In(key, mw, "facility attribute "+key),
		},
		Output: shortfall,
		Unit:   "kW",
	})
	return shortfall, log
}
