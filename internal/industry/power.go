package industry

import (
	"fmt"
	"math"
	"strings"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/facility"
)

// Method names a sizing method.
type Method string

const (
	MethodPerUnit    Method = "per_unit"
	MethodPerSqft    Method = "per_sqft"
	MethodFixed      Method = "fixed"
	MethodChargerSum Method = "charger_sum"
)

// PowerCalculation is the closed set of sizing methods. Each variant computes
// its own base load, so adding a method means implementing this interface.
type PowerCalculation interface {
	Method() Method
	// BaseLoad returns the pre-modifier demand in kW and the steps that produced it.
	BaseLoad(attrs facility.Attributes, source string) (float64, []audit.Step)
	sealed()
}

// PerUnit sizes demand as unit count × watts per unit.
type PerUnit struct {
	UnitName     string
	CountFields  []string
	WattsPerUnit float64
	// CategoryField optionally selects a different wattage per category value.
	CategoryField string
	CategoryWatts map[string]float64
	// RangeFields hold free-text load ranges used when the count yields nothing.
	RangeFields []string
}

// PerSqft sizes demand as floor area × watts per square foot.
type PerSqft struct {
	AreaFields   []string
	WattsPerSqft float64
}

// Fixed is a flat baseline, for callers that pre-compute demand elsewhere.
type Fixed struct {
	BaselineKW float64
}

// ChargerSum sizes demand as the sum of charger counts × per-class kW.
type ChargerSum struct {
	Classes []ChargerClass
}

// ChargerClass is one EV charger power class.
type ChargerClass struct {
	Name   string
	Fields []string
	KW     float64
}

// ChargerClasses is the fixed kW-per-class table shared by every EV calculation.
var ChargerClasses = []ChargerClass{
	{Name: "level1", Fields: []string{"level1Chargers", "level1Count", "l1Chargers"}, KW: 1.9},
	{Name: "level2", Fields: []string{"level2Chargers", "level2Count", "l2Chargers", "level2"}, KW: 7.2},
	{Name: "dcfc", Fields: []string{"dcfcChargers", "dcFastChargers", "dcfcCount", "dcfc"}, KW: 50},
	{Name: "hpc", Fields: []string{"hpcChargers", "hpcCount", "ultraFastChargers", "hpc"}, KW: 150},
}

// ChargerClassByName returns the class with the given name.
func ChargerClassByName(name string) (ChargerClass, bool) {
	for _, c := range ChargerClasses {
		if c.Name == name {
			return c, true
		}
	}
	return ChargerClass{}, false
}

func (PerUnit) Method() Method    { return MethodPerUnit }
func (PerSqft) Method() Method    { return MethodPerSqft }
func (Fixed) Method() Method      { return MethodFixed }
func (ChargerSum) Method() Method { return MethodChargerSum }

func (PerUnit) sealed()    {}
func (PerSqft) sealed()    {}
func (Fixed) sealed()      {}
func (ChargerSum) sealed() {}

func (p PerUnit) BaseLoad(attrs facility.Attributes, source string) (float64, []audit.Step) {
	count, countKey, _ := attrs.FirstNumber(p.CountFields)
	count = math.Max(count, 0)

	watts := p.WattsPerUnit
	wattsSource := source
	inputs := []audit.Input{
		audit.In(p.UnitName+"Count", count, attrSource(countKey)),
	}
	if p.CategoryField != "" {
		if cat, ok := attrs.String(p.CategoryField); ok {
			if w, ok := p.CategoryWatts[strings.ToLower(cat)]; ok {
				watts = w
				wattsSource = fmt.Sprintf("%s (%s=%s)", source, p.CategoryField, cat)
				inputs = append(inputs, audit.In(p.CategoryField, cat, attrSource(p.CategoryField)))
			}
		}
	}
	inputs = append(inputs, audit.In("wattsPer"+capitalize(p.UnitName), watts, wattsSource))

	kw := finiteKW(count * watts / 1000)
	steps := []audit.Step{{
		Category: audit.CategoryDemand,
		Label:    "base_load",
		Formula:  fmt.Sprintf("%s count × W per %s ÷ 1000", p.UnitName, p.UnitName),
		Inputs:   inputs,
		Output:   kw,
		Unit:     "kW",
	}}
	if kw > 0 || len(p.RangeFields) == 0 {
		return kw, steps
	}

	text, key, ok := attrs.FirstString(p.RangeFields)
	if !ok {
		return kw, steps
	}
	mid, ok := facility.ParseRangeKW(text)
	if !ok {
		return kw, steps
	}
	steps = append(steps, audit.Step{
		Category: audit.CategoryDemand,
		Label:    "base_load_range",
		Formula:  "midpoint of stated load range",
		Inputs:   []audit.Input{audit.In(key, text, attrSource(key))},
		Output:   mid,
		Unit:     "kW",
	})
	return mid, steps
}

func (p PerSqft) BaseLoad(attrs facility.Attributes, source string) (float64, []audit.Step) {
	area, key, _ := attrs.FirstNumber(p.AreaFields)
	area = math.Max(area, 0)
	kw := finiteKW(area * p.WattsPerSqft / 1000)
	return kw, []audit.Step{{
		Category: audit.CategoryDemand,
		Label:    "base_load",
		Formula:  "floor area × W per sq ft ÷ 1000",
		Inputs: []audit.Input{
			audit.In("squareFeet", area, attrSource(key)),
			audit.In("wattsPerSqft", p.WattsPerSqft, source),
		},
		Output: kw,
		Unit:   "kW",
	}}
}

func (f Fixed) BaseLoad(_ facility.Attributes, source string) (float64, []audit.Step) {
	kw := math.Max(finiteKW(f.BaselineKW), 0)
	return kw, []audit.Step{{
		Category: audit.CategoryDemand,
		Label:    "base_load",
		Formula:  "configured baseline",
		Inputs:   []audit.Input{audit.In("baselineKW", kw, source)},
		Output:   kw,
		Unit:     "kW",
	}}
}

func (c ChargerSum) BaseLoad(attrs facility.Attributes, source string) (float64, []audit.Step) {
	kw, inputs := SumChargers(c.Classes, attrs, source)
	return kw, []audit.Step{{
		Category: audit.CategoryDemand,
		Label:    "base_load",
		Formula:  "Σ charger count × kW per class",
		Inputs:   inputs,
		Output:   kw,
		Unit:     "kW",
	}}
}

// SumChargers adds up count × kW over classes, reading counts from attrs.
func SumChargers(classes []ChargerClass, attrs facility.Attributes, source string) (float64, []audit.Input) {
	total := 0.0
	inputs := make([]audit.Input, 0, len(classes)*2)
	for _, cls := range classes {
		n, key, _ := attrs.FirstNumber(cls.Fields)
		n = math.Max(n, 0)
		total += n * cls.KW
		inputs = append(inputs,
			audit.In(cls.Name+"Count", n, attrSource(key)),
			audit.In(cls.Name+"KW", cls.KW, source),
		)
	}
	return finiteKW(total), inputs
}

// finiteKW maps an overflowed or undefined load to zero; the resolver then
// reports the facility as unusable.
func finiteKW(kw float64) float64 {
	if math.IsNaN(kw) || math.IsInf(kw, 0) {
		return 0
	}
	return kw
}

func attrSource(key string) string {
	if key == "" {
		return "default (attribute missing)"
	}
	return "facility attribute " + key
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
