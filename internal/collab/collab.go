// Package collab holds the lookups the quote engine consumes as typed inputs:
// site location, utility rates, solar resource, tax-credit rate and grid
// emission factors. Each is an interface so DB-backed or remote versions can
// replace the static tables.
package collab

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Location is a resolved site.
type Location struct {
	ZIP    string `json:"zip,omitempty"`
	State  string `json:"state"`
	Region string `json:"region"`
	Source string `json:"source"`
}

// UtilityRate is a commercial tariff summary.
type UtilityRate struct {
	State        string  `json:"state"`
	EnergyPerKWh float64 `json:"energyPerKWh"`
	DemandPerKW  float64 `json:"demandPerKW"`
	Source       string  `json:"source"`
}

// SunHours is peak sun hours per day.
type SunHours struct {
	Hours  float64 `json:"hours"`
	Source string  `json:"source"`
}

// RateSource looks up utility rates by state.
type RateSource interface {
	UtilityRate(ctx context.Context, state string) (UtilityRate, error)
}

// SunSource estimates the solar resource at a site.
type SunSource interface {
	SunHours(ctx context.Context, loc Location) (SunHours, error)
}

// Locate resolves a site from an explicit state or a ZIP code. An explicit
// state wins; an unknown ZIP resolves to an empty state with national defaults.
func Locate(zip, state string) Location {
	zip = strings.TrimSpace(zip)
	state = strings.ToUpper(strings.TrimSpace(state))
	if state != "" {
		return Location{ZIP: zip, State: state, Region: regionOf(state), Source: "explicit state"}
	}
	if st, ok := stateForZIP(zip); ok {
		return Location{ZIP: zip, State: st, Region: regionOf(st), Source: "ZIP prefix table"}
	}
	return Location{ZIP: zip, Region: "national", Source: "national default (unknown ZIP)"}
}

func stateForZIP(zip string) (string, bool) {
	if len(zip) < 3 {
		return "", false
	}
	prefix, err := strconv.Atoi(zip[:3])
	if err != nil {
		return "", false
	}
	for _, r := range zipRanges {
		if prefix >= r.lo && prefix <= r.hi {
			return r.state, true
		}
	}
	return "", false
}

func regionOf(state string) string {
	if r, ok := stateRegions[state]; ok {
		return r
	}
	return "national"
}

// StaticRates serves the built-in commercial tariff table.
type StaticRates struct{}

// UtilityRate returns the state's tariff or the national average.
func (StaticRates) UtilityRate(_ context.Context, state string) (UtilityRate, error) {
	return StaticRate(state), nil
}

// StaticRate is the table lookup behind StaticRates.
func StaticRate(state string) UtilityRate {
	state = strings.ToUpper(state)
	if r, ok := utilityRates[state]; ok {
		r.State = state
		r.Source = "utility rate table " + RatesVersion + ": " + state
		return r
	}
	r := nationalRate
	r.State = state
	r.Source = "utility rate table " + RatesVersion + ": national average"
	return r
}

// StaticStates lists every state with its own tariff row, sorted by state.
func StaticStates() []UtilityRate {
	out := make([]UtilityRate, 0, len(utilityRates))
	for state := range utilityRates {
		out = append(out, StaticRate(state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

// StaticSun serves state sun hours with a regional then national fallback.
type StaticSun struct{}

// SunHours never fails.
func (StaticSun) SunHours(_ context.Context, loc Location) (SunHours, error) {
	if h, ok := stateSunHours[loc.State]; ok {
		return SunHours{Hours: h, Source: "solar resource table: " + loc.State}, nil
	}
	if h, ok := regionSunHours[loc.Region]; ok {
		return SunHours{Hours: h, Source: fmt.Sprintf("solar resource table: %s region fallback", loc.Region)}, nil
	}
	return SunHours{Hours: nationalSunHours, Source: "solar resource table: national fallback"}, nil
}

// TaxCreditInput are the labor and siting facts that set the ITC rate.
type TaxCreditInput struct {
	PrevailingWage  bool `json:"prevailingWage"`
	EnergyCommunity bool `json:"energyCommunity"`
	DomesticContent bool `json:"domesticContent"`
}

const (
	itcBase            = 0.06
	itcPrevailingWage  = 0.30
	itcEnergyCommunity = 0.10
	itcDomesticContent = 0.10
)

// ITCRate returns the investment tax credit fraction and how it was built.
func ITCRate(in TaxCreditInput) (float64, string) {
	rate := itcBase
	parts := []string{"base 6%"}
	if in.PrevailingWage {
		rate = itcPrevailingWage
		parts = []string{"prevailing wage 30%"}
	}
	if in.EnergyCommunity {
		rate += itcEnergyCommunity
		parts = append(parts, "energy community +10%")
	}
	if in.DomesticContent {
		rate += itcDomesticContent
		parts = append(parts, "domestic content +10%")
	}
	return rate, strings.Join(parts, ", ")
}

// EmissionFactor returns grid kg CO2 per kWh for a state.
func EmissionFactor(state string) (float64, string) {
	if f, ok := emissionFactors[strings.ToUpper(state)]; ok {
		return f, "grid emission factors: " + strings.ToUpper(state)
	}
	return nationalEmissionFactor, "grid emission factors: national average"
}
