// Package finance summarizes project economics from the customer price and
// site tariffs.
package finance

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/industry"
	"github.com/Simplici0/voltquote/internal/pricing"
)

const (
	RoundTripEfficiency = 0.88
	// PeakerDisplacement is the extra kg CO2 avoided per kWh shifted off peak,
	// as a fraction of the average grid factor.
	PeakerDisplacement = 0.15
	CarTonsPerYear     = 4.6
	TreeTonsPerYear    = 0.06
	ProjectYears       = 25
	ROIYears           = 5
)

var itcEligible = map[pricing.ProductClass]bool{
	pricing.ClassBESS:       true,
	pricing.ClassInverter:   true,
	pricing.ClassSolar:      true,
	pricing.ClassController: true,
}

var softClasses = map[pricing.ProductClass]bool{
	pricing.ClassBOS:          true,
	pricing.ClassInstallation: true,
	pricing.ClassEngineering:  true,
}

// EligibleCost returns the ITC basis of priced lines: eligible equipment plus
// the same share of soft costs.
func EligibleCost(lines []pricing.LineResult) float64 {
	var eligible, hard, soft float64
	for _, l := range lines {
		switch {
		case softClasses[l.ProductClass]:
			soft += l.SellPrice
		default:
			hard += l.SellPrice
			if itcEligible[l.ProductClass] {
				eligible += l.SellPrice
			}
		}
	}
	if hard <= 0 {
		return 0
	}
	return round2(eligible + soft*eligible/hard)
}

// Input is everything the summarizer reads.
type Input struct {
	SellTotal      float64
	EligibleCost   float64
	ITCRate        float64
	ITCSource      string
	Rate           collab.UtilityRate
	Defaults       industry.FinancialDefaults
	BatteryKW      float64
	// BatteryKWStep labels the sizing step that produced BatteryKW.
	BatteryKWStep  string
	BatteryKWh     float64
	SolarAnnualKWh float64
	EmissionFactor float64
	EmissionSource string
}

// Emissions are annual avoided emissions.
type Emissions struct {
	AnnualTonsCO2   float64 `json:"annualTonsCO2"`
	CarsEquivalent  float64 `json:"carsEquivalent"`
	TreesEquivalent float64 `json:"treesEquivalent"`
}

// Summary is the financial block of a quote. PaybackYears is nil when the
// project never pays back.
type Summary struct {
	TotalInvestment  float64   `json:"totalInvestment"`
	TaxCredit        float64   `json:"taxCredit"`
	NetCost          float64   `json:"netCost"`
	DemandSavings    float64   `json:"demandSavings"`
	ArbitrageSavings float64   `json:"arbitrageSavings"`
	SolarSavings     float64   `json:"solarSavings"`
	AnnualSavings    float64   `json:"annualSavings"`
	PaybackYears     *float64  `json:"paybackYears"`
	ROI5Year         float64   `json:"roi5Year"`
	ROI5YearPercent  float64   `json:"roi5YearPercent"`
	NPV25Year        float64   `json:"npv25Year"`
	Emissions        Emissions `json:"emissions"`
}

// Summarize computes the financial block and its steps.
func Summarize(in Input) (Summary, audit.Log) {
	var log audit.Log
	step := func(cat, label, formula string, out float64, unit string, inputs ...audit.Input) {
		log = log.Append(audit.Step{Category: cat, Label: label, Formula: formula, Inputs: inputs, Output: out, Unit: unit})
	}
	rateSrc := in.Rate.Source
	d := in.Defaults
	batteryStep := in.BatteryKWStep
	if batteryStep == "" {
		batteryStep = "battery_power"
	}
	solarSrc := "no solar array"
	if in.SolarAnnualKWh > 0 {
		solarSrc = "solar_production step"
	}

	var s Summary
	s.TotalInvestment = round2(in.SellTotal)
	step(audit.CategoryFinance, "total_investment", "margin engine sell total", s.TotalInvestment, "USD",
		audit.In("sellTotal", in.SellTotal, "margin engine"))

	s.TaxCredit = round2(in.EligibleCost * in.ITCRate)
	step(audit.CategoryFinance, "tax_credit", "ITC-eligible cost × ITC rate", s.TaxCredit, "USD",
		audit.In("eligibleCost", in.EligibleCost, "priced line items"),
		audit.In("itcRate", in.ITCRate, in.ITCSource))

	s.NetCost = round2(s.TotalInvestment - s.TaxCredit)
	step(audit.CategoryFinance, "net_cost", "total investment − tax credit", s.NetCost, "USD",
		audit.In("totalInvestment", s.TotalInvestment, "total_investment step"),
		audit.In("taxCredit", s.TaxCredit, "tax_credit step"))

	s.DemandSavings = round2(in.BatteryKW * in.Rate.DemandPerKW * 12 * d.DemandCaptureRatio)
	step(audit.CategoryFinance, "demand_savings", "battery kW × demand charge × 12 × capture ratio", s.DemandSavings, "USD/yr",
		audit.In("batteryKW", in.BatteryKW, batteryStep+" step"),
		audit.In("demandPerKW", in.Rate.DemandPerKW, rateSrc),
		audit.In("demandCaptureRatio", d.DemandCaptureRatio, "industry financial defaults"))

	shifted := in.BatteryKWh * d.CyclesPerYear * RoundTripEfficiency
	s.ArbitrageSavings = round2(shifted * in.Rate.EnergyPerKWh * d.ArbitrageSpread)
	step(audit.CategoryFinance, "arbitrage_savings", "battery kWh × cycles × round-trip efficiency × energy rate × TOU spread", s.ArbitrageSavings, "USD/yr",
		audit.In("batteryKWh", in.BatteryKWh, "battery_energy step"),
		audit.In("cyclesPerYear", d.CyclesPerYear, "industry financial defaults"),
		audit.In("roundTripEfficiency", RoundTripEfficiency, "engine constant"),
		audit.In("energyPerKWh", in.Rate.EnergyPerKWh, rateSrc),
		audit.In("arbitrageSpread", d.ArbitrageSpread, "industry financial defaults"))

	s.SolarSavings = round2(in.SolarAnnualKWh * in.Rate.EnergyPerKWh)
	step(audit.CategoryFinance, "solar_savings", "annual solar kWh × energy rate", s.SolarSavings, "USD/yr",
		audit.In("solarAnnualKWh", in.SolarAnnualKWh, solarSrc),
		audit.In("energyPerKWh", in.Rate.EnergyPerKWh, rateSrc))

	s.AnnualSavings = round2(s.DemandSavings + s.ArbitrageSavings + s.SolarSavings)
	step(audit.CategoryFinance, "annual_savings", "demand + arbitrage + solar savings", s.AnnualSavings, "USD/yr",
		audit.In("demandSavings", s.DemandSavings, "demand_savings step"),
		audit.In("arbitrageSavings", s.ArbitrageSavings, "arbitrage_savings step"),
		audit.In("solarSavings", s.SolarSavings, "solar_savings step"))

	if s.AnnualSavings > 0 && s.NetCost > 0 {
		years := math.Round(s.NetCost/s.AnnualSavings*10) / 10
		s.PaybackYears = &years
		step(audit.CategoryFinance, "payback", "net cost ÷ annual savings", years, "years",
			audit.In("netCost", s.NetCost, "net_cost step"),
			audit.In("annualSavings", s.AnnualSavings, "annual_savings step"))
	}

	if s.NetCost > 0 {
		cum := 0.0
		for y := 1; y <= ROIYears; y++ {
			cum += s.AnnualSavings * math.Pow(1+d.RateEscalation, float64(y-1))
		}
		s.ROI5Year = math.Round((cum-s.NetCost)/s.NetCost*1e4) / 1e4
		s.ROI5YearPercent = math.Round(s.ROI5Year*1e4) / 100
		step(audit.CategoryFinance, "roi_5yr", "(Σ escalated savings over 5 years − net cost) ÷ net cost", s.ROI5Year, "ratio",
			audit.In("netCost", s.NetCost, "net_cost step"),
			audit.In("rateEscalation", d.RateEscalation, "industry financial defaults"))
	}

	npv := -s.NetCost
	for y := 1; y <= ProjectYears; y++ {
		npv += s.AnnualSavings * math.Pow(1+d.RateEscalation, float64(y-1)) / math.Pow(1+d.DiscountRate, float64(y))
	}
	s.NPV25Year = round2(npv)
	step(audit.CategoryFinance, "npv_25yr", "−net cost + Σ savings×(1+escalation)^(y−1) ÷ (1+discount)^y, y=1..25", s.NPV25Year, "USD",
		audit.In("netCost", s.NetCost, "net_cost step"),
		audit.In("discountRate", d.DiscountRate, "industry financial defaults"),
		audit.In("rateEscalation", d.RateEscalation, "industry financial defaults"))

	kg := in.SolarAnnualKWh*in.EmissionFactor + shifted*in.EmissionFactor*PeakerDisplacement
	tons := math.Round(kg/1000*10) / 10
	s.Emissions = Emissions{
		AnnualTonsCO2:   tons,
		CarsEquivalent:  math.Round(tons / CarTonsPerYear),
		TreesEquivalent: math.Round(tons / TreeTonsPerYear),
	}
	step(audit.CategoryEmissions, "emissions_avoided", "(solar kWh + shifted kWh × peaker displacement) × grid factor ÷ 1000", tons, "tCO2/yr",
		audit.In("solarAnnualKWh", in.SolarAnnualKWh, solarSrc),
		audit.In("shiftedKWh", shifted, "arbitrage_savings step"),
		audit.In("emissionFactor", in.EmissionFactor, in.EmissionSource))
	return s, log
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
