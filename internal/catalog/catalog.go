// Package catalog prices sized equipment into market-cost line items.
package catalog

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/sizing"
)

// Version identifies the built-in equipment price list.
const Version = "equipment-catalog/2025.11"

// Tier prices everything up to UpTo units. UpTo 0 means no limit.
type Tier struct {
	UpTo  float64 `json:"upTo"`
	Price float64 `json:"price"`
}

// Catalog is the market-cost price list. Tiers are ordered by UpTo.
type Catalog struct {
	Version string `json:"version"`
	Source  string `json:"source"`

	BatteryPerKWh  []Tier             `json:"batteryPerKWh"`
	InverterPerKW  []Tier             `json:"inverterPerKW"`
	SolarPerWatt   []Tier             `json:"solarPerWatt"` // tiers keyed by array kW
	GeneratorPerKW []Tier             `json:"generatorPerKW"`
	ChargerEach    map[string]float64 `json:"chargerEach"`
	Controller     float64            `json:"controller"`

	BOSPct          float64 `json:"bosPct"`
	InstallationPct float64 `json:"installationPct"`
	EngineeringPct  float64 `json:"engineeringPct"`
	EngineeringMin  float64 `json:"engineeringMin"`
}

// Default returns the built-in price list.
func Default() Catalog {
	return Catalog{
		Version: Version,
		Source:  "equipment catalog " + Version,
		BatteryPerKWh: []Tier{
			{UpTo: 500, Price: 165},
			{UpTo: 2000, Price: 145},
			{UpTo: 10000, Price: 128},
			{Price: 118},
		},
		InverterPerKW: []Tier{
			{UpTo: 250, Price: 120},
			{UpTo: 1000, Price: 100},
			{Price: 90},
		},
		SolarPerWatt: []Tier{
			{UpTo: 100, Price: 1.10},
			{UpTo: 1000, Price: 0.95},
			{Price: 0.85},
		},
		GeneratorPerKW: []Tier{
			{UpTo: 500, Price: 650},
			{UpTo: 2000, Price: 550},
			{Price: 480},
		},
		ChargerEach: map[string]float64{
			"level1": 1_200,
			"level2": 6_500,
			"dcfc":   55_000,
			"hpc":    140_000,
		},
		Controller:      45_000,
		BOSPct:          0.12,
		InstallationPct: 0.15,
		EngineeringPct:  0.06,
		EngineeringMin:  15_000,
	}
}

// TierPrice returns the price of the first tier that covers qty.
func TierPrice(tiers []Tier, qty float64) float64 {
	for _, t := range tiers {
		if t.UpTo <= 0 || qty <= t.UpTo {
			return t.Price
		}
	}
	if len(tiers) == 0 {
		return 0
	}
	return tiers[len(tiers)-1].Price
}

// Priced is the costed equipment list.
type Priced struct {
	LineItems     []pricing.LineItem `json:"lineItems"`
	EquipmentCost float64            `json:"equipmentCost"`
	SoftCost      float64            `json:"softCost"`
	BaseCost      float64            `json:"baseCost"`
	Log           audit.Log          `json:"-"`
}

// Price costs every sized component. Zero-sized components produce no line.
func (c Catalog) Price(eq sizing.Equipment) Priced {
	var (
		items []pricing.LineItem
		log   audit.Log
	)
	equipment := decimal.Zero

	add := func(item pricing.LineItem, formula string, inputs []audit.Input) {
		total := lineTotal(item)
		items = append(items, item)
		log = log.Append(audit.Step{
			Category: audit.CategoryCost,
			Label:    "cost:" + item.ID,
			Formula:  formula,
			Inputs:   inputs,
			Output:   total.InexactFloat64(),
			Unit:     "USD",
		})
		equipment = equipment.Add(total)
	}
	tiered := func(id, desc string, class pricing.ProductClass, unit string, qty, sizeKey float64, tiers []Tier, tierName string) {
		if qty <= 0 {
			return
		}
		price := TierPrice(tiers, sizeKey)
		add(pricing.LineItem{ID: id, Description: desc, ProductClass: class, Quantity: qty, Unit: unit, UnitCost: price},
			fmt.Sprintf("quantity × %s tier price", tierName),
			[]audit.Input{
				audit.In("quantity", qty, "sizing"),
				audit.In("unitCost", price, c.Source),
			})
	}

	b := eq.Battery
	tiered("bess", "Battery energy storage system", pricing.ClassBESS, "kWh", b.EnergyKWh, b.EnergyKWh, c.BatteryPerKWh, "battery $/kWh")
	tiered("pcs", "Power conversion system", pricing.ClassInverter, "kW", b.PowerKW, b.PowerKW, c.InverterPerKW, "inverter $/kW")
	if eq.Solar != nil {
		tiered("solar", "Solar PV array", pricing.ClassSolar, "W", eq.Solar.CapacityKW*1000, eq.Solar.CapacityKW, c.SolarPerWatt, "solar $/W")
	}
	if eq.Generator != nil {
		tiered("generator", "Backup generator", pricing.ClassGenerator, "kW", eq.Generator.PowerKW, eq.Generator.PowerKW, c.GeneratorPerKW, "generator $/kW")
	}
	if eq.EV != nil {
		for _, ch := range eq.EV.Chargers {
			price, ok := c.ChargerEach[ch.Class]
			if !ok || ch.Count <= 0 {
				continue
			}
			add(pricing.LineItem{
				ID: "ev-" + ch.Class, Description: fmt.Sprintf("EV charger (%s, %.1f kW)", ch.Class, ch.KWEach),
				ProductClass: pricing.ClassEVCharger, Quantity: float64(ch.Count), Unit: "each", UnitCost: price,
			}, "count × unit price", []audit.Input{
				audit.In("count", ch.Count, "sizing"),
				audit.In("unitCost", price, c.Source),
			})
		}
	}
	if b.PowerKW > 0 && eq.Solar != nil && eq.Solar.CapacityKW > 0 && eq.Generator != nil && eq.Generator.PowerKW > 0 {
		add(pricing.LineItem{
			ID: "controller", Description: "Microgrid controller", ProductClass: pricing.ClassController,
			Quantity: 1, Unit: "each", UnitCost: c.Controller,
		}, "fixed price when storage, solar and generator coexist", []audit.Input{
			audit.In("unitCost", c.Controller, c.Source),
		})
	}

	out := Priced{LineItems: items, EquipmentCost: equipment.InexactFloat64()}
	if !equipment.IsPositive() {
		out.LineItems = []pricing.LineItem{}
		out.Log = log
		return out
	}

	soft := decimal.Zero
	pct := func(id, desc string, class pricing.ProductClass, p, floor float64) {
		amount := equipment.Mul(decimal.NewFromFloat(p)).Round(2)
		formula := fmt.Sprintf("equipment cost × %.0f%%", p*100)
		inputs := []audit.Input{
			audit.In("equipmentCost", equipment.InexactFloat64(), "cost steps"),
			audit.In("pct", p, c.Source),
		}
		if floor > 0 && amount.LessThan(decimal.NewFromFloat(floor)) {
			amount = decimal.NewFromFloat(floor)
			formula = fmt.Sprintf("max(equipment cost × %.0f%%, minimum fee)", p*100)
			inputs = append(inputs, audit.In("minimum", floor, c.Source))
		}
		if !amount.IsPositive() {
			return
		}
		items = append(items, pricing.LineItem{ID: id, Description: desc, ProductClass: class, Quantity: 1, Unit: "lot", UnitCost: amount.InexactFloat64()})
		log = log.Append(audit.Step{Category: audit.CategoryCost, Label: "cost:" + id, Formula: formula, Inputs: inputs, Output: amount.InexactFloat64(), Unit: "USD"})
		soft = soft.Add(amount)
	}
	pct("bos", "Balance of system", pricing.ClassBOS, c.BOSPct, 0)
	pct("installation", "Installation labor", pricing.ClassInstallation, c.InstallationPct, 0)
	pct("engineering", "Engineering and permitting", pricing.ClassEngineering, c.EngineeringPct, c.EngineeringMin)

	base := equipment.Add(soft)
	log = log.Append(audit.Step{
		Category: audit.CategoryCost,
		Label:    "base_cost",
		Formula:  "equipment cost + soft costs",
		Inputs: []audit.Input{
			audit.In("equipmentCost", equipment.InexactFloat64(), "cost steps"),
			audit.In("softCost", soft.InexactFloat64(), "cost steps"),
		},
		Output: base.InexactFloat64(),
		Unit:   "USD",
	})

	out.LineItems = items
	out.SoftCost = soft.InexactFloat64()
	out.BaseCost = base.InexactFloat64()
	out.Log = log
	return out
}

func lineTotal(item pricing.LineItem) decimal.Decimal {
	if !(item.Quantity > 0 && item.UnitCost > 0) || math.IsInf(item.Quantity, 0) || math.IsInf(item.UnitCost, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(item.UnitCost).Mul(decimal.NewFromFloat(item.Quantity)).Round(2)
}
