package catalog

import (
	"math"
	"testing"

	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/sizing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestTierPrice(t *testing.T) {
	tiers := Default().BatteryPerKWh
	nearlyEqual(t, "small", TierPrice(tiers, 400), 165)
	nearlyEqual(t, "edge", TierPrice(tiers, 500), 165)
	nearlyEqual(t, "mid", TierPrice(tiers, 501), 145)
	nearlyEqual(t, "open", TierPrice(tiers, 1e6), 118)
	nearlyEqual(t, "empty", TierPrice(nil, 10), 0)
}

func TestPriceBatteryOnly(t *testing.T) {
	p := Default().Price(sizing.Equipment{Battery: sizing.Battery{PowerKW: 100, EnergyKWh: 400, DurationHours: 4}})

	nearlyEqual(t, "equipment", p.EquipmentCost, 400*165+100*120)
	nearlyEqual(t, "soft", p.SoftCost, 78000*0.12+78000*0.15+15000)
	nearlyEqual(t, "base", p.BaseCost, 78000+9360+11700+15000)

	want := []string{"bess", "pcs", "bos", "installation", "engineering"}
	if len(p.LineItems) != len(want) {
		t.Fatalf("line items = %+v", p.LineItems)
	}
	for i, id := range want {
		if p.LineItems[i].ID != id {
			t.Fatalf("item %d = %q, want %q", i, p.LineItems[i].ID, id)
		}
	}
	if last, _ := p.Log.Last(); last.Label != "base_cost" {
		t.Fatalf("last step = %q, want base_cost", last.Label)
	}
}

func TestPriceAddsControllerForFullMicrogrid(t *testing.T) {
	eq := sizing.Equipment{
		Battery:   sizing.Battery{PowerKW: 500, EnergyKWh: 2000},
		Solar:     &sizing.Solar{CapacityKW: 300},
		Generator: &sizing.Generator{PowerKW: 400},
		EV:        &sizing.EVCharging{Chargers: []sizing.ChargerCount{{Class: "level2", Count: 10, KWEach: 7.2}}},
	}
	p := Default().Price(eq)

	classes := map[pricing.ProductClass]pricing.LineItem{}
	for _, li := range p.LineItems {
		classes[li.ProductClass] = li
	}
	for _, c := range []pricing.ProductClass{pricing.ClassBESS, pricing.ClassInverter, pricing.ClassSolar, pricing.ClassGenerator, pricing.ClassEVCharger, pricing.ClassController} {
		if _, ok := classes[c]; !ok {
			t.Fatalf("missing %s line", c)
		}
	}
	nearlyEqual(t, "solar watts", classes[pricing.ClassSolar].Quantity, 300_000)
	nearlyEqual(t, "solar $/W", classes[pricing.ClassSolar].UnitCost, 0.95)
	nearlyEqual(t, "bess $/kWh", classes[pricing.ClassBESS].UnitCost, 145)
	nearlyEqual(t, "charger qty", classes[pricing.ClassEVCharger].Quantity, 10)

	noGen := eq
	noGen.Generator = nil
	for _, li := range Default().Price(noGen).LineItems {
		if li.ProductClass == pricing.ClassController {
			t.Fatalf("controller priced without a generator")
		}
	}
}

func TestPriceEmptyEquipment(t *testing.T) {
	p := Default().Price(sizing.Equipment{})
	if len(p.LineItems) != 0 || p.BaseCost != 0 {
		t.Fatalf("empty equipment priced: %+v", p)
	}
}

func TestLineTotalIgnoresNonFinite(t *testing.T) {
	for _, item := range []pricing.LineItem{
		{Quantity: math.Inf(1), UnitCost: 100},
		{Quantity: 10, UnitCost: math.Inf(1)},
		{Quantity: math.NaN(), UnitCost: 100},
		{Quantity: 10, UnitCost: math.NaN()},
	} {
		if got := lineTotal(item); !got.IsZero() {
			t.Fatalf("lineTotal(%v x %v) = %v, want 0", item.Quantity, item.UnitCost, got)
		}
	}
	nearlyEqual(t, "finite total", lineTotal(pricing.LineItem{Quantity: 3, UnitCost: 2.5}).InexactFloat64(), 7.5)
}
