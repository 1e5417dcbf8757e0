package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Unit costs and quantities above these limits are clamped down to them.
const (
	MaxUnitCost = 1e12
	MaxQuantity = 1e12
)

// LineItem is one priced row entering the margin stack. UnitCost is the
// market (Layer 0) cost per unit.
type LineItem struct {
	ID           string       `json:"id"`
	Description  string       `json:"description"`
	ProductClass ProductClass `json:"productClass"`
	Quantity     float64      `json:"quantity"`
	Unit         string       `json:"unit"`
	UnitCost     float64      `json:"unitCost"`
}

// QuoteUnits carries quote-wide physical totals for fleet-level guards.
type QuoteUnits struct {
	StorageKWh float64 `json:"storageKWh,omitempty"`
}

// Request groups the inputs of one margin calculation. ForceMargin and
// MaxMargin are fractions; nil means not supplied.
type Request struct {
	LineItems     []LineItem      `json:"lineItems"`
	TotalBaseCost float64         `json:"totalBaseCost"`
	RiskLevel     RiskLevel       `json:"riskLevel,omitempty"`
	Segment       CustomerSegment `json:"customerSegment,omitempty"`
	ForceMargin   *float64        `json:"forceMargin,omitempty"`
	MaxMargin     *float64        `json:"maxMargin,omitempty"`
	Units         QuoteUnits      `json:"quoteUnits"`
}

// ClampReason names why a value was corrected.
type ClampReason string

const (
	ReasonNegativeCost        ClampReason = "negative_cost"
	ReasonNegativeQuantity    ClampReason = "negative_quantity"
	ReasonNotFinite           ClampReason = "not_finite"
	ReasonSanityLimit         ClampReason = "sanity_limit"
	ReasonProcurementBuffer   ClampReason = "procurement_buffer"
	ReasonBandFloor           ClampReason = "band_floor"
	ReasonBandCeiling         ClampReason = "band_ceiling"
	ReasonMaxMargin           ClampReason = "max_margin"
	ReasonQuoteFloor          ClampReason = "quote_floor"
	ReasonCeiling             ClampReason = "ceiling"
	ReasonObtainableProtected ClampReason = "obtainable_cost_protected"
	ReasonSellBelowObtainable ClampReason = "sell_below_obtainable"
)

// Layer names the stage of the stack where an event fired.
type Layer string

const (
	LayerMarket     Layer = "market"
	LayerObtainable Layer = "obtainable"
	LayerSell       Layer = "sell"
	LayerGuard      Layer = "guard"
	LayerInvariant  Layer = "invariant"
)

// ClampEvent records an automatic correction.
type ClampEvent struct {
	LineItemID string      `json:"lineItemId"`
	Layer      Layer       `json:"layer"`
	Reason     ClampReason `json:"reason"`
	Before     float64     `json:"before"`
	After      float64     `json:"after"`
	Detail     string      `json:"detail"`
}

// ReviewEvent flags a price a human must confirm. It never alters numbers.
type ReviewEvent struct {
	LineItemID     string       `json:"lineItemId"`
	ProductClass   ProductClass `json:"productClass"`
	Reason         string       `json:"reason"`
	MarketUnitCost float64      `json:"marketUnitCost"`
	Threshold      float64      `json:"threshold"`
	Detail         string       `json:"detail"`
}

// LineResult is the three-layer breakdown of one line item.
type LineResult struct {
	ID                       string       `json:"id"`
	Description              string       `json:"description"`
	ProductClass             ProductClass `json:"productClass"`
	Quantity                 float64      `json:"quantity"`
	Unit                     string       `json:"unit"`
	MarketUnitCost           float64      `json:"marketUnitCost"`
	ObtainableUnitCost       float64      `json:"obtainableUnitCost"`
	SellUnitPrice            float64      `json:"sellUnitPrice"`
	MarketCost               float64      `json:"marketCost"`
	ObtainableCost           float64      `json:"obtainableCost"`
	SellPrice                float64      `json:"sellPrice"`
	MarginDollars            float64      `json:"marginDollars"`
	TargetMargin             float64      `json:"targetMargin"`
	AppliedMargin            float64      `json:"appliedMargin"`
	EffectiveMargin          float64      `json:"effectiveMargin"`
	ProcurementBufferApplied bool         `json:"procurementBufferApplied"`
}

// Result is the margin envelope. Presentation layers treat SellTotal as the
// customer price and never recompute margin.
type Result struct {
	PolicyVersion          string          `json:"policyVersion"`
	Band                   MarginBand      `json:"band"`
	RiskLevel              RiskLevel       `json:"riskLevel"`
	Segment                CustomerSegment `json:"customerSegment"`
	MarketTotal            float64         `json:"marketTotal"`
	ObtainableTotal        float64         `json:"obtainableTotal"`
	SellTotal              float64         `json:"sellTotal"`
	MarginDollars          float64         `json:"marginDollars"`
	BlendedMargin          float64         `json:"blendedMargin"`
	BlendedMarginPercent   float64         `json:"blendedMarginPercent"`
	LineItems              []LineResult    `json:"lineItems"`
	ClampEvents            []ClampEvent    `json:"clampEvents"`
	ReviewEvents           []ReviewEvent   `json:"reviewEvents"`
	Warnings               []string        `json:"warnings"`
	NeedsHumanReview       bool            `json:"needsHumanReview"`
	PassesQuoteLevelGuards bool            `json:"passesQuoteLevelGuards"`
}

// Apply runs the margin stack over every line item. It never fails: anomalies
// become clamp events, review events or warnings.
func (p Policy) Apply(req Request) Result {
	band := p.MarginBand(req.TotalBaseCost)
	risk, segment := req.RiskLevel, req.Segment
	var warnings []string

	riskAdd, ok := p.Risk[risk]
	if !ok {
		if risk != "" {
			warnings = append(warnings, fmt.Sprintf("unknown risk level %q; using %s", risk, RiskStandard))
		}
		risk = RiskStandard
		riskAdd = p.Risk[RiskStandard]
	}
	segMult, ok := p.Segments[segment]
	if !ok {
		if segment != "" {
			warnings = append(warnings, fmt.Sprintf("unknown customer segment %q; using %s", segment, SegmentDirect))
		}
		segment = SegmentDirect
		segMult, ok = p.Segments[SegmentDirect]
		if !ok {
			segMult = 1
		}
	}

	force, maxMargin := req.ForceMargin, req.MaxMargin
	if force != nil && !finite(*force) {
		warnings = append(warnings, "force margin is not a finite number; ignored")
		force = nil
	}
	if maxMargin != nil && !finite(*maxMargin) {
		warnings = append(warnings, "max margin is not a finite number; ignored")
		maxMargin = nil
	}

	res := Result{
		PolicyVersion: p.Version,
		Band:          band,
		RiskLevel:     risk,
		Segment:       segment,
		LineItems:     make([]LineResult, 0, len(req.LineItems)),
		ClampEvents:   []ClampEvent{},
		ReviewEvents:  []ReviewEvent{},
	}

	market, obtainable, sell := decimal.Zero, decimal.Zero, decimal.Zero
	for i, item := range req.LineItems {
		lr, totals, clamps, reviews := p.applyLine(i, item, band, riskAdd, segMult, force, maxMargin)
		res.LineItems = append(res.LineItems, lr)
		res.ClampEvents = append(res.ClampEvents, clamps...)
		res.ReviewEvents = append(res.ReviewEvents, reviews...)
		market = market.Add(totals.market)
		obtainable = obtainable.Add(totals.obtainable)
		sell = sell.Add(totals.sell)
	}

	res.MarketTotal = market.InexactFloat64()
	res.ObtainableTotal = obtainable.InexactFloat64()
	res.SellTotal = sell.InexactFloat64()
	res.MarginDollars = sell.Sub(obtainable).InexactFloat64()
	if obtainable.IsPositive() {
		blended := sell.Sub(obtainable).Div(obtainable)
		res.BlendedMargin = blended.Round(6).InexactFloat64()
		res.BlendedMarginPercent = blended.Shift(2).Round(2).InexactFloat64()
	}
	res.NeedsHumanReview = len(res.ReviewEvents) > 0

	passes := true
	if len(req.LineItems) == 0 {
		warnings = append(warnings, "quote has no line items")
		passes = false
	}
	if sell.LessThan(obtainable) {
		warnings = append(warnings, "negative margin: sell total below obtainable total")
		passes = false
	}
	for _, lr := range res.LineItems {
		if lr.EffectiveMargin < 0 {
			warnings = append(warnings, fmt.Sprintf("negative margin on line item %s", lr.ID))
			passes = false
		}
	}
	if len(req.LineItems) > 0 && obtainable.IsPositive() {
		qg := p.QuoteGuards
		if res.BlendedMargin < qg.BlendedMarginMin || res.BlendedMargin > qg.BlendedMarginMax {
			warnings = append(warnings, fmt.Sprintf("blended margin %.2f%% outside sanity band %.0f%%-%.0f%%",
				res.BlendedMarginPercent, qg.BlendedMarginMin*100, qg.BlendedMarginMax*100))
			passes = false
		}
	}
	if w, ok := p.fleetCheck(res.LineItems, req.Units); !ok {
		warnings = append(warnings, w)
		passes = false
	}

	res.Warnings = append([]string{}, warnings...)
	res.PassesQuoteLevelGuards = passes
	return res
}

// Apply runs the built-in policy.
func Apply(req Request) Result {
	return DefaultPolicy().Apply(req)
}

// lineTotals are the exact rounded totals of one line.
type lineTotals struct {
	market, obtainable, sell decimal.Decimal
}

func (p Policy) applyLine(idx int, item LineItem, band MarginBand, riskAdd, segMult float64, force, maxMargin *float64) (LineResult, lineTotals, []ClampEvent, []ReviewEvent) {
	id := item.ID
	if id == "" {
		id = fmt.Sprintf("item-%d", idx+1)
	}
	var clamps []ClampEvent
	var reviews []ReviewEvent
	clamp := func(layer Layer, reason ClampReason, before, after float64, detail string) {
		clamps = append(clamps, ClampEvent{LineItemID: id, Layer: layer, Reason: reason, Before: before, After: after, Detail: detail})
	}

	qty := item.Quantity
	switch {
	case !finite(qty):
		clamp(LayerMarket, ReasonNotFinite, 0, 0, fmt.Sprintf("quantity %v is not a finite number", qty))
		qty = 0
	case qty < 0:
		clamp(LayerMarket, ReasonNegativeQuantity, qty, 0, "quantity cannot be negative")
		qty = 0
	case qty > MaxQuantity:
		clamp(LayerMarket, ReasonSanityLimit, qty, MaxQuantity, "quantity above sanity limit")
		qty = MaxQuantity
	}

	// Layer 0
	marketUnit := item.UnitCost
	switch {
	case !finite(marketUnit):
		clamp(LayerMarket, ReasonNotFinite, 0, 0, fmt.Sprintf("unit cost %v is not a finite number", marketUnit))
		marketUnit = 0
	case marketUnit < 0:
		clamp(LayerMarket, ReasonNegativeCost, marketUnit, 0, "unit cost cannot be negative")
		marketUnit = 0
	case marketUnit > MaxUnitCost:
		clamp(LayerMarket, ReasonSanityLimit, marketUnit, MaxUnitCost, "unit cost above sanity limit")
		marketUnit = MaxUnitCost
	}

	guard, hasGuard := p.Guards[item.ProductClass]

	// Layer 1
	obtainableUnit := marketUnit
	buffered := false
	if hasGuard && marketUnit < guard.ProcurementBufferTrigger {
		obtainableUnit = marketUnit * (1 + guard.ProcurementBufferPct)
		buffered = true
		clamp(LayerObtainable, ReasonProcurementBuffer, marketUnit, obtainableUnit,
			fmt.Sprintf("market %.4g/%s below trigger %.4g; +%.0f%% procurement buffer", marketUnit, guard.Unit, guard.ProcurementBufferTrigger, guard.ProcurementBufferPct*100))
	}
	if hasGuard && marketUnit < guard.ReviewBelowPrice {
		reviews = append(reviews, ReviewEvent{
			LineItemID:     id,
			ProductClass:   item.ProductClass,
			Reason:         "below_review_price",
			MarketUnitCost: marketUnit,
			Threshold:      guard.ReviewBelowPrice,
			Detail:         fmt.Sprintf("market %.4g/%s below review threshold %.4g (market reference %.4g, %s)", marketUnit, guard.Unit, guard.ReviewBelowPrice, guard.MarketPrice, guard.MarketSource),
		})
	}

	// Layer 2
	var target float64
	margin := 0.0
	if force != nil {
		target = *force
		margin = target
	} else {
		target = p.composeTarget(item.ProductClass, band, riskAdd, segMult)
		margin = target
		if margin < band.MarginMin {
			clamp(LayerSell, ReasonBandFloor, margin, band.MarginMin, fmt.Sprintf("band %s floor", band.Name))
			margin = band.MarginMin
		}
		if margin > band.MarginMax {
			clamp(LayerSell, ReasonBandCeiling, margin, band.MarginMax, fmt.Sprintf("band %s ceiling", band.Name))
			margin = band.MarginMax
		}
	}
	if maxMargin != nil && margin > *maxMargin {
		clamp(LayerSell, ReasonMaxMargin, margin, *maxMargin, "max margin override")
		margin = *maxMargin
	}
	sellUnit := obtainableUnit * (1 + margin)
	if !finite(sellUnit) {
		clamp(LayerSell, ReasonNotFinite, obtainableUnit, obtainableUnit, fmt.Sprintf("sell price not finite at margin %v; held at obtainable", margin))
		sellUnit = obtainableUnit
	}

	// Guard clamps
	if hasGuard {
		if sellUnit < guard.QuoteFloorPrice {
			clamp(LayerGuard, ReasonQuoteFloor, sellUnit, guard.QuoteFloorPrice, fmt.Sprintf("raised to quote floor %.4g/%s", guard.QuoteFloorPrice, guard.Unit))
			sellUnit = guard.QuoteFloorPrice
		}
		if sellUnit > guard.CeilingPrice {
			after := math.Max(guard.CeilingPrice, obtainableUnit)
			reason := ReasonCeiling
			detail := fmt.Sprintf("lowered to ceiling %.4g/%s", guard.CeilingPrice, guard.Unit)
			if obtainableUnit > guard.CeilingPrice {
				reason = ReasonObtainableProtected
				detail = fmt.Sprintf("obtainable %.4g/%s exceeds ceiling %.4g; held at obtainable", obtainableUnit, guard.Unit, guard.CeilingPrice)
			}
			if after != sellUnit {
				clamp(LayerGuard, reason, sellUnit, after, detail)
				sellUnit = after
			}
		}
	}
	if sellUnit < obtainableUnit {
		clamp(LayerInvariant, ReasonSellBelowObtainable, sellUnit, obtainableUnit, "sell forced up to obtainable cost")
		sellUnit = obtainableUnit
	}

	q := decimal.NewFromFloat(qty)
	marketTotal := decimal.NewFromFloat(marketUnit).Mul(q).Round(2)
	obtainableTotal := decimal.NewFromFloat(obtainableUnit).Mul(q).Round(2)
	sellTotal := decimal.NewFromFloat(sellUnit).Mul(q).Round(2)

	lr := LineResult{
		ID:                       id,
		Description:              item.Description,
		ProductClass:             item.ProductClass,
		Quantity:                 qty,
		Unit:                     item.Unit,
		MarketUnitCost:           marketUnit,
		ObtainableUnitCost:       obtainableUnit,
		SellUnitPrice:            sellUnit,
		MarketCost:               marketTotal.InexactFloat64(),
		ObtainableCost:           obtainableTotal.InexactFloat64(),
		SellPrice:                sellTotal.InexactFloat64(),
		MarginDollars:            sellTotal.Sub(obtainableTotal).InexactFloat64(),
		TargetMargin:             target,
		AppliedMargin:            margin,
		ProcurementBufferApplied: buffered,
	}
	if obtainableUnit > 0 {
		lr.EffectiveMargin = sellUnit/obtainableUnit - 1
	}
	return lr, lineTotals{market: marketTotal, obtainable: obtainableTotal, sell: sellTotal}, clamps, reviews
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (p Policy) composeTarget(class ProductClass, band MarginBand, riskAdd, segMult float64) float64 {
	m := band.MarginTarget
	if pc, ok := p.Products[class]; ok {
		if pc.IsAdditive {
			m += pc.FixedAdder
		} else if pc.MarginMultiplier > 0 {
			m *= pc.MarginMultiplier
		}
	}
	m += riskAdd
	return m * segMult
}

// fleetCheck compares the combined BESS sell price per kWh with the
// fleet ceiling. Storage kWh falls back to the BESS line quantities.
func (p Policy) fleetCheck(items []LineResult, units QuoteUnits) (string, bool) {
	ceiling := p.QuoteGuards.BESSFleetCeilingPerKWh
	if ceiling <= 0 {
		return "", true
	}
	var sell, qty float64
	for _, lr := range items {
		if lr.ProductClass == ClassBESS {
			sell += lr.SellPrice
			qty += lr.Quantity
		}
	}
	kwh := units.StorageKWh
	if kwh <= 0 {
		kwh = qty
	}
	if kwh <= 0 || sell == 0 {
		return "", true
	}
	perKWh := sell / kwh
	if perKWh > ceiling {
		return fmt.Sprintf("BESS fleet price $%.2f/kWh exceeds ceiling $%.2f/kWh", perKWh, ceiling), false
	}
	return "", true
}
