// Package quote assembles sizing, pricing and finance into one immutable,
// audited quote envelope.
package quote

import (
	"time"

	"github.com/Simplici0/voltquote/internal/audit"
	"github.com/Simplici0/voltquote/internal/collab"
	"github.com/Simplici0/voltquote/internal/facility"
	"github.com/Simplici0/voltquote/internal/finance"
	"github.com/Simplici0/voltquote/internal/pricing"
	"github.com/Simplici0/voltquote/internal/sizing"
)

// EngineVersion identifies the calculation code.
const EngineVersion = "voltquote-engine/1.4.0"

// Location is where the facility is. State wins over ZIP when both are given.
type Location struct {
	ZIP   string `json:"zip,omitempty"`
	State string `json:"state,omitempty"`
}

// Options are the caller's equipment toggles.
type Options struct {
	IncludeSolar     bool           `json:"includeSolar"`
	IncludeGenerator bool           `json:"includeGenerator"`
	IncludeEV        bool           `json:"includeEV"`
	SolarKW          float64        `json:"solarKW,omitempty"`
	Chargers         map[string]int `json:"chargers,omitempty"`
}

// PricingContext carries the deal context for the margin engine.
type PricingContext struct {
	RiskLevel   pricing.RiskLevel       `json:"riskLevel,omitempty"`
	Segment     pricing.CustomerSegment `json:"customerSegment,omitempty"`
	ForceMargin *float64                `json:"forceMargin,omitempty"`
	MaxMargin   *float64                `json:"maxMargin,omitempty"`
}

// Request is a quote request as received from a caller.
type Request struct {
	Location   Location              `json:"location"`
	Industry   string                `json:"industry"`
	Subtype    string                `json:"subtype,omitempty"`
	Attributes facility.Attributes   `json:"attributes"`
	Options    Options               `json:"options"`
	TaxCredit  collab.TaxCreditInput `json:"taxCredit"`
	Pricing    PricingContext        `json:"pricing"`
}

// Inputs is the normalized request echoed back in every quote.
type Inputs struct {
	Location   collab.Location       `json:"location"`
	Industry   string                `json:"industry"`
	Subtype    string                `json:"subtype"`
	Attributes facility.Attributes   `json:"attributes"`
	Options    Options               `json:"options"`
	TaxCredit  collab.TaxCreditInput `json:"taxCredit"`
	Pricing    PricingContext        `json:"pricing"`
}

// Versions lets two quotes be diffed for policy versus input changes.
type Versions struct {
	Engine        string `json:"engine"`
	Policy        string `json:"policy"`
	Catalog       string `json:"catalog"`
	IndustryRules string `json:"industryRules"`
	Rates         string `json:"rates"`
}

// BatteryBlock is the storage result with its customer price.
type BatteryBlock struct {
	sizing.Battery
	Cost float64 `json:"cost"`
}

// SolarBlock is the PV result with its customer price.
type SolarBlock struct {
	sizing.Solar
	Cost float64 `json:"cost"`
}

// GeneratorBlock is the generator result with its customer price.
type GeneratorBlock struct {
	sizing.Generator
	Cost float64 `json:"cost"`
}

// EVBlock is the charging result with its customer price.
type EVBlock struct {
	sizing.EVCharging
	Cost float64 `json:"cost"`
}

// Results is the computed block of a quote.
type Results struct {
	IndustryName    string                 `json:"industryName"`
	Method          string                 `json:"method"`
	PeakDemandKW    float64                `json:"peakDemandKW"`
	Battery         BatteryBlock           `json:"battery"`
	Solar           *SolarBlock            `json:"solar,omitempty"`
	Generator       *GeneratorBlock        `json:"generator,omitempty"`
	EV              *EVBlock               `json:"ev,omitempty"`
	Recommendations sizing.Recommendations `json:"recommendations"`
	GridShortfallKW float64                `json:"gridShortfallKW,omitempty"`
	UtilityRate     collab.UtilityRate     `json:"utilityRate"`
	Financial       finance.Summary        `json:"financial"`
}

// Quote is the immutable output envelope. Pricing is authoritative for the
// customer price; renderers never recompute margin.
type Quote struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Versions  Versions       `json:"versions"`
	Checksum  string         `json:"checksum"`
	Inputs    Inputs         `json:"inputs"`
	Results   Results        `json:"results"`
	Pricing   pricing.Result `json:"pricing"`
	Steps     []audit.Step   `json:"steps"`
	Sources   []string       `json:"sources"`
	Warnings  []string       `json:"warnings"`
}

// NeedsReview reports whether a human must confirm the price.
func (q Quote) NeedsReview() bool {
	return q.Pricing.NeedsHumanReview || !q.Pricing.PassesQuoteLevelGuards
}
