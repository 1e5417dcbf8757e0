// Package export renders stored quotes. Renderers read the snapshot as-is and
// never recompute prices.
package export

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Simplici0/voltquote/internal/quote"
)

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func number(v float64) string {
	return humanize.FormatFloat("#,###.#", v)
}

func percent(v float64) string {
	return humanize.FormatFloat("#,###.##", v*100) + "%"
}

// Text renders a plain-text summary of q.
func Text(q quote.Quote) string {
	var b strings.Builder
	res := q.Results
	fin := res.Financial

	fmt.Fprintf(&b, "Quote %s\n", q.ID)
	fmt.Fprintf(&b, "Created: %s\n", q.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Facility: %s (%s), %s\n", res.IndustryName, q.Inputs.Subtype, q.Inputs.Location.State)
	fmt.Fprintf(&b, "Total: %s\n", money(q.Pricing.SellTotal))
	if q.NeedsReview() {
		b.WriteString("Status: NEEDS REVIEW\n")
	}

	if len(q.Inputs.Attributes) > 0 {
		b.WriteString("\nAttributes:\n")
		for _, k := range q.Inputs.Attributes.Keys() {
			fmt.Fprintf(&b, "- %s: %v\n", k, q.Inputs.Attributes[k])
		}
	}

	b.WriteString("\nSizing:\n")
	fmt.Fprintf(&b, "- Peak demand: %s kW (%s)\n", number(res.PeakDemandKW), res.Method)
	fmt.Fprintf(&b, "- Battery: %s kW / %s kWh, %s h\n", number(res.Battery.PowerKW), number(res.Battery.EnergyKWh), number(res.Battery.DurationHours))
	if res.Solar != nil {
		fmt.Fprintf(&b, "- Solar: %s kW, %s kWh/yr\n", number(res.Solar.CapacityKW), number(res.Solar.AnnualKWh))
	}
	if res.Generator != nil {
		fmt.Fprintf(&b, "- Generator: %s kW (%s)\n", number(res.Generator.PowerKW), res.Generator.Reason)
	}
	if res.EV != nil {
		fmt.Fprintf(&b, "- EV charging: %s kW\n", number(res.EV.TotalKW))
	}

	b.WriteString("\nLine items:\n")
	for _, li := range q.Pricing.LineItems {
		fmt.Fprintf(&b, "- %s: %s x %s = %s (margin %s)\n",
			li.Description,
			number(li.Quantity),
			money(li.SellUnitPrice),
			money(li.SellPrice),
			percent(li.EffectiveMargin),
		)
	}
	fmt.Fprintf(&b, "Margin: %s (%s, band %s)\n", money(q.Pricing.MarginDollars), percent(q.Pricing.BlendedMargin), q.Pricing.Band.Name)

	b.WriteString("\nFinancials:\n")
	fmt.Fprintf(&b, "- Tax credit: %s\n", money(fin.TaxCredit))
	fmt.Fprintf(&b, "- Net cost: %s\n", money(fin.NetCost))
	fmt.Fprintf(&b, "- Annual savings: %s\n", money(fin.AnnualSavings))
	if fin.PaybackYears != nil {
		fmt.Fprintf(&b, "- Payback: %s years\n", number(*fin.PaybackYears))
	} else {
		b.WriteString("- Payback: n/a\n")
	}
	fmt.Fprintf(&b, "- 5-year ROI: %s\n", percent(fin.ROI5Year))
	fmt.Fprintf(&b, "- 25-year NPV: %s\n", money(fin.NPV25Year))

	if len(q.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range q.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	b.WriteString("\nVersions:\n")
	fmt.Fprintf(&b, "- Engine: %s\n", q.Versions.Engine)
	fmt.Fprintf(&b, "- Policy: %s\n", q.Versions.Policy)
	fmt.Fprintf(&b, "- Checksum: %s\n", q.Checksum)
	return b.String()
}
