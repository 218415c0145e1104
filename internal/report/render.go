package report

import (
	"fmt"
	"strings"
)

// Render formats a Report for Telegram delivery.
func Render(r Report) string {
	var b strings.Builder

	kind := "Scheduled"
	if !r.Scheduled {
		kind = "On-demand"
	}
	fmt.Fprintf(&b, "📊 %s Report (%dh)\n\n", kind, r.IntervalHours)

	fmt.Fprintf(&b, "Market %s\n", r.Overall.TrendArrow())
	fmt.Fprintf(&b, "Long:  %d liquidations, $%.2f\n", r.Overall.Long.Count, r.Overall.Long.Notional)
	fmt.Fprintf(&b, "Short: %d liquidations, $%.2f\n", r.Overall.Short.Count, r.Overall.Short.Notional)

	if len(r.BySymbol) > 0 {
		b.WriteString("\nTracked symbols:\n")
		for _, sec := range r.BySymbol {
			fmt.Fprintf(&b, "  %s %s  L $%.2f / S $%.2f\n",
				sec.Symbol, sec.TrendArrow(), sec.Long.Notional, sec.Short.Notional)
		}
	}

	if len(r.TopRekt) > 0 {
		b.WriteString("\nTop liquidated:\n")
		for i, e := range r.TopRekt {
			line := fmt.Sprintf("  %d. %s — $%.2f", i+1, e.Symbol, e.Notional)
			if e.HasFunding {
				line += fmt.Sprintf(" (funding %.4f%%)", e.FundingRate*100)
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}
