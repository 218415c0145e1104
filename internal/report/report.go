// Package report builds the periodic and on-demand liquidation digests
// delivered to subscribers: a market-wide summary, one section per tracked
// symbol, and a top-3 "most liquidated" ranking, each compared against the
// preceding window of the same length.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Store is the subset of persist.Store the report generator reads from.
type Store interface {
	GetLiquidationsBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.LiquidationEvent, error)
	GetOverallLiquidationsBetween(ctx context.Context, from, to time.Time) ([]model.LiquidationEvent, error)
}

// FundingLookup resolves a best-effort funding rate for a symbol, used only
// to annotate the top-rekt ranking. A failed lookup is not fatal to report
// generation.
type FundingLookup func(ctx context.Context, symbol string) (rate float64, ok bool)

// SideTotals accumulates one side's liquidation count and notional within a window.
type SideTotals struct {
	Count    int
	Notional float64
}

func (t *SideTotals) add(e model.LiquidationEvent) {
	t.Count++
	t.Notional += e.Notional()
}

func (t SideTotals) scaled(factor float64) SideTotals {
	return SideTotals{
		Count:    int(math.Round(float64(t.Count) * factor)),
		Notional: t.Notional * factor,
	}
}

// Section is one symbol's (or the whole market's, when Symbol is "") window
// comparison: current totals against the scaled prior window.
type Section struct {
	Symbol     string
	Long       SideTotals
	Short      SideTotals
	PriorLong  SideTotals
	PriorShort SideTotals
}

// TotalNotional is the current window's combined long+short notional.
func (s Section) TotalNotional() float64 {
	return s.Long.Notional + s.Short.Notional
}

func (s Section) priorTotalNotional() float64 {
	return s.PriorLong.Notional + s.PriorShort.Notional
}

// TrendArrow compares the current window's total notional against the
// scaled prior window and returns a directional glyph.
func (s Section) TrendArrow() string {
	cur, prior := s.TotalNotional(), s.priorTotalNotional()
	switch {
	case prior == 0 && cur == 0:
		return "→"
	case prior == 0:
		return "▲"
	case cur > prior*1.02:
		return "▲"
	case cur < prior*0.98:
		return "▼"
	default:
		return "→"
	}
}

// TopRektEntry is one row of the top-3 most-liquidated ranking.
type TopRektEntry struct {
	Symbol      string
	Notional    float64
	FundingRate float64
	HasFunding  bool
}

// Report is a fully generated digest, ready for rendering.
type Report struct {
	Subscriber    model.Subscriber
	GeneratedAt   time.Time
	IntervalHours int
	Scheduled     bool
	Overall       Section
	BySymbol      []Section
	TopRekt       []TopRektEntry
}

// Generator builds reports from a Store, optionally annotating the top-rekt
// ranking with funding rates via lookup.
type Generator struct {
	store  Store
	lookup FundingLookup
}

// NewGenerator creates a Generator. lookup may be nil to skip funding annotation.
func NewGenerator(store Store, lookup FundingLookup) *Generator {
	return &Generator{store: store, lookup: lookup}
}

// Generate builds a digest for sub covering the last intervalHours.
//
// scheduled reports (fired by the scheduler on an aligned boundary) compare
// a full current window against a full prior window. On-demand reports
// requested mid-interval only have a partial current window since the
// start of the current hour; comparing that partial window against a full
// prior window would always look like a lull, so the prior window's totals
// are scaled down by minutesElapsedInCurrentHour/(intervalHours*60).
func (g *Generator) Generate(ctx context.Context, sub model.Subscriber, intervalHours int, scheduled bool) (Report, error) {
	return g.generateAt(ctx, sub, intervalHours, scheduled, time.Now().UTC())
}

func (g *Generator) generateAt(ctx context.Context, sub model.Subscriber, intervalHours int, scheduled bool, now time.Time) (Report, error) {
	interval := time.Duration(intervalHours) * time.Hour

	var currentFrom time.Time
	scaleFactor := 1.0
	if scheduled {
		currentFrom = now.Add(-interval)
	} else {
		currentFrom = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
		minutesElapsed := now.Sub(currentFrom).Minutes()
		scaleFactor = minutesElapsed / (float64(intervalHours) * 60)
		if scaleFactor > 1 {
			scaleFactor = 1
		}
	}

	priorFrom := currentFrom.Add(-interval)
	priorTo := currentFrom

	overall, err := g.buildSection(ctx, "", currentFrom, now, priorFrom, priorTo, scaleFactor)
	if err != nil {
		return Report{}, fmt.Errorf("build overall section: %w", err)
	}

	sections := make([]Section, 0, len(sub.TrackedSymbols))
	for _, sym := range sub.TrackedSymbols {
		sec, err := g.buildSymbolSection(ctx, sym, currentFrom, now, priorFrom, priorTo, scaleFactor)
		if err != nil {
			return Report{}, fmt.Errorf("build section for %s: %w", sym, err)
		}
		sections = append(sections, sec)
	}

	topRekt := g.topRekt(ctx, sections, 3)

	return Report{
		Subscriber:    sub,
		GeneratedAt:   now,
		IntervalHours: intervalHours,
		Scheduled:     scheduled,
		Overall:       overall,
		BySymbol:      sections,
		TopRekt:       topRekt,
	}, nil
}

func (g *Generator) buildSection(ctx context.Context, symbol string, from, to, priorFrom, priorTo time.Time, scaleFactor float64) (Section, error) {
	events, err := g.store.GetOverallLiquidationsBetween(ctx, from, to)
	if err != nil {
		return Section{}, err
	}
	priorEvents, err := g.store.GetOverallLiquidationsBetween(ctx, priorFrom, priorTo)
	if err != nil {
		return Section{}, err
	}
	return sectionFromEvents(symbol, events, priorEvents, scaleFactor), nil
}

func (g *Generator) buildSymbolSection(ctx context.Context, symbol string, from, to, priorFrom, priorTo time.Time, scaleFactor float64) (Section, error) {
	events, err := g.store.GetLiquidationsBetween(ctx, symbol, from, to)
	if err != nil {
		return Section{}, err
	}
	priorEvents, err := g.store.GetLiquidationsBetween(ctx, symbol, priorFrom, priorTo)
	if err != nil {
		return Section{}, err
	}
	return sectionFromEvents(symbol, events, priorEvents, scaleFactor), nil
}

func sectionFromEvents(symbol string, events, priorEvents []model.LiquidationEvent, scaleFactor float64) Section {
	sec := Section{Symbol: symbol}
	for _, e := range events {
		if e.Side == model.ShortLiquidated {
			sec.Short.add(e)
		} else {
			sec.Long.add(e)
		}
	}

	var priorLong, priorShort SideTotals
	for _, e := range priorEvents {
		if e.Side == model.ShortLiquidated {
			priorShort.add(e)
		} else {
			priorLong.add(e)
		}
	}
	sec.PriorLong = priorLong.scaled(scaleFactor)
	sec.PriorShort = priorShort.scaled(scaleFactor)
	return sec
}

func (g *Generator) topRekt(ctx context.Context, sections []Section, limit int) []TopRektEntry {
	ranked := make([]Section, len(sections))
	copy(ranked, sections)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].TotalNotional() > ranked[j].TotalNotional() })

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]TopRektEntry, 0, len(ranked))
	for _, sec := range ranked {
		if sec.TotalNotional() == 0 {
			continue
		}
		entry := TopRektEntry{Symbol: sec.Symbol, Notional: sec.TotalNotional()}
		if g.lookup != nil {
			if rate, ok := g.lookup(ctx, sec.Symbol); ok {
				entry.FundingRate = rate
				entry.HasFunding = true
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
