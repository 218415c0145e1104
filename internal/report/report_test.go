package report

import (
	"context"
	"testing"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

type fakeStore struct {
	bySymbol map[string][]model.LiquidationEvent
	overall  []model.LiquidationEvent
}

func (s *fakeStore) GetLiquidationsBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.LiquidationEvent, error) {
	var out []model.LiquidationEvent
	for _, e := range s.bySymbol[symbol] {
		if !e.Time.Before(from) && e.Time.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetOverallLiquidationsBetween(ctx context.Context, from, to time.Time) ([]model.LiquidationEvent, error) {
	var out []model.LiquidationEvent
	for _, e := range s.overall {
		if !e.Time.Before(from) && e.Time.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func ev(symbol string, side model.Side, notional float64, when time.Time) model.LiquidationEvent {
	return model.LiquidationEvent{Symbol: symbol, Side: side, Price: 1, Quantity: notional, Time: when}
}

func TestGenerateScheduledComparesFullWindows(t *testing.T) {
	now := time.Now().UTC()
	interval := 4 * time.Hour

	events := []model.LiquidationEvent{
		ev("BTCUSDT", model.LongLiquidated, 50_000, now.Add(-1*time.Hour)),
		ev("BTCUSDT", model.ShortLiquidated, 30_000, now.Add(-2*time.Hour)),
		// prior window
		ev("BTCUSDT", model.LongLiquidated, 10_000, now.Add(-5*time.Hour)),
	}
	store := &fakeStore{
		overall:  events,
		bySymbol: map[string][]model.LiquidationEvent{"BTCUSDT": events},
	}
	sub := model.NewSubscriberDefaults(1, "a", "b")
	sub.TrackedSymbols = []string{"BTCUSDT"}

	gen := NewGenerator(store, nil)
	rep, err := gen.Generate(context.Background(), sub, int(interval.Hours()), true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if rep.Overall.Long.Notional != 50_000 || rep.Overall.Short.Notional != 30_000 {
		t.Fatalf("unexpected overall current totals: %+v", rep.Overall)
	}
	if rep.Overall.PriorLong.Notional != 10_000 {
		t.Fatalf("unexpected overall prior totals: %+v", rep.Overall.PriorLong)
	}
	if rep.Overall.TrendArrow() != "▲" {
		t.Fatalf("expected upward trend, got %s", rep.Overall.TrendArrow())
	}

	if len(rep.BySymbol) != 1 || rep.BySymbol[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected one tracked-symbol section, got %+v", rep.BySymbol)
	}
}

func TestGenerateLiveReportScalesPriorWindowByMinutesIntoCurrentHour(t *testing.T) {
	// now is 15 minutes into the current hour; with a 4h interval the prior
	// window should scale by 15/(4*60) = 0.0625.
	now := time.Date(2026, 7, 29, 14, 15, 0, 0, time.UTC)
	interval := 4 * time.Hour
	startOfHour := time.Date(2026, 7, 29, 14, 0, 0, 0, time.UTC)

	sub := model.NewSubscriberDefaults(1, "a", "b")

	events := []model.LiquidationEvent{
		ev("BTCUSDT", model.LongLiquidated, 10_000, now.Add(-10*time.Minute)),
		// prior window, full interval's worth
		ev("BTCUSDT", model.LongLiquidated, 40_000, startOfHour.Add(-1*time.Hour)),
	}
	store := &fakeStore{overall: events}

	gen := NewGenerator(store, nil)
	rep, err := gen.generateAt(context.Background(), sub, int(interval.Hours()), false, now)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got, want := rep.Overall.PriorLong.Notional, 40_000*0.0625; got != want {
		t.Fatalf("expected scaled prior notional %v, got %v", want, got)
	}
	if got := rep.Overall.Long.Notional; got != 10_000 {
		t.Fatalf("expected current window to only hold events since the start of the hour, got %v", got)
	}
}

func TestTopRektRanksBySymbolNotionalDescending(t *testing.T) {
	now := time.Now().UTC()
	sub := model.NewSubscriberDefaults(1, "a", "b")
	sub.TrackedSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "DOGEUSDT"}

	bySymbol := map[string][]model.LiquidationEvent{
		"BTCUSDT":  {ev("BTCUSDT", model.LongLiquidated, 500_000, now.Add(-1*time.Hour))},
		"ETHUSDT":  {ev("ETHUSDT", model.LongLiquidated, 900_000, now.Add(-1*time.Hour))},
		"SOLUSDT":  {ev("SOLUSDT", model.LongLiquidated, 100_000, now.Add(-1*time.Hour))},
		"DOGEUSDT": {},
	}
	store := &fakeStore{bySymbol: bySymbol}

	lookups := map[string]float64{"ETHUSDT": 0.0012}
	lookup := func(ctx context.Context, symbol string) (float64, bool) {
		rate, ok := lookups[symbol]
		return rate, ok
	}

	gen := NewGenerator(store, lookup)
	rep, err := gen.Generate(context.Background(), sub, 4, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(rep.TopRekt) != 3 {
		t.Fatalf("expected top-3 ranking to exclude the zero-notional symbol, got %d entries: %+v", len(rep.TopRekt), rep.TopRekt)
	}
	if rep.TopRekt[0].Symbol != "ETHUSDT" || rep.TopRekt[1].Symbol != "BTCUSDT" || rep.TopRekt[2].Symbol != "SOLUSDT" {
		t.Fatalf("unexpected ranking order: %+v", rep.TopRekt)
	}
	if !rep.TopRekt[0].HasFunding || rep.TopRekt[0].FundingRate != 0.0012 {
		t.Fatalf("expected funding annotation on top entry, got %+v", rep.TopRekt[0])
	}
	if rep.TopRekt[1].HasFunding {
		t.Fatalf("expected no funding annotation when lookup has no entry")
	}
}

func TestGenerateIsDeterministicForSameInputs(t *testing.T) {
	now := time.Now().UTC()
	events := []model.LiquidationEvent{
		ev("BTCUSDT", model.LongLiquidated, 50_000, now.Add(-1*time.Hour)),
		ev("BTCUSDT", model.ShortLiquidated, 30_000, now.Add(-2*time.Hour)),
	}
	store := &fakeStore{overall: events, bySymbol: map[string][]model.LiquidationEvent{"BTCUSDT": events}}
	sub := model.NewSubscriberDefaults(1, "a", "b")
	sub.TrackedSymbols = []string{"BTCUSDT"}

	gen := NewGenerator(store, nil)
	r1, err := gen.Generate(context.Background(), sub, 4, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	r2, err := gen.Generate(context.Background(), sub, 4, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if r1.Overall.TotalNotional() != r2.Overall.TotalNotional() {
		t.Fatalf("expected identical overall totals across repeated generation: %v vs %v",
			r1.Overall.TotalNotional(), r2.Overall.TotalNotional())
	}
	if len(r1.BySymbol) != len(r2.BySymbol) {
		t.Fatalf("expected identical section count across repeated generation")
	}
}
