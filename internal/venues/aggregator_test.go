package venues

import (
	"context"
	"testing"

	"github.com/liqsentinel/liqsentinel/internal/cache"
	"github.com/liqsentinel/liqsentinel/internal/model"
)

type fakeFetcher struct {
	name string
	stat model.ExchangeStat
	err  error
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, symbol string) (model.ExchangeStat, error) {
	return f.stat, f.err
}

func TestAggregateMergesAcrossVenues(t *testing.T) {
	a := NewAggregator(cache.NewMemory(),
		&fakeFetcher{name: "Binance", stat: model.ExchangeStat{Name: "Binance", Price: 60000, OpenInterest: 1_000_000}},
		&fakeFetcher{name: "Bybit", stat: model.ExchangeStat{Name: "Bybit", Price: 60010, OpenInterest: 500_000}},
	)

	stats, err := a.Aggregate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(stats.Exchanges))
	}
	if stats.TotalOpenInterest != 1_500_000 {
		t.Fatalf("expected total OI 1500000, got %v", stats.TotalOpenInterest)
	}
}

func TestAggregateSortsExchangesByOpenInterestDescending(t *testing.T) {
	a := NewAggregator(cache.NewMemory(),
		// Names deliberately out of alphabetical order relative to OI rank,
		// so a regression to name-based sorting would fail this test.
		&fakeFetcher{name: "MEXC", stat: model.ExchangeStat{Name: "MEXC", Price: 60000, OpenInterest: 2_000_000}},
		&fakeFetcher{name: "Binance", stat: model.ExchangeStat{Name: "Binance", Price: 60000, OpenInterest: 5_000_000}},
		&fakeFetcher{name: "Bybit", stat: model.ExchangeStat{Name: "Bybit", Price: 60000, OpenInterest: 500_000}},
	)

	stats, err := a.Aggregate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Binance", "MEXC", "Bybit"}
	if len(stats.Exchanges) != len(want) {
		t.Fatalf("expected %d exchanges, got %d", len(want), len(stats.Exchanges))
	}
	for i, name := range want {
		if stats.Exchanges[i].Name != name {
			t.Fatalf("exchange %d = %s, want %s (order: %v)", i, stats.Exchanges[i].Name, name, stats.Exchanges)
		}
	}
}

func TestAggregateDropsFailedVenues(t *testing.T) {
	a := NewAggregator(cache.NewMemory(),
		&fakeFetcher{name: "Binance", stat: model.ExchangeStat{Name: "Binance", Price: 60000, OpenInterest: 1_000_000}},
		&fakeFetcher{name: "Bybit", err: model.ErrUpstream},
	)

	stats, err := a.Aggregate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.Exchanges) != 1 {
		t.Fatalf("expected 1 surviving exchange, got %d", len(stats.Exchanges))
	}
}

func TestAggregateFailsWhenEveryVenueErrors(t *testing.T) {
	a := NewAggregator(cache.NewMemory(),
		&fakeFetcher{name: "Binance", err: model.ErrUpstream},
	)

	if _, err := a.Aggregate(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error when no venue responds")
	}
}

func TestMexcSymbolConversion(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT": "BTC_USDT",
		"ETHUSDT": "ETH_USDT",
	}
	for in, want := range cases {
		if got := mexcSymbol(in); got != want {
			t.Errorf("mexcSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTopFundingSortsByMagnitudeDescending(t *testing.T) {
	a := NewAggregator(cache.NewMemory())
	// Populate the aggregate cache directly to avoid network fetchers in a unit test.
	ctx := context.Background()
	seedAggregate(t, a, ctx, "BTCUSDT", 0.01)
	seedAggregate(t, a, ctx, "ETHUSDT", -0.05)
	seedAggregate(t, a, ctx, "SOLUSDT", 0.002)

	rankings := a.TopFunding(ctx, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, 2)
	if len(rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(rankings))
	}
	if rankings[0].Symbol != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT first (largest magnitude), got %s", rankings[0].Symbol)
	}
	if rankings[1].Symbol != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT second, got %s", rankings[1].Symbol)
	}
}

func seedAggregate(t *testing.T, a *Aggregator, ctx context.Context, symbol string, funding float64) {
	t.Helper()
	a.fetchers = []Fetcher{&fakeFetcher{name: "Binance", stat: model.ExchangeStat{
		Name: "Binance", Price: 100, OpenInterest: 1000, FundingRate: funding,
	}}}
	if _, err := a.Aggregate(ctx, symbol); err != nil {
		t.Fatalf("seed aggregate %s: %v", symbol, err)
	}
}
