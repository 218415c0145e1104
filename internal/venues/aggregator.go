package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/cache"
	"github.com/liqsentinel/liqsentinel/internal/model"
)

const aggregateCacheTTL = 60 * time.Second

// Aggregator fans a symbol lookup out across every configured venue
// concurrently, merges the results, and caches the merged view so repeated
// report and alert lookups for the same symbol within a minute don't
// re-hit every venue.
type Aggregator struct {
	fetchers []Fetcher
	cache    cache.Cache
}

// NewAggregator creates an Aggregator over fetchers, backed by c.
func NewAggregator(c cache.Cache, fetchers ...Fetcher) *Aggregator {
	return &Aggregator{fetchers: fetchers, cache: c}
}

// Aggregate returns merged open-interest and price stats for symbol across
// every venue that answered successfully. A venue that errors is dropped
// from the result rather than failing the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string) (model.AggregatedStats, error) {
	key := "agg:" + symbol

	raw, err := a.cache.GetOrFetch(ctx, key, aggregateCacheTTL, func(ctx context.Context) ([]byte, error) {
		stats := a.fetchAll(ctx, symbol)
		if len(stats.Exchanges) == 0 {
			return nil, fmt.Errorf("%w: no venue responded for %s", model.ErrUpstream, symbol)
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return model.AggregatedStats{}, err
	}

	var stats model.AggregatedStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return model.AggregatedStats{}, fmt.Errorf("decode cached aggregate for %s: %w", symbol, err)
	}
	return stats, nil
}

func (a *Aggregator) fetchAll(ctx context.Context, symbol string) model.AggregatedStats {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []model.ExchangeStat
	)

	for _, f := range a.fetchers {
		wg.Add(1)
		go func(f Fetcher) {
			defer wg.Done()
			stat, err := f.Fetch(ctx, symbol)
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, stat)
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].OpenInterest > results[j].OpenInterest })

	var total, priceSum float64
	for _, r := range results {
		total += r.OpenInterest
		priceSum += r.Price
	}
	avgPrice := 0.0
	if len(results) > 0 {
		avgPrice = priceSum / float64(len(results))
	}

	return model.AggregatedStats{
		Symbol:            symbol,
		TotalOpenInterest: total,
		AvgPrice:          avgPrice,
		Exchanges:         results,
	}
}

// TopFunding ranks symbols by the magnitude of their highest-venue funding
// rate, descending, returning at most limit entries. Symbols whose
// aggregation fails are skipped.
func (a *Aggregator) TopFunding(ctx context.Context, symbols []string, limit int) []model.FundingRanking {
	rankings := make([]model.FundingRanking, 0, len(symbols))

	for _, sym := range symbols {
		stats, err := a.Aggregate(ctx, sym)
		if err != nil || len(stats.Exchanges) == 0 {
			continue
		}

		best := stats.Exchanges[0]
		for _, ex := range stats.Exchanges[1:] {
			if absFloat(ex.FundingRate) > absFloat(best.FundingRate) {
				best = ex
			}
		}

		rankings = append(rankings, model.FundingRanking{
			Symbol:      sym,
			Exchange:    best.Name,
			FundingRate: best.FundingRate,
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		return absFloat(rankings[i].FundingRate) > absFloat(rankings[j].FundingRate)
	})

	if limit > 0 && len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
