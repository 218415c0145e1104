package model

import "time"

// CascadeBucket accumulates liquidation activity for one (symbol, side) key
// over a short window, in memory, owned exclusively by the cascade detector.
type CascadeBucket struct {
	Symbol      string
	Side        Side
	Count       int
	TotalVolume float64
	MinPrice    float64
	MaxPrice    float64
	StartTime   time.Time
}

// SeedCascadeBucket initializes a bucket from its first contributing event.
func SeedCascadeBucket(e LiquidationEvent) *CascadeBucket {
	return &CascadeBucket{
		Symbol:      e.Symbol,
		Side:        e.Side,
		Count:       1,
		TotalVolume: e.Notional(),
		MinPrice:    e.Price,
		MaxPrice:    e.Price,
		StartTime:   e.Time,
	}
}

// Admit folds another event into the bucket. StartTime never changes.
func (b *CascadeBucket) Admit(e LiquidationEvent) {
	b.Count++
	b.TotalVolume += e.Notional()
	if e.Price < b.MinPrice {
		b.MinPrice = e.Price
	}
	if e.Price > b.MaxPrice {
		b.MaxPrice = e.Price
	}
}

// Eligible reports whether the bucket has aged past the flush window.
func (b *CascadeBucket) Eligible(now time.Time, window time.Duration) bool {
	return now.Sub(b.StartTime) >= window
}

// CascadeAlert is the aggregate record handed to the fan-out router when a
// bucket meets the flush thresholds.
type CascadeAlert struct {
	Symbol      string
	Side        Side
	Count       int
	TotalVolume float64
	MinPrice    float64
	MaxPrice    float64
	OpenInterestUSD float64 // optional, 0 if unavailable
}

// PercentRange returns the price range as a percentage of MinPrice, 0 if
// MinPrice is 0.
func (a CascadeAlert) PercentRange() float64 {
	if a.MinPrice == 0 {
		return 0
	}
	return (a.MaxPrice - a.MinPrice) / a.MinPrice * 100
}
