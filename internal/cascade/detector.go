// Package cascade watches the live liquidation stream for rapid-fire
// one-sided clusters — the liquidation-cascade pattern where many positions
// on the same side of the same symbol get force-closed within a short
// window — and emits an alert once a cluster crosses both a count and a
// notional-volume threshold.
package cascade

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

const (
	// DefaultWindow, DefaultMinCount, and DefaultMinVolume mirror the
	// tuning knobs' documented defaults (CASCADE_WINDOW, CASCADE_MIN_COUNT,
	// CASCADE_MIN_VOLUME) and apply when config leaves them unset.
	DefaultWindow    = 10 * time.Second
	DefaultMinCount  = 3
	DefaultMinVolume = 100_000.0
	sweepInterval    = 1 * time.Second
)

// AlertHandler receives each cascade once its bucket's window closes with
// enough count and volume to qualify.
type AlertHandler func(model.CascadeAlert)

// Detector accumulates per-(symbol, side) buckets in memory and sweeps them
// on a fixed interval, mirroring the bucket-map-plus-ticker shape used
// elsewhere in this codebase for windowed aggregation.
type Detector struct {
	mu      sync.Mutex
	buckets map[string]*model.CascadeBucket

	window    time.Duration
	minCount  int
	minVolume float64

	handler AlertHandler
}

// New creates a Detector with the documented default thresholds: a 10s
// window, a minimum of 3 liquidations, and a minimum $100k combined notional.
func New(handler AlertHandler) *Detector {
	return &Detector{
		buckets:   make(map[string]*model.CascadeBucket),
		window:    DefaultWindow,
		minCount:  DefaultMinCount,
		minVolume: DefaultMinVolume,
		handler:   handler,
	}
}

// NewWithThresholds creates a Detector with explicit thresholds, used when
// configuration overrides the documented defaults.
func NewWithThresholds(window time.Duration, minCount int, minVolume float64, handler AlertHandler) *Detector {
	return &Detector{
		buckets:   make(map[string]*model.CascadeBucket),
		window:    window,
		minCount:  minCount,
		minVolume: minVolume,
		handler:   handler,
	}
}

func bucketKey(symbol string, side model.Side) string {
	return symbol + ":" + string(side)
}

// Admit folds a liquidation event into its (symbol, side) bucket, starting a
// new bucket if none is open.
func (d *Detector) Admit(e model.LiquidationEvent) {
	key := bucketKey(e.Symbol, e.Side)

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buckets[key]
	if !ok {
		d.buckets[key] = model.SeedCascadeBucket(e)
		return
	}
	b.Admit(e)
}

// Run sweeps every bucket on sweepInterval, flushing buckets whose window
// has elapsed — as a qualifying cascade alert if thresholds were crossed,
// silently otherwise. Blocks until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(time.Now())
		}
	}
}

func (d *Detector) sweep(now time.Time) {
	d.mu.Lock()
	var toEmit []model.CascadeAlert
	for key, b := range d.buckets {
		if !b.Eligible(now, d.window) {
			continue
		}
		if b.Count >= d.minCount && b.TotalVolume >= d.minVolume {
			toEmit = append(toEmit, model.CascadeAlert{
				Symbol:      b.Symbol,
				Side:        b.Side,
				Count:       b.Count,
				TotalVolume: b.TotalVolume,
				MinPrice:    b.MinPrice,
				MaxPrice:    b.MaxPrice,
			})
		}
		delete(d.buckets, key)
	}
	d.mu.Unlock()

	for _, alert := range toEmit {
		d.emit(alert)
	}
}

func (d *Detector) emit(alert model.CascadeAlert) {
	if d.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cascade: alert handler panicked: %v", r)
		}
	}()
	d.handler(alert)
}
