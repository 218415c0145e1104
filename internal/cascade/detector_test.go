package cascade

import (
	"sync"
	"testing"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

func event(symbol string, side model.Side, price, qty float64, t time.Time) model.LiquidationEvent {
	return model.LiquidationEvent{Symbol: symbol, Side: side, Price: price, Quantity: qty, Time: t}
}

func TestDetectorEmitsOnceThresholdsCrossed(t *testing.T) {
	var mu sync.Mutex
	var alerts []model.CascadeAlert

	d := New(func(a model.CascadeAlert) {
		mu.Lock()
		alerts = append(alerts, a)
		mu.Unlock()
	})

	start := time.Now()
	d.Admit(event("BTCUSDT", model.LongLiquidated, 60000, 1, start))
	d.Admit(event("BTCUSDT", model.LongLiquidated, 59000, 1, start))
	d.Admit(event("BTCUSDT", model.LongLiquidated, 58000, 1, start))

	// Sweep before the window elapses: nothing should flush yet.
	d.sweep(start)
	mu.Lock()
	if len(alerts) != 0 {
		t.Fatalf("expected no alert before window elapses, got %d", len(alerts))
	}
	mu.Unlock()

	// Sweep after the window elapses: the bucket crossed both thresholds
	// (count=3, volume=60000+59000+58000=177000 >= 100000).
	d.sweep(start.Add(DefaultWindow + time.Second))

	mu.Lock()
	defer mu.Unlock()
	if len(alerts) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d", len(alerts))
	}
	if alerts[0].Count != 3 {
		t.Fatalf("expected count 3, got %d", alerts[0].Count)
	}
	if alerts[0].TotalVolume != 177000 {
		t.Fatalf("expected total volume 177000, got %v", alerts[0].TotalVolume)
	}
	if alerts[0].MinPrice != 58000 || alerts[0].MaxPrice != 60000 {
		t.Fatalf("expected price range [58000,60000], got [%v,%v]", alerts[0].MinPrice, alerts[0].MaxPrice)
	}
}

func TestDetectorDropsBucketBelowThresholdWithoutAlert(t *testing.T) {
	var alerts []model.CascadeAlert
	d := New(func(a model.CascadeAlert) { alerts = append(alerts, a) })

	start := time.Now()
	d.Admit(event("ETHUSDT", model.ShortLiquidated, 3000, 0.1, start))

	d.sweep(start.Add(DefaultWindow + time.Second))

	if len(alerts) != 0 {
		t.Fatalf("expected no alert for a single small event, got %d", len(alerts))
	}
	if _, exists := d.buckets[bucketKey("ETHUSDT", model.ShortLiquidated)]; exists {
		t.Fatal("expired bucket should be removed even without an alert")
	}
}

func TestDetectorKeepsLongAndShortBucketsSeparate(t *testing.T) {
	d := New(func(model.CascadeAlert) {})
	start := time.Now()

	d.Admit(event("BTCUSDT", model.LongLiquidated, 60000, 1, start))
	d.Admit(event("BTCUSDT", model.ShortLiquidated, 60000, 1, start))

	if len(d.buckets) != 2 {
		t.Fatalf("expected 2 separate buckets for opposite sides, got %d", len(d.buckets))
	}
}

func TestDetectorConservesVolumeAcrossAdmits(t *testing.T) {
	d := New(func(model.CascadeAlert) {})
	start := time.Now()

	var want float64
	for i := 0; i < 10; i++ {
		e := event("BTCUSDT", model.LongLiquidated, 100+float64(i), 2, start)
		want += e.Notional()
		d.Admit(e)
	}

	b := d.buckets[bucketKey("BTCUSDT", model.LongLiquidated)]
	if b.TotalVolume != want {
		t.Fatalf("bucket volume = %v, want %v (sum of event notionals)", b.TotalVolume, want)
	}
	if b.Count != 10 {
		t.Fatalf("bucket count = %d, want 10", b.Count)
	}
}
