package venues

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/liqsentinel/liqsentinel/internal/cache"
	"github.com/liqsentinel/liqsentinel/internal/model"
)

const (
	// DefaultOISurgeThresholdPct is OI_SURGE_THRESHOLD's documented default.
	DefaultOISurgeThresholdPct = 2.5
	oiSnapshotTTL              = 24 * time.Hour
)

// SurgeDetector compares each scan's aggregated open interest against the
// previous scan's snapshot and reports symbols whose relative change
// crosses its threshold.
type SurgeDetector struct {
	aggregator   *Aggregator
	cache        cache.Cache
	thresholdPct float64
}

// NewSurgeDetector creates a SurgeDetector over aggregator with the
// documented default threshold, using c to hold the previous-scan snapshot
// per symbol.
func NewSurgeDetector(aggregator *Aggregator, c cache.Cache) *SurgeDetector {
	return NewSurgeDetectorWithThreshold(aggregator, c, DefaultOISurgeThresholdPct)
}

// NewSurgeDetectorWithThreshold is NewSurgeDetector with an explicit
// surge threshold, used when configuration overrides the default.
func NewSurgeDetectorWithThreshold(aggregator *Aggregator, c cache.Cache, thresholdPct float64) *SurgeDetector {
	if thresholdPct <= 0 {
		thresholdPct = DefaultOISurgeThresholdPct
	}
	return &SurgeDetector{aggregator: aggregator, cache: c, thresholdPct: thresholdPct}
}

// Scan checks symbol for an OI surge against its last recorded snapshot,
// then stores the current reading as the new snapshot regardless of
// outcome. ok is false when there was no prior snapshot (first scan) or the
// change didn't cross the threshold.
func (d *SurgeDetector) Scan(ctx context.Context, symbol string) (surge model.OISurge, ok bool, err error) {
	stats, err := d.aggregator.Aggregate(ctx, symbol)
	if err != nil {
		return model.OISurge{}, false, err
	}

	key := "oi_last:" + symbol
	prevRaw, found, err := d.cache.Get(ctx, key)
	if err != nil {
		return model.OISurge{}, false, fmt.Errorf("read OI snapshot for %s: %w", symbol, err)
	}

	defer func() {
		_ = d.cache.Set(ctx, key, []byte(strconv.FormatFloat(stats.TotalOpenInterest, 'f', -1, 64)), oiSnapshotTTL)
	}()

	if !found {
		return model.OISurge{}, false, nil
	}

	prevOI, parseErr := strconv.ParseFloat(string(prevRaw), 64)
	if parseErr != nil || prevOI <= 0 {
		return model.OISurge{}, false, nil
	}

	pctChange := (stats.TotalOpenInterest - prevOI) / prevOI * 100
	if absFloat(pctChange) < d.thresholdPct {
		return model.OISurge{}, false, nil
	}

	return model.OISurge{
		Symbol:        symbol,
		PreviousOI:    prevOI,
		CurrentOI:     stats.TotalOpenInterest,
		PercentChange: pctChange,
		Price:         stats.AvgPrice,
	}, true, nil
}

// LongShortRatioClient fetches Binance's top-trader long/short account
// ratio, the one cross-venue signal not covered by the Fetcher interface
// since only Binance publishes it in a stable, public form.
type LongShortRatioClient struct {
	client  *resty.Client
	baseURL string
}

// NewLongShortRatioClient creates a long/short ratio client against Binance futures.
func NewLongShortRatioClient() *LongShortRatioClient {
	return &LongShortRatioClient{client: newRestyClient(), baseURL: "https://fapi.binance.com"}
}

func (l *LongShortRatioClient) Fetch(ctx context.Context, symbol string) (model.LongShortRatio, error) {
	var rows []struct {
		LongAccount  string `json:"longAccount"`
		ShortAccount string `json:"shortAccount"`
	}
	resp, err := l.client.R().SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("period", "5m").
		SetQueryParam("limit", "1").
		SetResult(&rows).
		Get(l.baseURL + "/futures/data/topLongShortAccountRatio")
	if err != nil {
		return model.LongShortRatio{}, fmt.Errorf("%w: long/short ratio: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 || len(rows) == 0 {
		return model.LongShortRatio{}, httpError("binance", symbol, resp.StatusCode())
	}

	long, err := strconv.ParseFloat(rows[0].LongAccount, 64)
	if err != nil {
		return model.LongShortRatio{}, fmt.Errorf("%w: long/short longAccount value: %v", model.ErrMalformedUpstream, err)
	}
	short, err := strconv.ParseFloat(rows[0].ShortAccount, 64)
	if err != nil {
		return model.LongShortRatio{}, fmt.Errorf("%w: long/short shortAccount value: %v", model.ErrMalformedUpstream, err)
	}

	return model.LongShortRatio{Symbol: symbol, LongRatio: long, ShortRatio: short}, nil
}
