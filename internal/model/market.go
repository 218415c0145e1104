package model

// ExchangeStat is one venue's contribution to an aggregated market snapshot.
type ExchangeStat struct {
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	FundingRate     float64 `json:"fundingRate"`
	NextFundingTime int64   `json:"nextFundingTime"`
	OpenInterest    float64 `json:"openInterest"` // USD
	URL             string  `json:"url"`
}

// AggregatedStats is the derived, value-typed result of cross-venue
// normalisation for one base symbol (e.g. "BTC").
type AggregatedStats struct {
	Symbol           string         `json:"symbol"`
	TotalOpenInterest float64       `json:"totalOpenInterest"` // USD
	AvgPrice         float64        `json:"avgPrice"`
	Exchanges        []ExchangeStat `json:"exchanges"`
}

// OISurge is emitted by the OI scan when the relative change versus the
// stored snapshot crosses the configured threshold.
type OISurge struct {
	Symbol        string
	PreviousOI    float64
	CurrentOI     float64
	PercentChange float64
	Price         float64
}

// LongShortRatio is the top-trader long/short account ratio for a symbol.
type LongShortRatio struct {
	Symbol     string  `json:"symbol"`
	LongRatio  float64 `json:"longAccount"`
	ShortRatio float64 `json:"shortAccount"`
}

// FundingRanking is one row of the global top-funding ranking.
type FundingRanking struct {
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	FundingRate float64 `json:"fundingRate"`
}
