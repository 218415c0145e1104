package venues

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Bybit fetches linear-perpetual open interest and ticker data. Like
// Binance, open interest is reported in the base asset and is converted to
// USD notional by multiplying by last price.
type Bybit struct {
	client  *resty.Client
	baseURL string
}

// NewBybit creates a Bybit linear-perpetual fetcher.
func NewBybit() *Bybit {
	return &Bybit{client: newRestyClient(), baseURL: "https://api.bybit.com"}
}

func (b *Bybit) Name() string { return "Bybit" }

type bybitListResponse[T any] struct {
	Result struct {
		List []T `json:"list"`
	} `json:"result"`
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

func (b *Bybit) Fetch(ctx context.Context, symbol string) (model.ExchangeStat, error) {
	var oiResp bybitListResponse[struct {
		OpenInterest string `json:"openInterest"`
	}]
	resp, err := b.client.R().SetContext(ctx).
		SetQueryParam("category", "linear").
		SetQueryParam("symbol", symbol).
		SetQueryParam("intervalTime", "5min").
		SetResult(&oiResp).
		Get(b.baseURL + "/v5/market/open-interest")
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: bybit open-interest: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 || oiResp.RetCode != 0 {
		return model.ExchangeStat{}, httpError("bybit", symbol, resp.StatusCode())
	}
	if len(oiResp.Result.List) == 0 {
		return model.ExchangeStat{}, fmt.Errorf("%w: bybit open-interest: empty list for %s", model.ErrMalformedUpstream, symbol)
	}

	var tickerResp bybitListResponse[struct {
		LastPrice       string `json:"lastPrice"`
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	}]
	resp, err = b.client.R().SetContext(ctx).
		SetQueryParam("category", "linear").
		SetQueryParam("symbol", symbol).
		SetResult(&tickerResp).
		Get(b.baseURL + "/v5/market/tickers")
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: bybit tickers: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 || tickerResp.RetCode != 0 || len(tickerResp.Result.List) == 0 {
		return model.ExchangeStat{}, httpError("bybit", symbol, resp.StatusCode())
	}

	coins, err := strconv.ParseFloat(oiResp.Result.List[0].OpenInterest, 64)
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: bybit openInterest value: %v", model.ErrMalformedUpstream, err)
	}
	ticker := tickerResp.Result.List[0]
	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: bybit lastPrice value: %v", model.ErrMalformedUpstream, err)
	}
	funding, _ := strconv.ParseFloat(ticker.FundingRate, 64)
	nextFundingMs, _ := strconv.ParseInt(ticker.NextFundingTime, 10, 64)

	return model.ExchangeStat{
		Name:            b.Name(),
		Price:           price,
		FundingRate:     funding,
		NextFundingTime: nextFundingMs,
		OpenInterest:    coins * price,
		URL:             fmt.Sprintf("https://www.bybit.com/trade/usdt/%s", symbol),
	}, nil
}
