package venues

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Binance fetches USDT-margined futures open interest and funding data.
// Open interest is reported in the base asset, so it is converted to USD
// notional by multiplying by mark price.
type Binance struct {
	client  *resty.Client
	baseURL string
}

// NewBinance creates a Binance futures fetcher.
func NewBinance() *Binance {
	return &Binance{client: newRestyClient(), baseURL: "https://fapi.binance.com"}
}

func (b *Binance) Name() string { return "Binance" }

func (b *Binance) Fetch(ctx context.Context, symbol string) (model.ExchangeStat, error) {
	var oi struct {
		OpenInterest string `json:"openInterest"`
		Symbol       string `json:"symbol"`
	}
	resp, err := b.client.R().SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&oi).
		Get(b.baseURL + "/fapi/v1/openInterest")
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: binance openInterest: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return model.ExchangeStat{}, httpError("binance", symbol, resp.StatusCode())
	}

	var premium struct {
		MarkPrice       string `json:"markPrice"`
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	resp, err = b.client.R().SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&premium).
		Get(b.baseURL + "/fapi/v1/premiumIndex")
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: binance premiumIndex: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 {
		return model.ExchangeStat{}, httpError("binance", symbol, resp.StatusCode())
	}

	coins, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: binance openInterest value %q: %v", model.ErrMalformedUpstream, oi.OpenInterest, err)
	}
	price, err := strconv.ParseFloat(premium.MarkPrice, 64)
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: binance markPrice value %q: %v", model.ErrMalformedUpstream, premium.MarkPrice, err)
	}
	funding, _ := strconv.ParseFloat(premium.LastFundingRate, 64)

	return model.ExchangeStat{
		Name:            b.Name(),
		Price:           price,
		FundingRate:     funding,
		NextFundingTime: premium.NextFundingTime,
		OpenInterest:    coins * price,
		URL:             fmt.Sprintf("https://www.binance.com/en/futures/%s", symbol),
	}, nil
}
