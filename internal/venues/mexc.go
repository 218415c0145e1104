package venues

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/liqsentinel/liqsentinel/internal/cache"
	"github.com/liqsentinel/liqsentinel/internal/model"
)

const mexcContractSizeTTL = 24 * time.Hour

// Mexc fetches MEXC contract open interest. MEXC reports holdVol in
// contracts, not the base asset, so the notional conversion needs the
// per-symbol contract size. That size changes rarely, so it is looked up
// once and cached for a day; symbols MEXC doesn't publish a contract size
// for default to a multiplier of 1.
type Mexc struct {
	client  *resty.Client
	baseURL string
	cache   cache.Cache
}

// NewMexc creates a MEXC contract fetcher backed by c for contract-size lookups.
func NewMexc(c cache.Cache) *Mexc {
	return &Mexc{client: newRestyClient(), baseURL: "https://contract.mexc.com", cache: c}
}

func (m *Mexc) Name() string { return "MEXC" }

// mexcSymbol converts "BTCUSDT" to MEXC's "BTC_USDT" contract naming.
func mexcSymbol(symbol string) string {
	const quote = "USDT"
	if strings.HasSuffix(symbol, quote) {
		return symbol[:len(symbol)-len(quote)] + "_" + quote
	}
	return symbol
}

func (m *Mexc) Fetch(ctx context.Context, symbol string) (model.ExchangeStat, error) {
	contractSymbol := mexcSymbol(symbol)

	var ticker struct {
		Data struct {
			LastPrice   float64 `json:"lastPrice"`
			FundingRate float64 `json:"fundingRate"`
			HoldVol     float64 `json:"holdVol"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	resp, err := m.client.R().SetContext(ctx).
		SetQueryParam("symbol", contractSymbol).
		SetResult(&ticker).
		Get(m.baseURL + "/api/v1/contract/ticker")
	if err != nil {
		return model.ExchangeStat{}, fmt.Errorf("%w: mexc ticker: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != 200 || !ticker.Success {
		return model.ExchangeStat{}, httpError("mexc", symbol, resp.StatusCode())
	}

	contractSize, err := m.contractSize(ctx, contractSymbol)
	if err != nil {
		return model.ExchangeStat{}, err
	}

	notional := ticker.Data.HoldVol * contractSize * ticker.Data.LastPrice

	return model.ExchangeStat{
		Name:         m.Name(),
		Price:        ticker.Data.LastPrice,
		FundingRate:  ticker.Data.FundingRate,
		OpenInterest: notional,
		URL:          fmt.Sprintf("https://futures.mexc.com/exchange/%s", contractSymbol),
	}, nil
}

func (m *Mexc) contractSize(ctx context.Context, contractSymbol string) (float64, error) {
	key := "mexc_contract_size:" + contractSymbol

	raw, err := m.cache.GetOrFetch(ctx, key, mexcContractSizeTTL, func(ctx context.Context) ([]byte, error) {
		var detail struct {
			Data struct {
				ContractSize float64 `json:"contractSize"`
			} `json:"data"`
			Success bool `json:"success"`
		}
		resp, err := m.client.R().SetContext(ctx).
			SetQueryParam("symbol", contractSymbol).
			SetResult(&detail).
			Get(m.baseURL + "/api/v1/contract/detail")
		if err != nil {
			return nil, fmt.Errorf("%w: mexc contract detail: %v", model.ErrUpstream, err)
		}
		if resp.StatusCode() != 200 || !detail.Success || detail.Data.ContractSize <= 0 {
			return []byte("1"), nil
		}
		return []byte(strconv.FormatFloat(detail.Data.ContractSize, 'f', -1, 64)), nil
	})
	if err != nil {
		return 1, nil
	}

	size, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || size <= 0 {
		return 1, nil
	}
	return size, nil
}
