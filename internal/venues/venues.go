// Package venues fetches and normalizes open interest, price, and funding
// data from each tracked futures venue, then aggregates it per symbol behind
// a short-lived read-through cache.
package venues

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Fetcher retrieves a single venue's open-interest and price snapshot for a
// symbol. Implementations normalize their venue's native units into USD
// notional before returning.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (model.ExchangeStat, error)
}

// browserUserAgent mirrors a stock desktop browser string so venue APIs
// that reject bare Go-http-client requests still answer.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func newRestyClient() *resty.Client {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	c.SetRetryCount(1)
	c.SetHeaders(map[string]string{
		"User-Agent": browserUserAgent,
		"Accept":     "application/json",
	})
	return c
}

// httpError wraps a non-2xx venue response with context, chained onto
// ErrUpstream so callers can branch with errors.Is.
func httpError(venue, symbol string, status int) error {
	return fmt.Errorf("%w: %s openInterest(%s): status %d", model.ErrUpstream, venue, symbol, status)
}
