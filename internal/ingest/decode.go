package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// forceOrderEnvelope mirrors the combined-stream wrapper around a forceOrder
// payload: {"stream":"btcusdt@forceOrder","data":{...}}.
type forceOrderEnvelope struct {
	Stream string          `json:"stream"`
	Data   forceOrderEvent `json:"data"`
}

type forceOrderEvent struct {
	EventType string       `json:"e"`
	Order     forceOrderV1 `json:"o"`
}

type forceOrderV1 struct {
	Symbol        string `json:"s"`
	Side          string `json:"S"`
	OriginalQty   string `json:"q"`
	Price         string `json:"p"`
	AveragePrice  string `json:"ap"`
	TradeTimeUnix int64  `json:"T"`
}

// decodeForceOrder parses a single combined-stream message into a
// LiquidationEvent. Malformed payloads are rejected with ErrMalformedUpstream
// rather than silently skipped, so the caller can log and move on.
func decodeForceOrder(raw []byte) (model.LiquidationEvent, error) {
	var env forceOrderEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.LiquidationEvent{}, fmt.Errorf("%w: unmarshal forceOrder: %v", model.ErrMalformedUpstream, err)
	}
	if env.Data.EventType != "forceOrder" {
		return model.LiquidationEvent{}, fmt.Errorf("%w: unexpected event type %q", model.ErrMalformedUpstream, env.Data.EventType)
	}

	o := env.Data.Order
	price := o.AveragePrice
	if price == "" || price == "0" {
		price = o.Price
	}

	priceF, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return model.LiquidationEvent{}, fmt.Errorf("%w: parse price %q: %v", model.ErrMalformedUpstream, price, err)
	}
	qtyF, err := strconv.ParseFloat(o.OriginalQty, 64)
	if err != nil {
		return model.LiquidationEvent{}, fmt.Errorf("%w: parse quantity %q: %v", model.ErrMalformedUpstream, o.OriginalQty, err)
	}
	if o.Symbol == "" {
		return model.LiquidationEvent{}, fmt.Errorf("%w: missing symbol", model.ErrMalformedUpstream)
	}

	event := model.LiquidationEvent{
		Symbol:   o.Symbol,
		Side:     model.SideFromUpstream(o.Side),
		Price:    priceF,
		Quantity: qtyF,
		Time:     time.UnixMilli(o.TradeTimeUnix).UTC(),
	}
	if !event.Valid() {
		return model.LiquidationEvent{}, fmt.Errorf("%w: event fails validity check", model.ErrMalformedUpstream)
	}
	return event, nil
}
