// Package fanout routes real-time liquidation, cascade, and open-interest
// events to the broadcast channel and to individual subscribers, applying
// each recipient's own notional threshold to liquidation and cascade alerts
// before delivery; open-interest surges go out without a threshold.
package fanout

import (
	"context"
	"errors"
	"log"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Messenger delivers a single rendered message to a chat. Implemented by
// internal/messaging; kept as a narrow interface here so fanout doesn't
// depend on the Telegram SDK directly.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SubscriberStore is the subset of persist.Store the router needs to find
// and update recipients.
type SubscriberStore interface {
	FindSubscribersTrackingSymbol(ctx context.Context, symbol string) ([]model.Subscriber, error)
	SetNotifications(ctx context.Context, chatID int64, enabled bool) error
}

// Router dispatches events to the broadcast channel and per-subscriber chats.
type Router struct {
	store     SubscriberStore
	messenger Messenger

	channelChatID      int64
	channelMinNotional float64
}

// NewRouter creates a Router. channelChatID of 0 disables the broadcast channel.
func NewRouter(store SubscriberStore, messenger Messenger, channelChatID int64, channelMinNotional float64) *Router {
	return &Router{
		store:              store,
		messenger:          messenger,
		channelChatID:      channelChatID,
		channelMinNotional: channelMinNotional,
	}
}

// HandleLiquidation delivers a single event to the broadcast channel (if its
// notional crosses the channel's floor) and to every subscriber tracking the
// symbol whose own floor it crosses.
func (r *Router) HandleLiquidation(ctx context.Context, e model.LiquidationEvent) {
	notional := e.Notional()

	if r.channelChatID != 0 && notional >= r.channelMinNotional {
		r.send(ctx, r.channelChatID, renderLiquidation(e))
	}

	subs, err := r.store.FindSubscribersTrackingSymbol(ctx, e.Symbol)
	if err != nil {
		log.Printf("fanout: find subscribers for %s: %v", e.Symbol, err)
		return
	}

	rendered := renderLiquidation(e)
	for _, sub := range subs {
		if notional < sub.MinLiquidationAlert {
			continue
		}
		r.send(ctx, sub.ChatID, rendered)
	}
}

// HandleCascade delivers a qualifying cascade to the broadcast channel (if
// its total volume crosses the channel's floor) and to every subscriber
// tracking the symbol whose own floor the total volume crosses.
func (r *Router) HandleCascade(ctx context.Context, alert model.CascadeAlert) {
	subs, err := r.store.FindSubscribersTrackingSymbol(ctx, alert.Symbol)
	if err != nil {
		log.Printf("fanout: find subscribers for cascade %s: %v", alert.Symbol, err)
		return
	}

	rendered := renderCascade(alert)
	if r.channelChatID != 0 && alert.TotalVolume >= r.channelMinNotional {
		r.send(ctx, r.channelChatID, rendered)
	}
	for _, sub := range subs {
		if alert.TotalVolume < sub.MinLiquidationAlert {
			continue
		}
		r.send(ctx, sub.ChatID, rendered)
	}
}

// HandleOISurge delivers an open-interest surge to the broadcast channel and
// to every subscriber tracking the symbol, whatever the size of the change.
func (r *Router) HandleOISurge(ctx context.Context, surge model.OISurge) {
	subs, err := r.store.FindSubscribersTrackingSymbol(ctx, surge.Symbol)
	if err != nil {
		log.Printf("fanout: find subscribers for OI surge %s: %v", surge.Symbol, err)
		return
	}

	rendered := renderOISurge(surge)
	if r.channelChatID != 0 {
		r.send(ctx, r.channelChatID, rendered)
	}
	for _, sub := range subs {
		r.send(ctx, sub.ChatID, rendered)
	}
}

// send delivers text to chatID, disabling the recipient's notifications when
// the messenger reports it as unreachable rather than retrying a dead chat.
func (r *Router) send(ctx context.Context, chatID int64, text string) {
	err := r.messenger.Send(ctx, chatID, text)
	if err == nil {
		return
	}

	if errors.Is(err, model.ErrRecipientBlocked) {
		log.Printf("fanout: chat %d blocked the bot, disabling notifications", chatID)
		if disableErr := r.store.SetNotifications(ctx, chatID, false); disableErr != nil {
			log.Printf("fanout: disable notifications for %d: %v", chatID, disableErr)
		}
		return
	}

	log.Printf("fanout: send to %d: %v", chatID, err)
}
