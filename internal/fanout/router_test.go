package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

type fakeStore struct {
	subs             []model.Subscriber
	disabledChatID   int64
	disableCallCount int
}

func (s *fakeStore) FindSubscribersTrackingSymbol(ctx context.Context, symbol string) ([]model.Subscriber, error) {
	return s.subs, nil
}

func (s *fakeStore) SetNotifications(ctx context.Context, chatID int64, enabled bool) error {
	s.disableCallCount++
	s.disabledChatID = chatID
	return nil
}

type fakeMessenger struct {
	sent    map[int64]string
	failFor int64
	failErr error
}

func (m *fakeMessenger) Send(ctx context.Context, chatID int64, text string) error {
	if chatID == m.failFor {
		return m.failErr
	}
	if m.sent == nil {
		m.sent = map[int64]string{}
	}
	m.sent[chatID] = text
	return nil
}

func TestHandleLiquidationRespectsPerSubscriberThreshold(t *testing.T) {
	store := &fakeStore{subs: []model.Subscriber{
		{ChatID: 1, MinLiquidationAlert: 5000},
		{ChatID: 2, MinLiquidationAlert: 50000},
	}}
	messenger := &fakeMessenger{}
	r := NewRouter(store, messenger, 0, 0)

	e := model.LiquidationEvent{Symbol: "BTCUSDT", Side: model.LongLiquidated, Price: 1000, Quantity: 20, Time: time.Now()}
	// Notional = 20000: above subscriber 1's floor, below subscriber 2's floor.
	r.HandleLiquidation(context.Background(), e)

	if _, ok := messenger.sent[1]; !ok {
		t.Fatal("subscriber 1 should have received the alert")
	}
	if _, ok := messenger.sent[2]; ok {
		t.Fatal("subscriber 2's higher floor should have suppressed the alert")
	}
}

func TestHandleLiquidationBroadcastsToChannelAboveFloor(t *testing.T) {
	store := &fakeStore{}
	messenger := &fakeMessenger{}
	r := NewRouter(store, messenger, 999, 10000)

	e := model.LiquidationEvent{Symbol: "BTCUSDT", Side: model.LongLiquidated, Price: 1000, Quantity: 20, Time: time.Now()}
	r.HandleLiquidation(context.Background(), e)

	if _, ok := messenger.sent[999]; !ok {
		t.Fatal("expected channel broadcast above its floor")
	}
}

func TestHandleLiquidationDisablesBlockedRecipient(t *testing.T) {
	store := &fakeStore{subs: []model.Subscriber{{ChatID: 7, MinLiquidationAlert: 0}}}
	messenger := &fakeMessenger{failFor: 7, failErr: model.ErrRecipientBlocked}
	r := NewRouter(store, messenger, 0, 0)

	e := model.LiquidationEvent{Symbol: "BTCUSDT", Side: model.LongLiquidated, Price: 1, Quantity: 1, Time: time.Now()}
	r.HandleLiquidation(context.Background(), e)

	if store.disableCallCount != 1 || store.disabledChatID != 7 {
		t.Fatalf("expected SetNotifications(7, false) to be called once, got count=%d chatID=%d",
			store.disableCallCount, store.disabledChatID)
	}
}

func TestHandleCascadeFansOutToAllTrackingSubscribers(t *testing.T) {
	store := &fakeStore{subs: []model.Subscriber{{ChatID: 1}, {ChatID: 2}}}
	messenger := &fakeMessenger{}
	r := NewRouter(store, messenger, 0, 0)

	r.HandleCascade(context.Background(), model.CascadeAlert{
		Symbol: "BTCUSDT", Side: model.LongLiquidated, Count: 5, TotalVolume: 200000, MinPrice: 100, MaxPrice: 110,
	})

	if len(messenger.sent) != 2 {
		t.Fatalf("expected both subscribers to receive the cascade, got %d", len(messenger.sent))
	}
}
