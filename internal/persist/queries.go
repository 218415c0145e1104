package persist

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// SaveLiquidation inserts a single liquidation event. Events are append-only;
// there is no update path.
func (s *Store) SaveLiquidation(ctx context.Context, e model.LiquidationEvent) error {
	_, err := s.db.Collection(collLiquidations).InsertOne(ctx, e)
	if err != nil {
		return fmt.Errorf("save liquidation: %w", err)
	}
	return nil
}

// GetLiquidationsBetween returns events for symbol in [from, to), oldest first.
func (s *Store) GetLiquidationsBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.LiquidationEvent, error) {
	filter := bson.M{
		"symbol": symbol,
		"time":   bson.M{"$gte": from, "$lt": to},
	}
	return s.findLiquidations(ctx, filter)
}

// GetOverallLiquidationsBetween returns events across all symbols in
// [from, to), oldest first, used for the report's market-wide section.
func (s *Store) GetOverallLiquidationsBetween(ctx context.Context, from, to time.Time) ([]model.LiquidationEvent, error) {
	filter := bson.M{"time": bson.M{"$gte": from, "$lt": to}}
	return s.findLiquidations(ctx, filter)
}

func (s *Store) findLiquidations(ctx context.Context, filter bson.M) ([]model.LiquidationEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := s.db.Collection(collLiquidations).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query liquidations: %w", err)
	}
	defer cursor.Close(ctx)

	events := []model.LiquidationEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode liquidations: %w", err)
	}
	return events, nil
}

// FindOrCreateSubscriber returns the subscriber for chatID, inserting a
// default one if none exists. Concurrent first-contacts from the same chat
// race on the unique chat_id index; the loser's insert fails with a
// duplicate-key error and falls back to a read.
func (s *Store) FindOrCreateSubscriber(ctx context.Context, chatID int64, firstName, username string) (model.Subscriber, error) {
	coll := s.db.Collection(collSubscribers)

	var existing model.Subscriber
	err := coll.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&existing)
	if err == nil {
		return existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return model.Subscriber{}, fmt.Errorf("find subscriber: %w", err)
	}

	fresh := model.NewSubscriberDefaults(chatID, firstName, username)
	if _, err := coll.InsertOne(ctx, fresh); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if err := coll.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&existing); err != nil {
				return model.Subscriber{}, fmt.Errorf("find subscriber after duplicate insert: %w", err)
			}
			return existing, nil
		}
		return model.Subscriber{}, fmt.Errorf("create subscriber: %w", err)
	}
	return fresh, nil
}

// ToggleTrackedSymbol adds symbol to the subscriber's tracked set if absent,
// or removes it if present, and reports whether it is tracked afterward.
func (s *Store) ToggleTrackedSymbol(ctx context.Context, chatID int64, symbol string) (bool, error) {
	coll := s.db.Collection(collSubscribers)

	var sub model.Subscriber
	if err := coll.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&sub); err != nil {
		return false, fmt.Errorf("find subscriber: %w", err)
	}

	var update bson.M
	tracking := !sub.TracksSymbol(symbol)
	if tracking {
		update = bson.M{"$addToSet": bson.M{"tracked_symbols": symbol}}
	} else {
		update = bson.M{"$pull": bson.M{"tracked_symbols": symbol}}
	}

	if _, err := coll.UpdateOne(ctx, bson.M{"chat_id": chatID}, update); err != nil {
		return false, fmt.Errorf("toggle tracked symbol: %w", err)
	}
	return tracking, nil
}

// SetTrackedSymbols replaces the subscriber's tracked set outright.
func (s *Store) SetTrackedSymbols(ctx context.Context, chatID int64, symbols []string) error {
	return s.updateSubscriberField(ctx, chatID, "tracked_symbols", symbols)
}

// SetNotifications enables or disables alert delivery for chatID.
func (s *Store) SetNotifications(ctx context.Context, chatID int64, enabled bool) error {
	return s.updateSubscriberField(ctx, chatID, "notifications_enabled", enabled)
}

// SetReportInterval changes how often chatID receives a scheduled digest.
// Callers must validate against model.ValidReportIntervals first.
func (s *Store) SetReportInterval(ctx context.Context, chatID int64, hours int) error {
	return s.updateSubscriberField(ctx, chatID, "report_interval_hours", hours)
}

// SetAlertThreshold changes the minimum notional that triggers a real-time
// alert for chatID.
func (s *Store) SetAlertThreshold(ctx context.Context, chatID int64, minNotional float64) error {
	return s.updateSubscriberField(ctx, chatID, "min_liquidation_alert", minNotional)
}

// SetLastReportSentAt records when chatID's most recent digest was delivered.
func (s *Store) SetLastReportSentAt(ctx context.Context, chatID int64, when time.Time) error {
	return s.updateSubscriberField(ctx, chatID, "last_report_sent_at", when)
}

func (s *Store) updateSubscriberField(ctx context.Context, chatID int64, field string, value any) error {
	_, err := s.db.Collection(collSubscribers).UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": bson.M{field: value}},
	)
	if err != nil {
		return fmt.Errorf("update subscriber %s: %w", field, err)
	}
	return nil
}

// FindSubscribersTrackingSymbol returns every subscriber with notifications
// enabled whose tracked set contains symbol.
func (s *Store) FindSubscribersTrackingSymbol(ctx context.Context, symbol string) ([]model.Subscriber, error) {
	filter := bson.M{
		"notifications_enabled": true,
		"tracked_symbols":        symbol,
	}
	return s.findSubscribers(ctx, filter)
}

// ActiveSubscribers returns every subscriber with notifications enabled and
// at least one tracked symbol, used by the scheduler's digest job. A
// subscriber tracking nothing has no per-symbol section to report and is
// excluded even though the market-wide overall section is never empty.
func (s *Store) ActiveSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	filter := bson.M{
		"notifications_enabled": true,
		"tracked_symbols":        bson.M{"$exists": true, "$ne": bson.A{}},
	}
	return s.findSubscribers(ctx, filter)
}

func (s *Store) findSubscribers(ctx context.Context, filter bson.M) ([]model.Subscriber, error) {
	cursor, err := s.db.Collection(collSubscribers).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []model.Subscriber{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}
	return subs, nil
}
