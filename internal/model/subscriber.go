package model

import "time"

// ValidReportIntervals are the only allowed values for Subscriber.ReportIntervalHours.
var ValidReportIntervals = map[int]bool{1: true, 4: true, 12: true, 24: true}

// DefaultMinLiquidationAlert is the per-subscriber alert floor applied when
// a subscriber record is first created.
const DefaultMinLiquidationAlert = 10_000

// DefaultReportIntervalHours is applied to newly created subscribers.
const DefaultReportIntervalHours = 4

// Subscriber is a mutable downstream recipient of alerts and digests, keyed
// by a stable chat identifier.
type Subscriber struct {
	ChatID               int64     `bson:"chat_id"                json:"chatId"`
	FirstName            string    `bson:"first_name,omitempty"   json:"firstName,omitempty"`
	Username             string    `bson:"username,omitempty"     json:"username,omitempty"`
	TrackedSymbols       []string  `bson:"tracked_symbols"         json:"trackedSymbols"`
	NotificationsEnabled bool      `bson:"notifications_enabled"   json:"notificationsEnabled"`
	ReportIntervalHours  int       `bson:"report_interval_hours"   json:"reportIntervalHours"`
	MinLiquidationAlert  float64   `bson:"min_liquidation_alert"   json:"minLiquidationAlert"`
	CreatedAt            time.Time `bson:"created_at"              json:"createdAt"`
	LastReportSentAt     time.Time `bson:"last_report_sent_at,omitempty" json:"lastReportSentAt,omitempty"`
}

// Valid reports whether the subscriber satisfies the data-model invariants.
func (s Subscriber) Valid() bool {
	if !ValidReportIntervals[s.ReportIntervalHours] {
		return false
	}
	return s.MinLiquidationAlert >= 0
}

// TracksSymbol reports whether the subscriber's tracked set contains symbol.
func (s Subscriber) TracksSymbol(symbol string) bool {
	for _, sym := range s.TrackedSymbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// NewSubscriberDefaults returns the default field values applied on creation.
func NewSubscriberDefaults(chatID int64, firstName, username string) Subscriber {
	return Subscriber{
		ChatID:               chatID,
		FirstName:            firstName,
		Username:             username,
		TrackedSymbols:       []string{},
		NotificationsEnabled: true,
		ReportIntervalHours:  DefaultReportIntervalHours,
		MinLiquidationAlert:  DefaultMinLiquidationAlert,
		CreatedAt:            time.Now().UTC(),
	}
}
