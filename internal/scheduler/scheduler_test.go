package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

type fakeStore struct {
	subs           []model.Subscriber
	deleteCalls    int
	lastCutoff     time.Time
}

func (s *fakeStore) ActiveSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	return s.subs, nil
}

func (s *fakeStore) DeleteLiquidationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.deleteCalls++
	s.lastCutoff = cutoff
	return 0, nil
}

type fakeReportSender struct {
	sent []int64
}

func (r *fakeReportSender) SendReport(ctx context.Context, sub model.Subscriber, scheduled bool) error {
	r.sent = append(r.sent, sub.ChatID)
	return nil
}

func TestDueForDigestGatesOnUTCHourModulo(t *testing.T) {
	atHour := func(h int) time.Time { return time.Date(2026, 7, 29, h, 0, 0, 0, time.UTC) }

	sub := model.Subscriber{ChatID: 1, ReportIntervalHours: 4}
	if !dueForDigest(sub, atHour(8)) {
		t.Fatal("expected hour 8 to be due for a 4h interval")
	}
	if dueForDigest(sub, atHour(9)) {
		t.Fatal("expected hour 9 to not be due for a 4h interval")
	}
	if dueForDigest(sub, atHour(10)) {
		t.Fatal("expected hour 10 to not be due for a 4h interval")
	}
}

func TestDueForDigestIgnoresLastReportSentAt(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	sub := model.Subscriber{ChatID: 1, ReportIntervalHours: 4, LastReportSentAt: now}
	if !dueForDigest(sub, now) {
		t.Fatal("expected gating to depend only on the UTC-hour modulo, not LastReportSentAt")
	}
}

func TestRunDigestsOnlySendsToSubscribersDue(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{subs: []model.Subscriber{
		{ChatID: 1, ReportIntervalHours: 4},
		{ChatID: 2, ReportIntervalHours: 24},
	}}
	sender := &fakeReportSender{}
	s := New(store, sender, nil, 48*time.Hour, nil)

	s.runDigestsAt(context.Background(), now)

	if len(sender.sent) != 1 || sender.sent[0] != 1 {
		t.Fatalf("expected only chat 1 (due at hour 12 with a 4h interval) to receive a digest, got %v", sender.sent)
	}
}

func TestRunRetentionUsesConfiguredWindow(t *testing.T) {
	store := &fakeStore{}
	s := New(store, &fakeReportSender{}, nil, 48*time.Hour, nil)

	before := time.Now().Add(-48 * time.Hour)
	s.runRetention(context.Background())
	after := time.Now().Add(-48 * time.Hour)

	if store.deleteCalls != 1 {
		t.Fatalf("expected one retention call, got %d", store.deleteCalls)
	}
	if store.lastCutoff.Before(before.Add(-time.Second)) || store.lastCutoff.After(after.Add(time.Second)) {
		t.Fatalf("expected cutoff near now-48h, got %v", store.lastCutoff)
	}
}

func TestEverySpecFormatsDuration(t *testing.T) {
	if got := everySpec(15 * time.Minute); got != "@every 15m0s" {
		t.Fatalf("unexpected cron spec: %q", got)
	}
}

func TestJobGuardSkipsOverlappingTick(t *testing.T) {
	var g jobGuard
	g.name = "test"

	started := make(chan struct{})
	release := make(chan struct{})
	go g.run(func() {
		close(started)
		<-release
	})
	<-started

	ran := false
	g.run(func() { ran = true })
	if ran {
		t.Fatal("expected overlapping tick to be skipped")
	}

	close(release)
}
