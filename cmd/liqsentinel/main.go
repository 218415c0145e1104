// Command liqsentinel runs the liquidation/derivatives observability
// pipeline: it streams forced liquidations from a futures venue, persists
// and caches them, detects cascades and open-interest surges, and fans
// alerts and periodic digests out to Telegram.
package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/cache"
	"github.com/liqsentinel/liqsentinel/internal/cascade"
	"github.com/liqsentinel/liqsentinel/internal/config"
	"github.com/liqsentinel/liqsentinel/internal/fanout"
	"github.com/liqsentinel/liqsentinel/internal/ingest"
	"github.com/liqsentinel/liqsentinel/internal/messaging"
	"github.com/liqsentinel/liqsentinel/internal/model"
	"github.com/liqsentinel/liqsentinel/internal/persist"
	"github.com/liqsentinel/liqsentinel/internal/report"
	"github.com/liqsentinel/liqsentinel/internal/scheduler"
	"github.com/liqsentinel/liqsentinel/internal/venues"
)

// shutdownGrace mirrors spec.md's grace window: how long main waits for
// in-flight shard and cascade work to drain after cancellation.
const shutdownGrace = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("liqsentinel: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := persist.NewStore(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("liqsentinel: connect to storage: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("liqsentinel: migrate storage: %v", err)
	}

	var memCache cache.Cache
	if cfg.RedisHost != "" {
		redisCache := cache.NewRedis(cfg.RedisHost + ":" + strconv.Itoa(cfg.RedisPort))
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatalf("liqsentinel: connect to redis: %v", err)
		}
		memCache = redisCache
	} else {
		memCache = cache.NewMemory()
	}

	aggregator := venues.NewAggregator(memCache, venues.NewBinance(), venues.NewBybit(), venues.NewMexc(memCache))
	surgeDetector := venues.NewSurgeDetectorWithThreshold(aggregator, memCache, cfg.OISurgeThreshold)

	messenger, err := messaging.NewClient(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("liqsentinel: start telegram client: %v", err)
	}

	router := fanout.NewRouter(store, messenger, cfg.TelegramChannelID, cfg.ChannelMinLiquidation)

	detector := cascade.NewWithThresholds(cfg.CascadeWindow, cfg.CascadeMinCount, cfg.CascadeMinVolume, func(alert model.CascadeAlert) {
		router.HandleCascade(ctx, alert)
	})

	symbols := model.SymbolUniverse()
	ingestMgr := ingest.NewManagerWithOptions(cfg.FuturesWSURL, symbols, func(e model.LiquidationEvent) {
		handleLiquidation(ctx, store, router, detector, e)
	}, ingest.Options{
		ShardSize:         cfg.WSShardSize,
		Ping:              cfg.WSPing,
		ReconnectBackoff:  cfg.WSReconnectBackoff,
		ConnectionRefresh: cfg.WSRefresh,
	})

	archiver := persist.NewArchiver(store, cfg.ArchiveDir, cfg.ArchiveMaxGB, cfg.ArchiveIntervalHours, cfg.ArchiveAfterHours)

	reportGen := report.NewGenerator(store, fundingLookup(aggregator))
	reportSvc := &reportSender{store: store, messenger: messenger, gen: reportGen}
	surgeScanner := &surgeScanAll{detector: surgeDetector, symbols: symbols, router: router}

	sched := scheduler.New(store, reportSvc, surgeScanner, cfg.Retention, func() {
		log.Println("liqsentinel: connection refresh tick (shard reconnect is self-managed on its own timer)")
	})
	if err := sched.Start(ctx, cfg.RetentionTick, cfg.OIScanInterval, cfg.WSRefresh); err != nil {
		log.Fatalf("liqsentinel: start scheduler: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); ingestMgr.Run(ctx) }()
	go func() { defer wg.Done(); detector.Run(ctx) }()
	go func() { defer wg.Done(); archiver.Run(ctx) }()

	log.Println("liqsentinel: running")
	<-ctx.Done()
	log.Println("liqsentinel: shutting down")

	sched.Stop()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		log.Println("liqsentinel: shutdown grace period elapsed, exiting")
	}
}

func handleLiquidation(ctx context.Context, store *persist.Store, router *fanout.Router, detector *cascade.Detector, e model.LiquidationEvent) {
	if err := store.SaveLiquidation(ctx, e); err != nil {
		log.Printf("liqsentinel: save liquidation: %v", err)
	}
	detector.Admit(e)
	router.HandleLiquidation(ctx, e)
}

// reportSender adapts report.Generator and messaging.Client into the
// scheduler's ReportSender contract, recording each delivery time on the
// subscriber for diagnostics; report generation does not read it back.
type reportSender struct {
	store     *persist.Store
	messenger *messaging.Client
	gen       *report.Generator
}

func (s *reportSender) SendReport(ctx context.Context, sub model.Subscriber, scheduled bool) error {
	rep, err := s.gen.Generate(ctx, sub, sub.ReportIntervalHours, scheduled)
	if err != nil {
		return err
	}
	if err := s.messenger.Send(ctx, sub.ChatID, report.Render(rep)); err != nil {
		return err
	}
	return s.store.SetLastReportSentAt(ctx, sub.ChatID, rep.GeneratedAt)
}

// surgeScanAll adapts venues.SurgeDetector into the scheduler's
// SurgeScanner contract, scanning the whole tracked universe on each tick.
type surgeScanAll struct {
	detector *venues.SurgeDetector
	symbols  []string
	router   *fanout.Router
}

func (s *surgeScanAll) ScanAll(ctx context.Context) {
	for _, sym := range s.symbols {
		surge, ok, err := s.detector.Scan(ctx, sym)
		if err != nil {
			log.Printf("liqsentinel: OI scan %s: %v", sym, err)
			continue
		}
		if ok {
			s.router.HandleOISurge(ctx, surge)
		}
	}
}

func fundingLookup(aggregator *venues.Aggregator) report.FundingLookup {
	return func(ctx context.Context, symbol string) (float64, bool) {
		stats, err := aggregator.Aggregate(ctx, symbol)
		if err != nil || len(stats.Exchanges) == 0 {
			return 0, false
		}
		var sum float64
		for _, ex := range stats.Exchanges {
			sum += ex.FundingRate
		}
		return sum / float64(len(stats.Exchanges)), true
	}
}

