// Package config loads runtime configuration from flags with environment
// variable fallback, exactly as the teacher's simulator config did.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

// Config holds all sentinel configuration.
type Config struct {
	// Persistence
	MongoURI    string
	MongoDBName string

	// Messaging
	TelegramBotToken      string
	TelegramChannelID     int64
	ChannelMinLiquidation float64

	// Stream ingest
	FuturesWSURL       string
	WSShardSize        int
	WSRefresh          time.Duration
	WSPing             time.Duration
	WSReconnectBackoff time.Duration

	// Cache
	RedisHost string
	RedisPort int

	// Cascade detection
	CascadeWindow    time.Duration
	CascadeMinCount  int
	CascadeMinVolume float64

	// Open-interest surge scan
	OISurgeThreshold float64
	OIScanInterval   time.Duration

	// Retention and archival
	Retention            time.Duration
	RetentionTick        time.Duration
	ArchiveDir           string
	ArchiveMaxGB         int
	ArchiveIntervalHours int
	ArchiveAfterHours    int
}

// Load parses flags (with environment fallback) into a Config and fails
// fast if any of the required fields are empty; ConfigInvalid is the only
// error class allowed to propagate out of startup.
func Load() (*Config, error) {
	c := &Config{}

	flag.StringVar(&c.MongoURI, "mongo-uri", envStr("MONGO_URI", ""), "MongoDB connection URI")
	flag.StringVar(&c.MongoDBName, "mongo-db", envStr("MONGO_DB_NAME", ""), "MongoDB database name")

	flag.StringVar(&c.TelegramBotToken, "telegram-token", envStr("TELEGRAM_BOT_TOKEN", ""), "Telegram bot token")
	flag.Int64Var(&c.TelegramChannelID, "telegram-channel", envInt64("TELEGRAM_CHANNEL_ID", 0), "Telegram broadcast channel chat ID (0 disables)")
	flag.Float64Var(&c.ChannelMinLiquidation, "channel-min-liquidation", envFloat("CHANNEL_MIN_LIQUIDATION", 250_000), "Minimum notional for channel broadcast")

	flag.StringVar(&c.FuturesWSURL, "futures-ws-url", envStr("FUTURES_WS_URL", ""), "Futures venue combined-stream WebSocket URL")
	flag.IntVar(&c.WSShardSize, "ws-shard-size", envInt("WS_SHARD_SIZE", 50), "Symbols per WebSocket connection")
	flag.DurationVar(&c.WSRefresh, "ws-refresh", envDuration("WS_REFRESH", 24*time.Hour), "Force a fresh connection after this long")
	flag.DurationVar(&c.WSPing, "ws-ping", envDuration("WS_PING", 30*time.Second), "WebSocket ping interval")
	flag.DurationVar(&c.WSReconnectBackoff, "ws-reconnect-backoff", envDuration("WS_RECONNECT_BACKOFF", 5*time.Second), "Base reconnect backoff")

	flag.StringVar(&c.RedisHost, "redis-host", envStr("REDIS_HOST", ""), "Redis host (empty uses the in-memory cache)")
	flag.IntVar(&c.RedisPort, "redis-port", envInt("REDIS_PORT", 6379), "Redis port")

	flag.DurationVar(&c.CascadeWindow, "cascade-window", envDuration("CASCADE_WINDOW", 10*time.Second), "Cascade bucket window")
	flag.IntVar(&c.CascadeMinCount, "cascade-min-count", envInt("CASCADE_MIN_COUNT", 3), "Minimum liquidations to qualify as a cascade")
	flag.Float64Var(&c.CascadeMinVolume, "cascade-min-volume", envFloat("CASCADE_MIN_VOLUME", 100_000), "Minimum combined notional to qualify as a cascade")

	flag.Float64Var(&c.OISurgeThreshold, "oi-surge-threshold", envFloat("OI_SURGE_THRESHOLD", 2.5), "Open-interest surge threshold, percent")
	flag.DurationVar(&c.OIScanInterval, "oi-scan-interval", envDuration("OI_SCAN_INTERVAL", 15*time.Minute), "Open-interest scan interval")

	flag.DurationVar(&c.Retention, "retention", envDuration("RETENTION", 48*time.Hour), "Liquidation retention window in the live store")
	flag.DurationVar(&c.RetentionTick, "retention-tick", envDuration("RETENTION_TICK", 24*time.Hour), "Retention sweep interval")
	flag.StringVar(&c.ArchiveDir, "archive-dir", envStr("ARCHIVE_DIR", "./archive"), "Directory for archived liquidation NDJSON files")
	flag.IntVar(&c.ArchiveMaxGB, "archive-max-gb", envInt("ARCHIVE_MAX_GB", 10), "Maximum archive directory size in GB before rotation")
	flag.IntVar(&c.ArchiveIntervalHours, "archive-interval", envInt("ARCHIVE_INTERVAL_HOURS", 6), "Hours between archive runs")
	flag.IntVar(&c.ArchiveAfterHours, "archive-after", envInt("ARCHIVE_AFTER_HOURS", 24), "Archive liquidations older than this many hours")

	flag.Parse()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.MongoDBName == "" {
		missing = append(missing, "MONGO_DB_NAME")
	}
	if c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.FuturesWSURL == "" {
		missing = append(missing, "FUTURES_WS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required configuration: %v", model.ErrConfigInvalid, missing)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
