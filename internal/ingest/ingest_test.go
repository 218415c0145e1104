package ingest

import (
	"testing"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

func TestNewManagerSplitsSymbolsIntoShards(t *testing.T) {
	symbols := make([]string, 125)
	for i := range symbols {
		symbols[i] = "SYM"
	}

	m := NewManager("wss://example.invalid/stream", symbols, func(model.LiquidationEvent) {})
	if got, want := m.ShardCount(), 3; got != want {
		t.Fatalf("ShardCount() = %d, want %d", got, want)
	}
}

func TestNewManagerWithOptionsOverridesShardSize(t *testing.T) {
	symbols := make([]string, 100)
	for i := range symbols {
		symbols[i] = "SYM"
	}

	m := NewManagerWithOptions("wss://example.invalid/stream", symbols, func(model.LiquidationEvent) {}, Options{ShardSize: 25})
	if got, want := m.ShardCount(), 4; got != want {
		t.Fatalf("ShardCount() = %d, want %d", got, want)
	}
}

func TestStreamURLLowercasesAndJoinsSymbols(t *testing.T) {
	got := streamURL("wss://fstream.binance.com/stream", []string{"BTCUSDT", "ETHUSDT"})
	want := "wss://fstream.binance.com/stream?streams=btcusdt%40forceOrder%2Fethusdt%40forceOrder"
	if got != want {
		t.Fatalf("streamURL = %q, want %q", got, want)
	}
}
