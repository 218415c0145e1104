// Package ingest maintains the outbound WebSocket connections that stream
// forced-liquidation orders from a futures venue, decodes them, and hands
// each one to a handler for downstream persistence, cascade detection, and
// fan-out. It mirrors the connection lifecycle of an inbound session
// manager — connect/ping/read-loop/reconnect — with the Dial direction
// reversed: this side is always the client.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liqsentinel/liqsentinel/internal/jitter"
	"github.com/liqsentinel/liqsentinel/internal/model"
)

const (
	shardSize         = 50
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 30 * time.Second
	reconnectBase     = 5 * time.Second
	reconnectSpread   = 500 * time.Millisecond
	connectionRefresh = 24 * time.Hour
)

// Handler receives each decoded liquidation event as it arrives.
type Handler func(model.LiquidationEvent)

// State is a shard's connection lifecycle state.
type State int

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Options overrides the documented connection-lifecycle defaults; a zero
// Options (or any zero field within it) falls back to the default.
type Options struct {
	ShardSize         int
	Ping              time.Duration
	ReconnectBackoff  time.Duration
	ConnectionRefresh time.Duration
}

func (o Options) withDefaults() Options {
	if o.ShardSize <= 0 {
		o.ShardSize = shardSize
	}
	if o.Ping <= 0 {
		o.Ping = pingPeriod
	}
	if o.ReconnectBackoff <= 0 {
		o.ReconnectBackoff = reconnectBase
	}
	if o.ConnectionRefresh <= 0 {
		o.ConnectionRefresh = connectionRefresh
	}
	return o
}

// Manager owns one shard per batch of up to ShardSize symbols, so a single
// dropped connection never stalls the whole tracked universe.
type Manager struct {
	baseURL string
	handler Handler
	shards  []*shard
	wg      sync.WaitGroup
}

// NewManager builds a Manager for symbols, splitting them across shards,
// using the documented connection-lifecycle defaults.
func NewManager(baseURL string, symbols []string, handler Handler) *Manager {
	return NewManagerWithOptions(baseURL, symbols, handler, Options{})
}

// NewManagerWithShardSize is NewManager with an explicit symbols-per-shard
// size, used when configuration overrides the documented default.
func NewManagerWithShardSize(baseURL string, symbols []string, handler Handler, shardSz int) *Manager {
	return NewManagerWithOptions(baseURL, symbols, handler, Options{ShardSize: shardSz})
}

// NewManagerWithOptions is NewManager with every connection-lifecycle
// knob overridable, used when configuration overrides the defaults.
func NewManagerWithOptions(baseURL string, symbols []string, handler Handler, opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{baseURL: baseURL, handler: handler}

	for i := 0; i < len(symbols); i += opts.ShardSize {
		end := i + opts.ShardSize
		if end > len(symbols) {
			end = len(symbols)
		}
		m.shards = append(m.shards, &shard{
			id:      len(m.shards),
			symbols: symbols[i:end],
			url:     streamURL(baseURL, symbols[i:end]),
			handler: handler,
			rng:     jitter.New(int64(len(m.shards)) + 1),
			opts:    opts,
		})
	}
	return m
}

// Run starts every shard and blocks until ctx is cancelled, then waits for
// all shards to tear down their connections.
func (m *Manager) Run(ctx context.Context) {
	log.Printf("ingest: starting %d shard(s) for %s", len(m.shards), m.baseURL)

	for _, sh := range m.shards {
		m.wg.Add(1)
		go func(sh *shard) {
			defer m.wg.Done()
			sh.run(ctx)
		}(sh)
	}

	<-ctx.Done()
	m.wg.Wait()
	log.Println("ingest: all shards stopped")
}

// ShardCount reports how many shards the symbol universe was split into.
func (m *Manager) ShardCount() int {
	return len(m.shards)
}

func streamURL(base string, symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@forceOrder"
	}
	v := url.Values{}
	v.Set("streams", strings.Join(streams, "/"))
	return base + "?" + v.Encode()
}

type shard struct {
	id      int
	symbols []string
	url     string
	handler Handler
	rng     *jitter.RNG
	opts    Options

	state   State
	stateMu sync.RWMutex
}

func (s *shard) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// State reports the shard's current connection lifecycle state.
func (s *shard) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *shard) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.setState(Closed)
			return
		}

		s.setState(Connecting)
		if err := s.connectAndServe(ctx); err != nil {
			log.Printf("ingest shard %d: %v", s.id, err)
		}
		s.setState(Closed)

		if ctx.Err() != nil {
			return
		}

		backoff := s.rng.Jitter(s.opts.ReconnectBackoff, reconnectSpread)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (s *shard) connectAndServe(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial shard %d: %v", model.ErrUpstream, s.id, err)
	}
	defer conn.Close()

	s.setState(Open)
	log.Printf("ingest shard %d: connected (%d symbols)", s.id, len(s.symbols))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	errCh := make(chan error, 1)

	go s.readLoop(conn, done, errCh)

	pingTicker := time.NewTicker(s.opts.Ping)
	defer pingTicker.Stop()

	refresh := time.NewTimer(s.opts.ConnectionRefresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			return err

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("%w: ping shard %d: %v", model.ErrUpstream, s.id, err)
			}

		case <-refresh.C:
			log.Printf("ingest shard %d: planned connection refresh", s.id)
			return nil
		}
	}
}

func (s *shard) readLoop(conn *websocket.Conn, done chan struct{}, errCh chan<- error) {
	defer close(done)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("%w: read shard %d: %v", model.ErrUpstream, s.id, err)
			return
		}

		event, err := decodeForceOrder(message)
		if err != nil {
			log.Printf("ingest shard %d: %v", s.id, err)
			continue
		}
		s.handler(event)
	}
}
