// Package stream maintains a latest-quote cache fed by a websocket quote
// feed. The backtest core never touches this; it exists for the realtime
// path of the adapter layer.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/adapters"
)

// quoteMessage is the wire shape pushed by the quote feed.
type quoteMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"` // unix milliseconds
}

// Feed subscribes to a websocket quote stream and keeps the latest quote
// per symbol. Reads are lock-cheap; the single reader goroutine owns all
// writes.
type Feed struct {
	url     string
	symbols []string

	mu     sync.RWMutex
	latest map[string]adapters.Quote

	done chan struct{}
}

// NewFeed creates a quote feed for the given symbols.
func NewFeed(url string, symbols []string) *Feed {
	return &Feed{
		url:     url,
		symbols: symbols,
		latest:  make(map[string]adapters.Quote),
		done:    make(chan struct{}),
	}
}

// Run connects and consumes quotes until the context is canceled. Connection
// drops reconnect with a flat backoff.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.done)
	for {
		if err := f.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("url", f.url).Msg("quote stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial quote stream: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{"op": "subscribe", "symbols": f.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// The closer goroutine must not outlive this connection.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("quote stream read failed: %w", err)
		}
		var msg quoteMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(err).Msg("skipping malformed quote message")
			continue
		}
		f.mu.Lock()
		f.latest[msg.Symbol] = adapters.Quote{
			Symbol:    msg.Symbol,
			Price:     msg.Price,
			Timestamp: time.UnixMilli(msg.Timestamp),
		}
		f.mu.Unlock()
	}
}

// Latest returns the most recent quote for a symbol, if any arrived yet.
func (f *Feed) Latest(symbol string) (adapters.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.latest[symbol]
	return q, ok
}

// Adapter exposes the feed through the adapters.Adapter interface with
// medium quality: realtime but venue-unverified.
type Adapter struct {
	feed *Feed
	name string
}

// NewAdapter wraps a feed as an adapters.Adapter.
func NewAdapter(name string, feed *Feed) *Adapter {
	return &Adapter{feed: feed, name: name}
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) Quality() adapters.Quality { return adapters.QualityMedium }

func (a *Adapter) GetPrice(_ context.Context, symbol string) (adapters.Quote, error) {
	return a.lookup(symbol)
}

func (a *Adapter) GetIndexPrice(_ context.Context, indexCode string) (adapters.Quote, error) {
	return a.lookup(indexCode)
}

func (a *Adapter) GetRealtime(_ context.Context, symbol string) (adapters.Quote, error) {
	return a.lookup(symbol)
}

func (a *Adapter) lookup(symbol string) (adapters.Quote, error) {
	q, ok := a.feed.Latest(symbol)
	if !ok {
		return adapters.Quote{}, fmt.Errorf("no streamed quote for %s yet", symbol)
	}
	return q, nil
}
