// Package adapters provides the market-data adapter layer: a set of quote
// providers with declared data quality, tried in priority order behind
// per-adapter circuit breakers and rate limits. The analytics core only
// consumes the returned quote shape and is agnostic to which adapter
// produced it.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Quality tags the trustworthiness of an adapter's data.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Quote is the price shape every adapter returns.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"ts"`
	Quality   Quality   `json:"quality"`
	Source    string    `json:"source"`
}

// Adapter is one market-data provider.
type Adapter interface {
	Name() string
	Quality() Quality
	GetPrice(ctx context.Context, symbol string) (Quote, error)
	GetIndexPrice(ctx context.Context, indexCode string) (Quote, error)
	GetRealtime(ctx context.Context, symbol string) (Quote, error)
}

// ErrAllAdaptersFailed indicates every configured adapter failed or was
// tripped for the request.
var ErrAllAdaptersFailed = errors.New("all market-data adapters failed")

type managed struct {
	adapter Adapter
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Manager tries adapters in priority order until one succeeds. Each adapter
// sits behind its own circuit breaker and rate limiter; a tripped breaker or
// exhausted rate budget just moves the request to the next adapter.
type Manager struct {
	adapters []managed
}

// ManagerOption configures per-adapter runtime limits.
type ManagerOption struct {
	RequestsPerSecond   float64
	Burst               int
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultManagerOption returns the production adapter limits.
func DefaultManagerOption() ManagerOption {
	return ManagerOption{
		RequestsPerSecond:   5,
		Burst:               10,
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
	}
}

// NewManager creates a manager with adapters in priority order (first is
// tried first).
func NewManager(opt ManagerOption, adapters ...Adapter) *Manager {
	m := &Manager{}
	for _, a := range adapters {
		threshold := opt.ConsecutiveFailures
		settings := gobreaker.Settings{
			Name:    a.Name(),
			Timeout: opt.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("adapter", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("adapter circuit breaker state change")
			},
		}
		m.adapters = append(m.adapters, managed{
			adapter: a,
			breaker: gobreaker.NewCircuitBreaker(settings),
			limiter: rate.NewLimiter(rate.Limit(opt.RequestsPerSecond), opt.Burst),
		})
	}
	return m
}

// GetPrice fetches the latest price for a symbol from the highest-priority
// healthy adapter.
func (m *Manager) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	return m.fetch(ctx, symbol, func(ctx context.Context, a Adapter) (Quote, error) {
		return a.GetPrice(ctx, symbol)
	})
}

// GetIndexPrice fetches the latest benchmark index price.
func (m *Manager) GetIndexPrice(ctx context.Context, indexCode string) (Quote, error) {
	return m.fetch(ctx, indexCode, func(ctx context.Context, a Adapter) (Quote, error) {
		return a.GetIndexPrice(ctx, indexCode)
	})
}

// GetRealtime fetches an intraday quote.
func (m *Manager) GetRealtime(ctx context.Context, symbol string) (Quote, error) {
	return m.fetch(ctx, symbol, func(ctx context.Context, a Adapter) (Quote, error) {
		return a.GetRealtime(ctx, symbol)
	})
}

func (m *Manager) fetch(ctx context.Context, symbol string, call func(context.Context, Adapter) (Quote, error)) (Quote, error) {
	var lastErr error
	for _, ma := range m.adapters {
		if err := ma.limiter.Wait(ctx); err != nil {
			return Quote{}, fmt.Errorf("adapter fetch canceled: %w", err)
		}
		result, err := ma.breaker.Execute(func() (interface{}, error) {
			return call(ctx, ma.adapter)
		})
		if err != nil {
			lastErr = err
			log.Debug().Str("adapter", ma.adapter.Name()).Str("symbol", symbol).
				Err(err).Msg("adapter fetch failed, trying next")
			continue
		}
		quote := result.(Quote)
		quote.Source = ma.adapter.Name()
		quote.Quality = ma.adapter.Quality()
		return quote, nil
	}
	if lastErr != nil {
		return Quote{}, fmt.Errorf("%w: last error: %v", ErrAllAdaptersFailed, lastErr)
	}
	return Quote{}, ErrAllAdaptersFailed
}
