// Package postgres implements the BarSource interface against a PostgreSQL
// bars table, following the repository pattern of the rest of the data layer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// BarStore reads price bars from the `bars` table, one row per instrument
// per trading day.
type BarStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarStore creates a Postgres bar store.
func NewBarStore(db *sqlx.DB, timeout time.Duration) *BarStore {
	return &BarStore{db: db, timeout: timeout}
}

// Connect opens and pings a Postgres connection.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bar store: %w", err)
	}
	return db, nil
}

// LoadBars implements data.BarSource. Bars come back sorted ascending by
// timestamp; gaps in the calendar are preserved, not filled.
func (s *BarStore) LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]market.PriceBar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT ts, open, high, low, close, volume, COALESCE(turnover, 0) AS turnover
		FROM bars
		WHERE symbol = $1 AND ($2::timestamptz IS NULL OR ts >= $2) AND ($3::timestamptz IS NULL OR ts <= $3)
		ORDER BY ts ASC`

	rows, err := s.db.QueryxContext(ctx, query, symbol, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []market.PriceBar
	for rows.Next() {
		var bar market.PriceBar
		if err := rows.StructScan(&bar); err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", data.ErrNotFound, symbol)
	}
	return bars, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
