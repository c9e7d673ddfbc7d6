package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	pkgch "MeanRev/pkg/clickhouse"
	applogger "MeanRev/pkg/logger"
)

// ClickHouseBarStore implements BarStore for ClickHouse.
type ClickHouseBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseBarStore creates ClickHouse bar storage.
func NewClickHouseBarStore(ch *pkgch.Client, table string) *ClickHouseBarStore {
	if table == "" {
		table = "meanrev.bars"
	}
	return &ClickHouseBarStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseBarStore) Init(ctx context.Context) error {
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS meanrev",
		fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                ts      DateTime64(3),
                pair    LowCardinality(String),
                open    Float64,
                high    Float64,
                low     Float64,
                close   Float64,
                volume  Float64,
                spread  Float64
            )
            ENGINE = ReplacingMergeTree
            PARTITION BY toYYYYMM(ts)
            ORDER BY (pair, ts)
        `, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init bar schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseBarStore) Store(ctx context.Context, b models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, pair, open, high, low, close, volume, spread) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		b.Timestamp,
		b.Pair,
		b.Open,
		b.High,
		b.Low,
		b.Close,
		b.Volume,
		b.Spread,
	)
	return err
}

func (s *ClickHouseBarStore) StoreBatch(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES inserts to reduce round-trips, chunked at 2000 rows.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range bars[start:end] {
			if b.Pair == "" || b.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Timestamp, b.Pair, b.Open, b.High, b.Low, b.Close, b.Volume, b.Spread,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, pair, open, high, low, close, volume, spread) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseBarStore) LatestN(ctx context.Context, pair string, n int) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, pair, open, high, low, close, volume, spread
        FROM %s
        WHERE pair = ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, pair, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_bars query error",
				applogger.String("pair", pair),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_bars ok",
			applogger.String("pair", pair),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseBarStore) Range(ctx context.Context, pair string, from, to time.Time) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT ts, pair, open, high, low, close, volume, spread
        FROM %s
        WHERE pair = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, pair, from, to)
	if err != nil {
		return nil, fmt.Errorf("get bar range: %w", err)
	}
	defer rows.Close()
	return scanBars(rows, 1024)
}

func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarStore) Close() error {
	return nil // pool managed by pkg client
}

func scanBars(rows *sql.Rows, sizeHint int) ([]models.Bar, error) {
	out := make([]models.Bar, 0, sizeHint)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Pair, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Spread); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.BarStore = (*ClickHouseBarStore)(nil)
