package clickhouse

import (
	"context"
	"fmt"
	"os"
	"strings"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"cryptobot/services/engine"
)

// Config for the candle store connection.
type Config struct {
	DSN      string
	Database string
	Table    string
	User     string
	Password string
}

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// ConfigFromEnv reads connection settings with local-dev defaults.
func ConfigFromEnv() Config {
	return Config{
		DSN:      mustEnv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000?secure=false&compress=lz4"),
		Database: mustEnv("CH_DATABASE", "backtest"),
		Table:    mustEnv("CH_TABLE", "data"),
		User:     mustEnv("CH_USER", "backtest"),
		Password: mustEnv("CH_PASSWORD", "backtest123"),
	}
}

// Source reads historical candles from ClickHouse over the native
// protocol.
type Source struct {
	conn driver.Conn
	cfg  Config
}

// Open connects and pings so a dead server fails at startup rather than
// on the first query.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{dsnHost(cfg.DSN)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Source{conn: conn, cfg: cfg}, nil
}

// Candles fetches one symbol/interval slice ordered by open time.
// from/to are millisecond bounds, from inclusive, to exclusive.
func (s *Source) Candles(ctx context.Context, symbol, interval string, from, to int64) ([]engine.Candle, error) {
	q := fmt.Sprintf(`
SELECT open_time_ms, toFloat64(open), toFloat64(high), toFloat64(low), toFloat64(close), toFloat64(volume)
FROM %s.%s
WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms < ?
ORDER BY open_time_ms`, s.cfg.Database, s.cfg.Table)

	rows, err := s.conn.Query(ctx, q, symbol, interval, from, to)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	var out []engine.Candle
	for rows.Next() {
		var c engine.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no candles for %s %s in [%d, %d)", symbol, interval, from, to)
	}
	return engine.NormalizeCandles(out), nil
}

// Count returns how many rows exist for a symbol/interval, used by the
// commands to fail fast on an empty table.
func (s *Source) Count(ctx context.Context, symbol, interval string) (uint64, error) {
	q := fmt.Sprintf("SELECT count() FROM %s.%s WHERE symbol = ? AND interval = ?", s.cfg.Database, s.cfg.Table)
	var n uint64
	if err := s.conn.QueryRow(ctx, q, symbol, interval).Scan(&n); err != nil {
		return 0, fmt.Errorf("clickhouse count: %w", err)
	}
	return n, nil
}

func (s *Source) Close() error { return s.conn.Close() }

// dsnHost extracts host:port from a DSN-like URL for driver bootstrap.
func dsnHost(dsn string) string {
	host := "localhost:9000"
	if i := strings.Index(dsn, "@"); i != -1 {
		rest := dsn[i+1:]
		if j := strings.Index(rest, "?"); j != -1 {
			host = rest[:j]
		} else {
			host = rest
		}
		host = strings.TrimPrefix(host, "/")
		host = strings.TrimPrefix(host, "//")
	}
	return host
}
