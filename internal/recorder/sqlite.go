package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit trail to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so analysis tools can read while a download run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbol    TEXT,
			source    TEXT,
			kind      TEXT,
			interval  TEXT,
			records   INTEGER,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_ts ON fetch_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_symbol ON fetch_events(symbol)`,

		`CREATE TABLE IF NOT EXISTS anomaly_events (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT,
			kind            TEXT,
			null_fields     INTEGER,
			negative_prices INTEGER,
			sub_minimum     INTEGER,
			extreme_moves   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anomaly_ts ON anomaly_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS run_summaries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			kind        TEXT,
			requested   INTEGER,
			succeeded   INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_ts ON run_summaries(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordFetch(evt *FetchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO fetch_events (timestamp, symbol, source, kind, interval, records, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.Symbol, evt.Source, evt.Kind, evt.Interval, evt.Records, evt.Err,
	)
	if err != nil {
		return fmt.Errorf("insert fetch event: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnomalies(evt *AnomalyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO anomaly_events (timestamp, symbol, kind, null_fields, negative_prices, sub_minimum, extreme_moves)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.Symbol, evt.Kind, evt.NullFields, evt.NegativePrices, evt.SubMinimum, evt.ExtremeMoves,
	)
	if err != nil {
		return fmt.Errorf("insert anomaly event: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(sum *RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO run_summaries (timestamp, kind, requested, succeeded, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), sum.Kind, sum.Requested, sum.Succeeded, sum.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
