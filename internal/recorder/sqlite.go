package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history and latest closes to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			duration_ms    INTEGER,
			sources_ok     INTEGER,
			sources_failed INTEGER,
			rows_extracted INTEGER,
			rows_converted INTEGER,
			rows_failed    INTEGER,
			misses         INTEGER,
			added          INTEGER,
			pruned         INTEGER,
			persisted      INTEGER,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON ingest_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS latest_closes (
			isin         TEXT PRIMARY KEY,
			name         TEXT,
			exchange     TEXT,
			quote_time   INTEGER NOT NULL,
			close        TEXT,
			volume       TEXT,
			high_52w     TEXT,
			low_52w      TEXT,
			position_52w TEXT,
			updated_at   INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := evt.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO ingest_runs
		(timestamp, duration_ms, sources_ok, sources_failed,
		 rows_extracted, rows_converted, rows_failed, misses,
		 added, pruned, persisted, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		ts.Unix(), evt.Duration.Milliseconds(), evt.SourcesOK, evt.SourcesFailed,
		evt.RowsExtracted, evt.RowsConverted, evt.RowsFailed, evt.Misses,
		evt.Added, evt.Pruned, evt.Persisted, evt.Error,
	)
	return err
}

// RecordLatest upserts the newest close of every given security in one transaction.
func (r *SQLiteRecorder) RecordLatest(closes []LatestClose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO latest_closes
		(isin, name, exchange, quote_time, close, volume,
		 high_52w, low_52w, position_52w, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(isin) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			quote_time = excluded.quote_time,
			close = excluded.close,
			volume = excluded.volume,
			high_52w = excluded.high_52w,
			low_52w = excluded.low_52w,
			position_52w = excluded.position_52w,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range closes {
		if _, err := stmt.Exec(c.ISIN, c.Name, c.Exchange, c.Time.Unix(), c.Close, c.Volume,
			c.High52w, c.Low52w, c.Position, now); err != nil {
			return fmt.Errorf("upsert %s: %w", c.ISIN, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
