package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"signal-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Record is one archived candle with its key.
type Record struct {
	Key    model.Key
	Candle model.Candle
}

// ArchiveConfig configures the candle archive.
type ArchiveConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/candles.db"
}

// Archive is a single-goroutine SQLite writer with transaction batching.
type Archive struct {
	db *sql.DB

	// OnCommit is an optional metrics hook invoked with the duration of
	// each successful batch commit.
	OnCommit func(dur time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (a *Archive) DB() *sql.DB { return a.db }

// New creates a new Archive, initializes the database with WAL mode and schema.
func New(cfg ArchiveConfig) (*Archive, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Archive{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			asset  TEXT    NOT NULL,
			tf     INTEGER NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL,
			PRIMARY KEY (asset, tf, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			asset        TEXT    NOT NULL,
			tf           INTEGER NOT NULL,
			direction    TEXT    NOT NULL,
			confidence   INTEGER NOT NULL,
			reason       TEXT,
			generated_at INTEGER NOT NULL
		);
	`)
	return err
}

// Run reads candle records from recordCh and inserts them in batched
// transactions. Flushes every batchSize records OR every flushDelay,
// whichever first. Blocks until ctx is cancelled or recordCh is closed.
func (a *Archive) Run(ctx context.Context, recordCh <-chan Record) {
	batch := make([]Record, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := a.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d candles in %v", len(batch), time.Since(start))
			if a.OnCommit != nil {
				a.OnCommit(time.Since(start))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-recordCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of candle records in a single transaction.
func (a *Archive) insertBatch(records []Record) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (asset, tf, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		c := r.Candle
		_, err := stmt.Exec(r.Key.Asset, int(r.Key.TF), c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveSignal records an actionable signal for later review.
func (a *Archive) SaveSignal(sig model.Signal) error {
	_, err := a.db.Exec(`
		INSERT INTO signals (asset, tf, direction, confidence, reason, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.Asset, int(sig.TF), string(sig.Direction), sig.Confidence, sig.Reason, sig.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// ReadCandles reads archived candles for a key, ordered by timestamp
// ascending, at most limit rows of the newest data.
func (a *Archive) ReadCandles(key model.Key, limit int) ([]model.Candle, error) {
	rows, err := a.db.Query(`
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE asset = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, key.Asset, int(key.TF), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastTimestamp returns the newest archived candle timestamp for a key,
// or 0 when nothing is stored.
func (a *Archive) LastTimestamp(key model.Key) (int64, error) {
	var ts sql.NullInt64
	err := a.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE asset = ? AND tf = ?`,
		key.Asset, int(key.TF),
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
