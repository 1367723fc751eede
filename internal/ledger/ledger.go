// Package ledger records batch outcomes and dead-lettered records in a
// local SQLite database, giving operators a durable trail of what the
// pipeline processed and what it had to drop.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	pipeerrors "github.com/shelfstream/shelfstream/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	shard         TEXT NOT NULL,
	records_seen  INTEGER NOT NULL,
	records_failed INTEGER NOT NULL,
	received_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_shard ON batches(shard);

CREATE TABLE IF NOT EXISTS dead_letters (
	id         TEXT PRIMARY KEY,
	shard      TEXT NOT NULL,
	category   TEXT NOT NULL,
	code       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dead_letters_shard ON dead_letters(shard);
`

// DeadLetter is one record the pipeline could not process, with the raw
// change payload preserved for replay.
type DeadLetter struct {
	ID        string
	Shard     string
	Category  string
	Code      string
	Reason    string
	Payload   []byte
	CreatedAt time.Time
}

// BatchRecord is one processed batch as recorded in the ledger.
type BatchRecord struct {
	ID            int64
	Shard         string
	RecordsSeen   int
	RecordsFailed int
	ReceivedAt    time.Time
}

// Ledger is the SQLite-backed processing trail.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	// SQLite tolerates one writer; funnel all connections through it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// RecordBatch appends one batch outcome.
func (l *Ledger) RecordBatch(ctx context.Context, shard string, seen, failed int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO batches (shard, records_seen, records_failed, received_at) VALUES (?, ?, ?, ?)`,
		shard, seen, failed, time.Now().UTC())
	if err != nil {
		return pipeerrors.Wrap(pipeerrors.ErrCategoryLedger, pipeerrors.CodeLedgerWriteFailed,
			"failed to record batch", err)
	}
	return nil
}

// RecordDeadLetter stores a failed record with its raw payload compressed,
// returning the assigned dead-letter id.
func (l *Ledger) RecordDeadLetter(ctx context.Context, shard, category, code, reason string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, shard, category, code, reason, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, shard, category, code, reason, snappy.Encode(nil, payload), time.Now().UTC())
	if err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCategoryLedger, pipeerrors.CodeLedgerWriteFailed,
			"failed to record dead letter", err)
	}
	return id, nil
}

// DeadLetters returns up to limit dead letters, newest first, with payloads
// decompressed.
func (l *Ledger) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, shard, category, code, reason, payload, created_at
		 FROM dead_letters ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		var compressed []byte
		if err := rows.Scan(&dl.ID, &dl.Shard, &dl.Category, &dl.Code, &dl.Reason, &compressed, &dl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		payload, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress dead letter %s: %w", dl.ID, err)
		}
		dl.Payload = payload
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Batches returns up to limit batch records, newest first.
func (l *Ledger) Batches(ctx context.Context, limit int) ([]BatchRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, shard, records_seen, records_failed, received_at
		 FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var b BatchRecord
		if err := rows.Scan(&b.ID, &b.Shard, &b.RecordsSeen, &b.RecordsFailed, &b.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch record: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
