package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradecore/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT    NOT NULL,
	checksum   BLOB    NOT NULL,
	updated_at INTEGER NOT NULL
)`

// ErrChecksumMismatch reports a stored snapshot whose bytes no longer match its checksum
var ErrChecksumMismatch = errors.New("snapshot checksum verification failed")

// SQLiteStore keeps one snapshot row with a sha256 checksum
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *core.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Round-trip before writing
	var check core.Snapshot
	if err := json.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}

	checksum := sha256.Sum256(data)
	query := `INSERT OR REPLACE INTO snapshot (id, data, checksum, updated_at) VALUES (1, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, string(data), checksum[:], time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to write snapshot to db: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot returns nil, nil when nothing was saved
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*core.Snapshot, error) {
	var (
		data     string
		checksum []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, checksum FROM snapshot WHERE id = 1`).Scan(&data, &checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot from db: %w", err)
	}

	computed := sha256.Sum256([]byte(data))
	if !bytes.Equal(checksum, computed[:]) {
		return nil, ErrChecksumMismatch
	}

	var snap core.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
