// Package storage provides the SQLite-backed dedup checkpoint store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradewatch/gapsentry/internal/models"
)

// Storage wraps a SQLite database holding the alert checkpoint table.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/gapsentry/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "gapsentry", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS alert_checkpoint (
		symbol        TEXT NOT NULL,
		session_date  TEXT NOT NULL,
		id            TEXT NOT NULL,
		score         REAL NOT NULL,
		dispatched_at INTEGER NOT NULL,
		PRIMARY KEY (symbol, session_date)
	)`)
	return err
}

// CheckAndRecord inserts the record unless one already exists for its
// (symbol, session_date) key. INSERT OR IGNORE against the primary key makes
// the check and the write a single atomic statement, so two processes can
// never both claim the same alert.
func (s *Storage) CheckAndRecord(ctx context.Context, rec models.AlertRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alert_checkpoint
			(symbol, session_date, id, score, dispatched_at)
		VALUES (?,?,?,?,?)`,
		rec.Symbol, rec.SessionDate, rec.ID, rec.Score, rec.DispatchedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteBefore removes checkpoints whose session date sorts before the given
// one. Dates are ISO formatted, so lexicographic order is chronological.
func (s *Storage) DeleteBefore(ctx context.Context, sessionDate string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alert_checkpoint WHERE session_date < ?`, sessionDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale checkpoints: %w", err)
	}
	return res.RowsAffected()
}

// AlertsForDate returns the checkpoints recorded for one session date,
// newest first.
func (s *Storage) AlertsForDate(ctx context.Context, sessionDate string) ([]models.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, session_date, id, score, dispatched_at
		FROM alert_checkpoint WHERE session_date = ?
		ORDER BY dispatched_at DESC`, sessionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var dispatchedAtNano int64
		if err := rows.Scan(&rec.Symbol, &rec.SessionDate, &rec.ID, &rec.Score, &dispatchedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		rec.DispatchedAt = time.Unix(0, dispatchedAtNano)
		records = append(records, rec)
	}
	return records, rows.Err()
}
