// Package journal provides an append-only SQLite archive of scored
// signals. It is write-only during a run: nothing is ever loaded back
// into detection state, so the engine itself keeps no state across
// restarts. The archive exists for later inspection.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/perpscope/perpscope/internal/models"
)

// Journal wraps the SQLite database holding the signal archive.
type Journal struct {
	db         *sql.DB
	maxSignals int
}

// Open opens or creates the archive at dbPath. An empty dbPath defaults
// to $TMPDIR/perpscope/signals.db.
func Open(dbPath string, maxSignals int) (*Journal, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "perpscope", "signals.db")
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

	j := &Journal{db: db, maxSignals: maxSignals}
	if err := j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			row_id        TEXT PRIMARY KEY,
			signal_id     TEXT NOT NULL,
			symbol        TEXT NOT NULL,
			type          TEXT NOT NULL,
			time_str      TEXT NOT NULL,
			score         REAL NOT NULL,
			bias          TEXT NOT NULL,
			high_quality  INTEGER NOT NULL,
			value         REAL,
			pct_change    REAL,
			ratio         REAL,
			detected_at   INTEGER NOT NULL,
			added_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_added_at ON signals(added_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record appends one signal to the archive and enforces the rotation cap.
func (j *Journal) Record(s models.Signal) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO signals
			(row_id, signal_id, symbol, type, time_str, score, bias,
			 high_quality, value, pct_change, ratio, detected_at, added_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), s.ID, s.Symbol, string(s.Type), s.Time, s.Score,
		s.Bias.String(), boolToInt(s.HighQuality),
		s.Value, s.PctChange, s.Ratio,
		s.DetectedAt.UnixNano(), s.AddedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM signals WHERE row_id NOT IN (
			SELECT row_id FROM signals ORDER BY added_at DESC LIMIT ?
		)`, j.maxSignals); err != nil {
		return fmt.Errorf("failed to enforce signal cap: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit archived signals, newest insertion first.
func (j *Journal) Recent(limit int) ([]models.Signal, error) {
	rows, err := j.db.Query(`
		SELECT signal_id, symbol, type, time_str, score, bias,
		       high_quality, value, pct_change, ratio, detected_at, added_at
		FROM signals ORDER BY added_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var s models.Signal
		var typeStr, biasStr string
		var highQuality int
		var detectedAtNano, addedAtNano int64

		err := rows.Scan(
			&s.ID, &s.Symbol, &typeStr, &s.Time, &s.Score, &biasStr,
			&highQuality, &s.Value, &s.PctChange, &s.Ratio,
			&detectedAtNano, &addedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		s.Type = models.SignalType(typeStr)
		s.Bias = parseBias(biasStr)
		s.HighQuality = highQuality != 0
		s.DetectedAt = time.Unix(0, detectedAtNano)
		s.AddedAt = time.Unix(0, addedAtNano)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

func parseBias(s string) models.Bias {
	switch s {
	case "long":
		return models.BiasLong
	case "short":
		return models.BiasShort
	default:
		return models.BiasNone
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
