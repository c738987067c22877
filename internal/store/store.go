// Package store provides the local SQLite snapshot archive.
//
// The archive keeps recent raw batches so the pipeline can fall back to
// the last good snapshot when the upstream source is unreachable, and so
// operators can inspect what a past refresh contained.
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/msgroups/sessionvault/internal/session"
)

//go:embed schema.sql
var schemaFS embed.FS

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Store provides snapshot archive operations.
type Store struct {
	db     *sql.DB
	dbPath string
}

// SnapshotInfo describes one archived batch.
type SnapshotInfo struct {
	ID        int64
	FetchedAt time.Time
	RowCount  int
}

// Stats summarizes the archive.
type Stats struct {
	SnapshotCount int64
	RowCount      int64
	DatabaseSize  int64 // bytes on disk
}

// Open opens or creates the archive database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the archive tables if they do not exist.
func (s *Store) InitSchema() error {
	ddl, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.Exec(string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveSnapshot archives a raw batch and returns the snapshot ID.
func (s *Store) SaveSnapshot(records []session.RawRecord, fetchedAt time.Time) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO snapshots (fetched_at, row_count) VALUES (?, ?)",
			fetchedAt.UTC().Format(time.RFC3339), len(records),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("snapshot id: %w", err)
		}

		stmt, err := tx.Prepare("INSERT INTO snapshot_rows (snapshot_id, seq, payload) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare rows insert: %w", err)
		}
		defer stmt.Close()

		for seq, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal row %d: %w", seq, err)
			}
			if _, err := stmt.Exec(id, seq, string(payload)); err != nil {
				return fmt.Errorf("insert row %d: %w", seq, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LoadLatest returns the most recent archived batch in source order.
// A nil SnapshotInfo means the archive is empty.
func (s *Store) LoadLatest() ([]session.RawRecord, *SnapshotInfo, error) {
	info, err := s.latestInfo()
	if err != nil || info == nil {
		return nil, nil, err
	}

	records, err := s.loadRows(info.ID)
	if err != nil {
		return nil, nil, err
	}
	return records, info, nil
}

// LoadSnapshot returns one archived batch by ID in source order.
func (s *Store) LoadSnapshot(id int64) ([]session.RawRecord, error) {
	return s.loadRows(id)
}

func (s *Store) latestInfo() (*SnapshotInfo, error) {
	row := s.db.QueryRow("SELECT id, fetched_at, row_count FROM snapshots ORDER BY id DESC LIMIT 1")
	info, err := scanSnapshotInfo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return info, nil
}

func (s *Store) loadRows(snapshotID int64) ([]session.RawRecord, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM snapshot_rows WHERE snapshot_id = ? ORDER BY seq",
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	var records []session.RawRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := session.NewRawRecord()
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSnapshots returns archive entries, newest first.
func (s *Store) ListSnapshots(limit int) ([]SnapshotInfo, error) {
	q := "SELECT id, fetched_at, row_count FROM snapshots ORDER BY id DESC"
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		info, err := scanSnapshotInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		infos = append(infos, *info)
	}
	return infos, rows.Err()
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed. keep <= 0 removes nothing.
func (s *Store) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// GetStats summarizes the archive.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&stats.SnapshotCount); err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot_rows").Scan(&stats.RowCount); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	if fi, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = fi.Size()
	}
	return stats, nil
}

// withTx executes fn within a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshotInfo(row rowScanner) (*SnapshotInfo, error) {
	var (
		info    SnapshotInfo
		fetched string
	)
	if err := row.Scan(&info.ID, &fetched, &info.RowCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, fetched)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at %q: %w", fetched, err)
	}
	info.FetchedAt = t
	return &info, nil
}
