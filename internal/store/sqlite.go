// Package store persists quota snapshots to SQLite so usage trends survive
// restarts and can be rendered by the CLI and the status API.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/models"
	_ "modernc.org/sqlite"
)

// SnapshotRow is one persisted model reading.
type SnapshotRow struct {
	ID           int64     `json:"id"`
	CollectedAt  time.Time `json:"collectedAt"`
	AccountEmail string    `json:"accountEmail,omitempty"`
	ModelID      string    `json:"modelId"`
	RemainingPct *float64  `json:"remainingPct,omitempty"`
	ResetInMs    *int64    `json:"resetInMs,omitempty"`
	Exhausted    bool      `json:"exhausted"`
}

// SnapshotStore is a SQLite-backed log of quota snapshots with WAL mode and
// time-based retention.
type SnapshotStore struct {
	mu sync.RWMutex
	db *sql.DB

	logger *logging.Logger

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSnapshotStore opens (or creates) the snapshot database with the default
// 30-day retention.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	return NewSnapshotStoreWithRetention(dbPath, 30)
}

// NewSnapshotStoreWithRetention opens the snapshot database with a custom
// retention window. A retention of 0 disables pruning.
func NewSnapshotStoreWithRetention(dbPath string, retentionDays int) (*SnapshotStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SnapshotStore{
		db:            db,
		logger:        logging.NewLogger(),
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	if retentionDays > 0 {
		s.startCleanup()
	}

	return s, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS snapshots (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					collected_at DATETIME NOT NULL,
					account_email TEXT NOT NULL DEFAULT '',
					model_id TEXT NOT NULL,
					remaining_pct REAL,
					reset_in_ms INTEGER,
					exhausted INTEGER NOT NULL DEFAULT 0
				);
				CREATE INDEX IF NOT EXISTS idx_snapshots_model ON snapshots(model_id, collected_at);
				CREATE INDEX IF NOT EXISTS idx_snapshots_collected ON snapshots(collected_at);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	return nil
}

// SaveSnapshot writes one row per model in the snapshot.
func (s *SnapshotStore) SaveSnapshot(snap *models.QuotaSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin snapshot insert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO snapshots (collected_at, account_email, model_id, remaining_pct, reset_in_ms, exhausted)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "prepare snapshot insert", Err: err}
	}
	defer stmt.Close()

	for _, m := range snap.Models {
		var pct interface{}
		if m.RemainingPercentage != nil {
			pct = *m.RemainingPercentage
		}
		var resetMs interface{}
		if m.TimeUntilResetMs != nil {
			resetMs = *m.TimeUntilResetMs
		}
		if _, err := stmt.Exec(snap.CollectedAt.UTC(), snap.AccountEmail, m.ModelID, pct, resetMs, boolToInt(m.IsExhausted)); err != nil {
			return &errors.ErrDatabaseQuery{Operation: "insert snapshot row", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit snapshot insert", Err: err}
	}
	return nil
}

// ListSnapshots returns recent rows, newest first, optionally filtered to one
// model.
func (s *SnapshotStore) ListSnapshots(modelID string, limit int) ([]SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, collected_at, account_email, model_id, remaining_pct, reset_in_ms, exhausted
		FROM snapshots
	`
	args := []interface{}{}
	if modelID != "" {
		query += " WHERE model_id = ?"
		args = append(args, modelID)
	}
	query += " ORDER BY collected_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list snapshots", Err: err}
	}
	defer rows.Close()

	var result []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var pct sql.NullFloat64
		var resetMs sql.NullInt64
		var exhausted int
		if err := rows.Scan(&r.ID, &r.CollectedAt, &r.AccountEmail, &r.ModelID, &pct, &resetMs, &exhausted); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan snapshot row", Err: err}
		}
		if pct.Valid {
			v := pct.Float64
			r.RemainingPct = &v
		}
		if resetMs.Valid {
			v := resetMs.Int64
			r.ResetInMs = &v
		}
		r.Exhausted = exhausted != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

// LatestByModel returns the most recent row per model.
func (s *SnapshotStore) LatestByModel() (map[string]SnapshotRow, error) {
	rows, err := s.ListSnapshots("", 500)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]SnapshotRow)
	for _, r := range rows {
		if _, ok := latest[r.ModelID]; !ok {
			latest[r.ModelID] = r
		}
	}
	return latest, nil
}

// PruneOlderThan removes rows older than the cutoff and returns how many.
func (s *SnapshotStore) PruneOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM snapshots WHERE collected_at < ?", cutoff.UTC())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "prune snapshots", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SnapshotStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(6 * time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupDone:
				return
			case <-s.cleanupTicker.C:
				cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
				if n, err := s.PruneOlderThan(cutoff); err != nil {
					s.logger.Warn("snapshot retention cleanup failed", "error", err.Error())
				} else if n > 0 {
					s.logger.Debug("pruned old snapshot rows", "rows", n)
				}
			}
		}
	}()
}

// Close stops background cleanup and closes the database.
func (s *SnapshotStore) Close() error {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
