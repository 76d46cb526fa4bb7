package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the mapping table and reconcile history in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ mapping.Store       = (*SQLiteStore)(nil)
	_ mapping.RunRecorder = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer of a migration file name ("001_init.sql" is 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Load returns the mappings in their saved order.
func (s *SQLiteStore) Load(ctx context.Context) ([]mapping.Mapping, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT canonical_title, source_title, aliases_json, catalog_id
		 FROM title_mappings
		 ORDER BY position ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]mapping.Mapping, 0)
	for rows.Next() {
		var (
			item        mapping.Mapping
			aliasesJSON string
			catalogID   sql.NullInt64
		)
		if err := rows.Scan(&item.CanonicalTitle, &item.SourceTitle, &aliasesJSON, &catalogID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aliasesJSON), &item.Aliases); err != nil {
			return nil, fmt.Errorf("decode aliases of %q: %w", item.CanonicalTitle, err)
		}
		if item.Aliases == nil {
			item.Aliases = []string{}
		}
		if catalogID.Valid {
			id := catalogID.Int64
			item.CatalogID = &id
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save replaces the stored table in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, mappings []mapping.Mapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM title_mappings`); err != nil {
		return err
	}
	for i, m := range mappings {
		aliases := m.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		aliasesJSON, err := json.Marshal(aliases)
		if err != nil {
			return err
		}
		var catalogID sql.NullInt64
		if m.CatalogID != nil {
			catalogID = sql.NullInt64{Int64: *m.CatalogID, Valid: true}
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO title_mappings (position, canonical_title, source_title, aliases_json, catalog_id)
			 VALUES (?, ?, ?, ?, ?)`,
			i,
			m.CanonicalTitle,
			m.SourceTitle,
			string(aliasesJSON),
			catalogID,
		); err != nil {
			return fmt.Errorf("insert mapping %q: %w", m.CanonicalTitle, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run mapping.ReconcileRun) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO reconcile_runs (
			id, trigger_name, started_at, finished_at, resolved, unresolved, persisted, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at=excluded.finished_at,
			resolved=excluded.resolved,
			unresolved=excluded.unresolved,
			persisted=excluded.persisted,
			error=excluded.error`,
		run.ID,
		run.Trigger,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Resolved,
		run.Unresolved,
		boolToInt(run.Persisted),
		run.Error,
	)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]mapping.ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, trigger_name, started_at, finished_at, resolved, unresolved, persisted, error
		 FROM reconcile_runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]mapping.ReconcileRun, 0)
	for rows.Next() {
		var (
			run       mapping.ReconcileRun
			persisted int
		)
		if err := rows.Scan(
			&run.ID,
			&run.Trigger,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Resolved,
			&run.Unresolved,
			&persisted,
			&run.Error,
		); err != nil {
			return nil, err
		}
		run.Persisted = persisted != 0
		ret = append(ret, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
