package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver (cgo)
	_ "modernc.org/sqlite"          // SQLite driver (pure Go)

	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// defaultTimeout bounds every statement that is not given a tighter deadline.
const defaultTimeout = 5 * time.Second

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// Database is the SQLite implementation of catalog.Store.
type Database struct {
	db     *sql.DB
	path   string
	driver string
	// mu serializes write transactions.
	mu sync.Mutex
}

var _ catalog.Store = (*Database)(nil)

// New opens (creating if needed) the catalog at dbPath using the named
// driver. The parent directory must already exist and be writable.
func New(ctx context.Context, driver, dbPath string) (*Database, error) {
	logging.Info("Opening %s catalog at %s", driver, dbPath)
	checkPermissions(dbPath)

	dsn, err := dataSourceName(driver, dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, path: dbPath, driver: driver}
	if err := d.open(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			logging.Error("closing catalog after failed open: %v", cerr)
		}
		return nil, err
	}
	logging.Info("Catalog ready at %s", dbPath)
	return d, nil
}

func (d *Database) open(ctx context.Context) error {
	if err := d.Ping(ctx); err != nil {
		return fmt.Errorf("connect to catalog: %w", err)
	}
	if err := d.initialize(ctx); err != nil {
		return fmt.Errorf("initialize catalog schema: %w", err)
	}
	return nil
}

// dataSourceName builds a DSN enabling WAL, a busy timeout and foreign keys
// on every pooled connection. The two drivers spell pragmas differently.
func dataSourceName(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath), nil
	case DriverPure:
		return fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", dbPath), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS media_files (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		content_hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL,
		last_scanned_at INTEGER NOT NULL,
		faces_processed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_kind ON media_files(kind);
	CREATE INDEX IF NOT EXISTS idx_media_files_hash ON media_files(content_hash);

	CREATE TABLE IF NOT EXISTS scan_sessions (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		files_scanned INTEGER NOT NULL DEFAULT 0,
		files_added INTEGER NOT NULL DEFAULT 0,
		files_updated INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_scan_sessions_started ON scan_sessions(started_at);

	CREATE TABLE IF NOT EXISTS faces (
		id TEXT PRIMARY KEY,
		media_id TEXT NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
		embedding BLOB NOT NULL,
		bbox_x INTEGER NOT NULL,
		bbox_y INTEGER NOT NULL,
		bbox_width INTEGER NOT NULL,
		bbox_height INTEGER NOT NULL,
		confidence REAL NOT NULL,
		detected_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_faces_media ON faces(media_id);

	CREATE TABLE IF NOT EXISTS face_groups (
		id TEXT PRIMARY KEY,
		name TEXT,
		face_count INTEGER NOT NULL DEFAULT 0,
		anchor_embedding BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS face_group_members (
		face_id TEXT NOT NULL REFERENCES faces(id) ON DELETE CASCADE,
		group_id TEXT NOT NULL REFERENCES face_groups(id) ON DELETE CASCADE,
		similarity_score REAL NOT NULL,
		PRIMARY KEY (face_id, group_id)
	);

	CREATE INDEX IF NOT EXISTS idx_face_group_members_group ON face_group_members(group_id);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	err = d.runMigrations(ctx)
	return err
}

// migrations are column additions for catalogs created by older builds.
var migrations = []struct{ table, column, ddl string }{
	{"media_files", "faces_processed_at", `ALTER TABLE media_files ADD COLUMN faces_processed_at INTEGER`},
	{"face_groups", "anchor_embedding", `ALTER TABLE face_groups ADD COLUMN anchor_embedding BLOB`},
}

func (d *Database) runMigrations(ctx context.Context) error {
	for _, m := range migrations {
		var n int
		if err := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&n); err != nil {
			return fmt.Errorf("inspect %s.%s: %w", m.table, m.column, err)
		}
		if n > 0 {
			continue
		}
		logging.Info("Migrating catalog: adding %s.%s", m.table, m.column)
		if _, err := d.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (d *Database) Close() error { return d.db.Close() }

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Path returns the catalog file path.
func (d *Database) Path() string { return d.path }

// withTx runs fn inside a write transaction, committing on success.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Stats reports catalog row counts for the metrics collector.
func (d *Database) Stats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := metrics.Stats{MediaByKind: make(map[string]int)}

	rows, err := d.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM media_files GROUP BY kind`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err = rows.Scan(&kind, &n); err != nil {
			return stats, err
		}
		stats.MediaByKind[kind] = n
	}
	if err = rows.Err(); err != nil {
		return stats, err
	}

	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faces`).Scan(&stats.Faces); err != nil {
		return stats, err
	}
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM face_groups`).Scan(&stats.Groups); err != nil {
		return stats, err
	}
	stats.OpenConns = d.db.Stats().OpenConnections
	return stats, nil
}

// recordQuery observes one store operation. A miss is not an error.
func recordQuery(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		outcome = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(op, outcome).Inc()
	metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// checkPermissions logs why the catalog may not be writable and restores
// owner write permission on existing catalog files.
func checkPermissions(dbPath string) {
	dir := filepath.Dir(dbPath)
	info, err := os.Stat(dir)
	if err != nil {
		logging.Warn("Catalog directory %s: %v", dir, err)
		return
	}
	logging.Debug("Catalog directory %s (mode %v)", dir, info.Mode())

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode %v)", p, info.Mode())
		if err := os.Chmod(p, info.Mode().Perm()|0o200); err != nil {
			logging.Error("Cannot make %s writable: %v", p, err)
		}
	}
}
