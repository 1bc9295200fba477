package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-catalog/internal/catalog"
)

const sessionColumns = `id, root_path, files_scanned, files_added, files_updated, error_count,
	status, started_at, completed_at`

func scanSession(row rowScanner) (*catalog.ScanSession, error) {
	var s catalog.ScanSession
	var status string
	var started int64
	var completed sql.NullInt64

	if err := row.Scan(&s.ID, &s.RootPath, &s.FilesScanned, &s.FilesAdded, &s.FilesUpdated,
		&s.ErrorCount, &status, &started, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	s.Status = catalog.ScanStatus(status)
	s.StartedAt = fromUnix(started)
	s.CompletedAt = fromNullableUnix(completed)
	return &s, nil
}

// CreateScanSession inserts s, assigning an id and start time when unset.
func (d *Database) CreateScanSession(ctx context.Context, s *catalog.ScanSession) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_scan_session", start, err) }()

	if s.ID == "" {
		s.ID = catalog.NewID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if s.Status == "" {
		s.Status = catalog.ScanRunning
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO scan_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.RootPath, s.FilesScanned, s.FilesAdded, s.FilesUpdated, s.ErrorCount,
		string(s.Status), s.StartedAt.Unix(), nullableUnix(s.CompletedAt))
	return err
}

// UpdateScanSession writes the counters, status and completion time of s.
func (d *Database) UpdateScanSession(ctx context.Context, s *catalog.ScanSession) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_scan_session", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `
		UPDATE scan_sessions
		SET files_scanned = ?, files_added = ?, files_updated = ?, error_count = ?,
			status = ?, completed_at = ?
		WHERE id = ?
	`, s.FilesScanned, s.FilesAdded, s.FilesUpdated, s.ErrorCount,
		string(s.Status), nullableUnix(s.CompletedAt), s.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = catalog.ErrNotFound
	}
	return err
}

// GetScanSession returns one session, or catalog.ErrNotFound.
func (d *Database) GetScanSession(ctx context.Context, id string) (*catalog.ScanSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanSession(d.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM scan_sessions WHERE id = ?`, id))
}

// ListScanSessions returns the most recent sessions first. A limit of zero
// or less returns all of them.
func (d *Database) ListScanSessions(ctx context.Context, limit int) ([]catalog.ScanSession, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM scan_sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ScanSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
