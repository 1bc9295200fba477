package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/mediatypes"
)

const mediaColumns = `id, path, content_hash, kind, mime_type, size, width, height,
	created_at, modified_at, indexed_at, last_scanned_at, faces_processed_at`

func scanMedia(row rowScanner) (*catalog.MediaRecord, error) {
	var rec catalog.MediaRecord
	var kind string
	var created, modified, indexed, scanned int64
	var facesAt sql.NullInt64

	err := row.Scan(&rec.ID, &rec.Path, &rec.ContentHash, &kind, &rec.MimeType,
		&rec.Size, &rec.Width, &rec.Height,
		&created, &modified, &indexed, &scanned, &facesAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}

	rec.Kind = mediatypes.Kind(kind)
	rec.CreatedAt = fromUnix(created)
	rec.ModifiedAt = fromUnix(modified)
	rec.IndexedAt = fromUnix(indexed)
	rec.LastScannedAt = fromUnix(scanned)
	rec.FacesProcessedAt = fromNullableUnix(facesAt)
	return &rec, nil
}

// GetByPath returns the record stored for path, or catalog.ErrNotFound.
func (d *Database) GetByPath(ctx context.Context, path string) (*catalog.MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err := scanMedia(d.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media_files WHERE path = ?`, path))
	return rec, err
}

// GetByID returns the record with the given id, or catalog.ErrNotFound.
func (d *Database) GetByID(ctx context.Context, id string) (*catalog.MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media_by_id", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err := scanMedia(d.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media_files WHERE id = ?`, id))
	return rec, err
}

// Upsert inserts rec or updates the row already stored for rec.Path. The
// stored id, created_at and indexed_at survive updates and are copied back
// into rec. A content change clears faces_processed_at.
func (d *Database) Upsert(ctx context.Context, rec *catalog.MediaRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_media", start, err) }()

	if rec.ID == "" {
		rec.ID = catalog.NewID()
	}
	now := time.Now()
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = now
	}
	if rec.LastScannedAt.IsZero() {
		rec.LastScannedAt = now
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	var id string
	var created, indexed int64
	var facesAt sql.NullInt64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO media_files (id, path, content_hash, kind, mime_type, size, width, height,
			created_at, modified_at, indexed_at, last_scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			faces_processed_at = CASE
				WHEN media_files.content_hash = excluded.content_hash THEN media_files.faces_processed_at
				ELSE NULL
			END,
			content_hash = excluded.content_hash,
			kind = excluded.kind,
			mime_type = excluded.mime_type,
			size = excluded.size,
			width = excluded.width,
			height = excluded.height,
			modified_at = excluded.modified_at,
			last_scanned_at = excluded.last_scanned_at
		RETURNING id, created_at, indexed_at, faces_processed_at
	`,
		rec.ID, rec.Path, rec.ContentHash, string(rec.Kind), rec.MimeType, rec.Size, rec.Width, rec.Height,
		unixOrZero(rec.CreatedAt), unixOrZero(rec.ModifiedAt), unixOrZero(rec.IndexedAt), unixOrZero(rec.LastScannedAt),
	).Scan(&id, &created, &indexed, &facesAt)
	if err != nil {
		return err
	}

	rec.ID = id
	rec.CreatedAt = fromUnix(created)
	rec.IndexedAt = fromUnix(indexed)
	rec.FacesProcessedAt = fromNullableUnix(facesAt)
	return nil
}

// MarkFacesProcessed records that the faces of mediaID are current.
func (d *Database) MarkFacesProcessed(ctx context.Context, mediaID string, at time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_faces_processed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx,
		`UPDATE media_files SET faces_processed_at = ? WHERE id = ?`, at.Unix(), mediaID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = catalog.ErrNotFound
	}
	return err
}
