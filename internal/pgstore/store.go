package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"media-catalog/internal/catalog"
	"media-catalog/internal/embedding"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// Store is the Postgres implementation of catalog.Store. Face embeddings
// live in a pgvector column.
type Store struct {
	pool *pgxpool.Pool
}

var _ catalog.Store = (*Store)(nil)

// New connects to dsn and creates the schema when missing.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	logging.Info("Postgres catalog ready (max conns %d)", poolCfg.MaxConns)
	return s, nil
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS media_files (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL,
	kind TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size BIGINT NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ,
	modified_at TIMESTAMPTZ,
	indexed_at TIMESTAMPTZ NOT NULL,
	last_scanned_at TIMESTAMPTZ NOT NULL,
	faces_processed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scan_sessions (
	id TEXT PRIMARY KEY,
	root_path TEXT NOT NULL,
	files_scanned INTEGER NOT NULL DEFAULT 0,
	files_added INTEGER NOT NULL DEFAULT 0,
	files_updated INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS faces (
	id TEXT PRIMARY KEY,
	media_id TEXT NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
	embedding vector NOT NULL,
	bbox_x INTEGER NOT NULL,
	bbox_y INTEGER NOT NULL,
	bbox_width INTEGER NOT NULL,
	bbox_height INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faces_media ON faces(media_id);

CREATE TABLE IF NOT EXISTS face_groups (
	id TEXT PRIMARY KEY,
	name TEXT,
	face_count INTEGER NOT NULL DEFAULT 0,
	anchor_embedding vector,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE face_groups ADD COLUMN IF NOT EXISTS anchor_embedding vector;

CREATE TABLE IF NOT EXISTS face_group_members (
	face_id TEXT NOT NULL REFERENCES faces(id) ON DELETE CASCADE,
	group_id TEXT NOT NULL REFERENCES face_groups(id) ON DELETE CASCADE,
	similarity_score DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (face_id, group_id)
);

CREATE INDEX IF NOT EXISTS idx_face_group_members_group ON face_group_members(group_id);
`

func (s *Store) migrate(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	recordQuery("initialize_schema", start, err)
	return err
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrNotFound
	}
	return err
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Media ---

const mediaColumns = `id, path, content_hash, kind, mime_type, size, width, height,
	created_at, modified_at, indexed_at, last_scanned_at, faces_processed_at`

func scanMedia(row pgx.Row) (*catalog.MediaRecord, error) {
	var rec catalog.MediaRecord
	var kind string
	var created, modified *time.Time
	err := row.Scan(&rec.ID, &rec.Path, &rec.ContentHash, &kind, &rec.MimeType,
		&rec.Size, &rec.Width, &rec.Height,
		&created, &modified, &rec.IndexedAt, &rec.LastScannedAt, &rec.FacesProcessedAt)
	if err != nil {
		return nil, notFound(err)
	}
	rec.Kind = mediatypes.Kind(kind)
	rec.CreatedAt = derefTime(created)
	rec.ModifiedAt = derefTime(modified)
	return &rec, nil
}

// GetByPath returns the record stored for path.
func (s *Store) GetByPath(ctx context.Context, path string) (*catalog.MediaRecord, error) {
	start := time.Now()
	rec, err := scanMedia(s.pool.QueryRow(ctx,
		`SELECT `+mediaColumns+` FROM media_files WHERE path = $1`, path))
	recordQuery("get_media_by_path", start, err)
	return rec, err
}

// GetByID returns the record with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*catalog.MediaRecord, error) {
	start := time.Now()
	rec, err := scanMedia(s.pool.QueryRow(ctx,
		`SELECT `+mediaColumns+` FROM media_files WHERE id = $1`, id))
	recordQuery("get_media_by_id", start, err)
	return rec, err
}

// Upsert inserts or updates rec by path and copies the stored identity back.
func (s *Store) Upsert(ctx context.Context, rec *catalog.MediaRecord) error {
	start := time.Now()
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

	var created *time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO media_files (id, path, content_hash, kind, mime_type, size, width, height,
			created_at, modified_at, indexed_at, last_scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (path) DO UPDATE SET
			faces_processed_at = CASE
				WHEN media_files.content_hash = EXCLUDED.content_hash THEN media_files.faces_processed_at
				ELSE NULL
			END,
			content_hash = EXCLUDED.content_hash,
			kind = EXCLUDED.kind,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			modified_at = EXCLUDED.modified_at,
			last_scanned_at = EXCLUDED.last_scanned_at
		RETURNING id, created_at, indexed_at, faces_processed_at
	`, rec.ID, rec.Path, rec.ContentHash, string(rec.Kind), rec.MimeType, rec.Size, rec.Width, rec.Height,
		timePtr(rec.CreatedAt), timePtr(rec.ModifiedAt), rec.IndexedAt, rec.LastScannedAt,
	).Scan(&rec.ID, &created, &rec.IndexedAt, &rec.FacesProcessedAt)
	rec.CreatedAt = derefTime(created)
	recordQuery("upsert_media", start, err)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Path, err)
	}
	return nil
}

// MarkFacesProcessed records that the faces of mediaID are current.
func (s *Store) MarkFacesProcessed(ctx context.Context, mediaID string, at time.Time) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `UPDATE media_files SET faces_processed_at = $1 WHERE id = $2`, at, mediaID)
	if err == nil && tag.RowsAffected() == 0 {
		err = catalog.ErrNotFound
	}
	recordQuery("mark_faces_processed", start, err)
	return err
}

// --- Faces ---

const faceColumns = `id, media_id, embedding, bbox_x, bbox_y, bbox_width, bbox_height, confidence, detected_at`

func (s *Store) queryFaces(ctx context.Context, query string, args ...any) ([]catalog.Face, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []catalog.Face
	for rows.Next() {
		var f catalog.Face
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.MediaID, &vec, &f.BBox.X, &f.BBox.Y, &f.BBox.Width, &f.BBox.Height,
			&f.Confidence, &f.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = embedding.Vector(vec.Slice())
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// GetFaces returns the faces of one media record ordered by id.
func (s *Store) GetFaces(ctx context.Context, mediaID string) ([]catalog.Face, error) {
	start := time.Now()
	faces, err := s.queryFaces(ctx, `SELECT `+faceColumns+` FROM faces WHERE media_id = $1 ORDER BY id`, mediaID)
	recordQuery("get_faces", start, err)
	return faces, err
}

// InsertFace stores one face, assigning an id when none is set.
func (s *Store) InsertFace(ctx context.Context, face *catalog.Face) error {
	start := time.Now()
	if face.ID == "" {
		face.ID = catalog.NewSortableID()
	}
	if face.DetectedAt.IsZero() {
		face.DetectedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO faces (`+faceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		face.ID, face.MediaID, pgvector.NewVector(face.Embedding),
		face.BBox.X, face.BBox.Y, face.BBox.Width, face.BBox.Height, face.Confidence, face.DetectedAt)
	recordQuery("insert_face", start, err)
	return err
}

// DeleteFaces removes the faces of mediaID, recounting affected groups and
// dropping unnamed ones left empty. Named groups keep an anchor embedding.
func (s *Store) DeleteFaces(ctx context.Context, mediaID string) error {
	start := time.Now()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		groupIDs, err := collectStrings(ctx, tx, `
			SELECT DISTINCT m.group_id FROM face_group_members m
			JOIN faces f ON f.id = m.face_id WHERE f.media_id = $1`, mediaID)
		if err != nil {
			return err
		}
		if err := keepAnchors(ctx, tx, groupIDs); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM face_group_members WHERE face_id IN (SELECT id FROM faces WHERE media_id = $1)`, mediaID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM faces WHERE media_id = $1`, mediaID); err != nil {
			return err
		}
		return recount(ctx, tx, groupIDs, true)
	})
	recordQuery("delete_faces", start, err)
	return err
}

// ListUngroupedFaces returns faces with no membership ordered by id.
func (s *Store) ListUngroupedFaces(ctx context.Context) ([]catalog.Face, error) {
	start := time.Now()
	faces, err := s.queryFaces(ctx, `
		SELECT `+faceColumns+` FROM faces f
		WHERE NOT EXISTS (SELECT 1 FROM face_group_members m WHERE m.face_id = f.id)
		ORDER BY f.id`)
	recordQuery("list_ungrouped_faces", start, err)
	return faces, err
}

// --- Groups ---

// ListGroupRepresentatives returns the highest-scoring member of every
// group, lowest face id on ties, ordered by group id. Empty named groups are
// represented by their anchor embedding with an empty face id.
func (s *Store) ListGroupRepresentatives(ctx context.Context) ([]catalog.Representative, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT group_id, face_id, score, embedding FROM (
			SELECT DISTINCT ON (m.group_id) m.group_id, m.face_id, m.similarity_score AS score, f.embedding
			FROM face_group_members m
			JOIN faces f ON f.id = m.face_id
			ORDER BY m.group_id, m.similarity_score DESC, m.face_id ASC
		) best
		UNION ALL
		SELECT id, '', 0, anchor_embedding FROM face_groups
		WHERE face_count = 0 AND anchor_embedding IS NOT NULL
		ORDER BY 1`)
	if err != nil {
		recordQuery("list_representatives", start, err)
		return nil, err
	}
	defer rows.Close()

	var reps []catalog.Representative
	for rows.Next() {
		var rep catalog.Representative
		var vec pgvector.Vector
		if err = rows.Scan(&rep.GroupID, &rep.FaceID, &rep.Score, &vec); err != nil {
			break
		}
		rep.Embedding = embedding.Vector(vec.Slice())
		reps = append(reps, rep)
	}
	if err == nil {
		err = rows.Err()
	}
	recordQuery("list_representatives", start, err)
	return reps, err
}

// ReassignGroup makes groupID the only group of faceID.
func (s *Store) ReassignGroup(ctx context.Context, faceID, groupID string, score float64) error {
	start := time.Now()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM face_groups WHERE id = $1)`, groupID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("group %s: %w", groupID, catalog.ErrNotFound)
		}
		previous, err := collectStrings(ctx, tx,
			`SELECT group_id FROM face_group_members WHERE face_id = $1 AND group_id <> $2`, faceID, groupID)
		if err != nil {
			return err
		}
		if err := keepAnchors(ctx, tx, previous); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM face_group_members WHERE face_id = $1`, faceID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO face_group_members (face_id, group_id, similarity_score) VALUES ($1, $2, $3)`,
			faceID, groupID, score); err != nil {
			return err
		}
		if err := recount(ctx, tx, []string{groupID}, false); err != nil {
			return err
		}
		return recount(ctx, tx, previous, true)
	})
	recordQuery("reassign_group", start, err)
	return err
}

// CreateGroup creates an empty group and returns its id.
func (s *Store) CreateGroup(ctx context.Context, name *string) (string, error) {
	start := time.Now()
	id := catalog.NewSortableID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_groups (id, name, face_count, created_at, updated_at) VALUES ($1, $2, 0, now(), now())`,
		id, name)
	recordQuery("create_group", start, err)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MergeGroup moves every membership of fromID into intoID and deletes fromID.
// An unnamed intoID takes fromID's name.
func (s *Store) MergeGroup(ctx context.Context, fromID, intoID string) error {
	if fromID == intoID {
		return fmt.Errorf("cannot merge group %s into itself", fromID)
	}
	start := time.Now()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM face_groups WHERE id IN ($1, $2)`, fromID, intoID).Scan(&n); err != nil {
			return err
		}
		if n != 2 {
			return fmt.Errorf("merge %s into %s: %w", fromID, intoID, catalog.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO face_group_members (face_id, group_id, similarity_score)
			SELECT face_id, $1, similarity_score FROM face_group_members WHERE group_id = $2
			ON CONFLICT (face_id, group_id) DO NOTHING`, intoID, fromID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE face_groups SET name = (SELECT name FROM face_groups WHERE id = $1)
			WHERE id = $2 AND name IS NULL`, fromID, intoID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM face_groups WHERE id = $1`, fromID); err != nil {
			return err
		}
		return recount(ctx, tx, []string{intoID}, false)
	})
	recordQuery("merge_group", start, err)
	return err
}

// ListGroups returns all groups, largest first.
func (s *Store) ListGroups(ctx context.Context) ([]catalog.FaceGroup, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, face_count, created_at, updated_at FROM face_groups ORDER BY face_count DESC, id`)
	if err != nil {
		recordQuery("list_groups", start, err)
		return nil, err
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.FaceGroup, error) {
		var g catalog.FaceGroup
		err := row.Scan(&g.ID, &g.Name, &g.FaceCount, &g.CreatedAt, &g.UpdatedAt)
		return g, err
	})
	recordQuery("list_groups", start, err)
	return groups, err
}

// RenameGroup sets or clears a group's name.
func (s *Store) RenameGroup(ctx context.Context, id string, name *string) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `UPDATE face_groups SET name = $1, updated_at = now() WHERE id = $2`, name, id)
	if err == nil && tag.RowsAffected() == 0 {
		err = catalog.ErrNotFound
	}
	recordQuery("rename_group", start, err)
	return err
}

// ListMemberships returns every membership ordered by face id.
func (s *Store) ListMemberships(ctx context.Context) ([]catalog.Membership, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT face_id, group_id, similarity_score FROM face_group_members ORDER BY face_id, group_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Membership, error) {
		var m catalog.Membership
		err := row.Scan(&m.FaceID, &m.GroupID, &m.SimilarityScore)
		return m, err
	})
}

// keepAnchors stores the current best member embedding on each named group
// in groupIDs before memberships are removed.
func keepAnchors(ctx context.Context, tx pgx.Tx, groupIDs []string) error {
	if len(groupIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE face_groups g
		SET anchor_embedding = COALESCE((
			SELECT f.embedding FROM face_group_members m
			JOIN faces f ON f.id = m.face_id
			WHERE m.group_id = g.id
			ORDER BY m.similarity_score DESC, m.face_id ASC
			LIMIT 1
		), g.anchor_embedding)
		WHERE g.id = ANY($1) AND g.name IS NOT NULL`, groupIDs); err != nil {
		return fmt.Errorf("anchor groups: %w", err)
	}
	return nil
}

func recount(ctx context.Context, tx pgx.Tx, groupIDs []string, dropEmpty bool) error {
	if len(groupIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE face_groups g
		SET face_count = (SELECT COUNT(*) FROM face_group_members m WHERE m.group_id = g.id),
			updated_at = now()
		WHERE g.id = ANY($1)`, groupIDs); err != nil {
		return fmt.Errorf("recount groups: %w", err)
	}
	if dropEmpty {
		if _, err := tx.Exec(ctx, `DELETE FROM face_groups WHERE id = ANY($1) AND face_count = 0 AND name IS NULL`, groupIDs); err != nil {
			return fmt.Errorf("drop empty groups: %w", err)
		}
	}
	return nil
}

func collectStrings(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// --- Sessions ---

const sessionColumns = `id, root_path, files_scanned, files_added, files_updated, error_count,
	status, started_at, completed_at`

func scanSession(row pgx.Row) (*catalog.ScanSession, error) {
	var sess catalog.ScanSession
	var status string
	if err := row.Scan(&sess.ID, &sess.RootPath, &sess.FilesScanned, &sess.FilesAdded, &sess.FilesUpdated,
		&sess.ErrorCount, &status, &sess.StartedAt, &sess.CompletedAt); err != nil {
		return nil, notFound(err)
	}
	sess.Status = catalog.ScanStatus(status)
	return &sess, nil
}

// CreateScanSession inserts sess, filling id, status and start time.
func (s *Store) CreateScanSession(ctx context.Context, sess *catalog.ScanSession) error {
	start := time.Now()
	if sess.ID == "" {
		sess.ID = catalog.NewID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Status == "" {
		sess.Status = catalog.ScanRunning
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO scan_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, sess.RootPath, sess.FilesScanned, sess.FilesAdded, sess.FilesUpdated, sess.ErrorCount,
		string(sess.Status), sess.StartedAt, sess.CompletedAt)
	recordQuery("create_scan_session", start, err)
	return err
}

// UpdateScanSession writes counters, status and completion time.
func (s *Store) UpdateScanSession(ctx context.Context, sess *catalog.ScanSession) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `
		UPDATE scan_sessions
		SET files_scanned = $1, files_added = $2, files_updated = $3, error_count = $4,
			status = $5, completed_at = $6
		WHERE id = $7`,
		sess.FilesScanned, sess.FilesAdded, sess.FilesUpdated, sess.ErrorCount,
		string(sess.Status), sess.CompletedAt, sess.ID)
	if err == nil && tag.RowsAffected() == 0 {
		err = catalog.ErrNotFound
	}
	recordQuery("update_scan_session", start, err)
	return err
}

// GetScanSession returns one session.
func (s *Store) GetScanSession(ctx context.Context, id string) (*catalog.ScanSession, error) {
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM scan_sessions WHERE id = $1`, id))
}

// ListScanSessions returns the most recent sessions first; limit <= 0
// returns all.
func (s *Store) ListScanSessions(ctx context.Context, limit int) ([]catalog.ScanSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM scan_sessions ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ScanSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Stats reports row counts for the metrics collector.
func (s *Store) Stats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	stats := metrics.Stats{MediaByKind: make(map[string]int)}

	rows, err := s.pool.Query(ctx, `SELECT kind, COUNT(*) FROM media_files GROUP BY kind`)
	if err != nil {
		recordQuery("stats", start, err)
		return stats, err
	}
	for rows.Next() {
		var kind string
		var n int
		if err = rows.Scan(&kind, &n); err != nil {
			break
		}
		stats.MediaByKind[kind] = n
	}
	rows.Close()
	if err == nil {
		err = rows.Err()
	}
	if err == nil {
		err = s.pool.QueryRow(ctx,
			`SELECT (SELECT COUNT(*) FROM faces), (SELECT COUNT(*) FROM face_groups)`,
		).Scan(&stats.Faces, &stats.Groups)
	}
	stats.OpenConns = int(s.pool.Stat().TotalConns())
	recordQuery("stats", start, err)
	return stats, err
}
