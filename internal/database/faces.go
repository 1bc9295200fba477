package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/embedding"
)

const faceColumns = `id, media_id, embedding, bbox_x, bbox_y, bbox_width, bbox_height, confidence, detected_at`

func scanFace(row rowScanner) (catalog.Face, error) {
	var f catalog.Face
	var blob []byte
	var detected int64
	if err := row.Scan(&f.ID, &f.MediaID, &blob, &f.BBox.X, &f.BBox.Y, &f.BBox.Width, &f.BBox.Height,
		&f.Confidence, &detected); err != nil {
		return f, err
	}
	vec, err := embedding.Decode(blob)
	if err != nil {
		return f, fmt.Errorf("face %s: %w", f.ID, err)
	}
	f.Embedding = vec
	f.DetectedAt = fromUnix(detected)
	return f, nil
}

func (d *Database) queryFaces(ctx context.Context, query string, args ...any) ([]catalog.Face, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []catalog.Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// GetFaces returns the faces of one media record ordered by id.
func (d *Database) GetFaces(ctx context.Context, mediaID string) ([]catalog.Face, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_faces", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	faces, err := d.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE media_id = ? ORDER BY id`, mediaID)
	return faces, err
}

// InsertFace stores one face, assigning a sortable id when none is set.
func (d *Database) InsertFace(ctx context.Context, face *catalog.Face) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_face", start, err) }()

	if face.ID == "" {
		face.ID = catalog.NewSortableID()
	}
	if face.DetectedAt.IsZero() {
		face.DetectedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO faces (`+faceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, face.ID, face.MediaID, embedding.Encode(face.Embedding),
		face.BBox.X, face.BBox.Y, face.BBox.Width, face.BBox.Height,
		face.Confidence, face.DetectedAt.Unix())
	return err
}

// DeleteFaces removes every face of mediaID and its memberships and recounts
// the groups those faces belonged to. Unnamed groups left empty are deleted;
// named ones keep an anchor embedding and stay.
func (d *Database) DeleteFaces(ctx context.Context, mediaID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_faces", start, err) }()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		groupIDs, err := queryStrings(ctx, tx, `
			SELECT DISTINCT m.group_id
			FROM face_group_members m
			JOIN faces f ON f.id = m.face_id
			WHERE f.media_id = ?
		`, mediaID)
		if err != nil {
			return err
		}

		if err := keepAnchors(ctx, tx, groupIDs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM face_group_members
			WHERE face_id IN (SELECT id FROM faces WHERE media_id = ?)
		`, mediaID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE media_id = ?`, mediaID); err != nil {
			return err
		}

		return recountGroups(ctx, tx, groupIDs, true)
	})
	return err
}

// ListUngroupedFaces returns faces with no membership ordered by id.
func (d *Database) ListUngroupedFaces(ctx context.Context) ([]catalog.Face, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_ungrouped_faces", start, err) }()

	faces, err := d.queryFaces(ctx, `
		SELECT `+faceColumns+`
		FROM faces f
		WHERE NOT EXISTS (SELECT 1 FROM face_group_members m WHERE m.face_id = f.id)
		ORDER BY f.id
	`)
	return faces, err
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
