package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/embedding"
)

// ListGroupRepresentatives returns, for every group with members, the member
// with the highest similarity score. Ties go to the lowest face id. A named
// group without members is represented by its anchor embedding, with an
// empty FaceID and score 0.
func (d *Database) ListGroupRepresentatives(ctx context.Context) ([]catalog.Representative, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_representatives", start, err) }()

	rows, err := d.db.QueryContext(ctx, `
		SELECT r.group_id, r.face_id, r.similarity_score, f.embedding
		FROM (
			SELECT group_id, face_id, similarity_score,
				ROW_NUMBER() OVER (
					PARTITION BY group_id
					ORDER BY similarity_score DESC, face_id ASC
				) AS rn
			FROM face_group_members
		) r
		JOIN faces f ON f.id = r.face_id
		WHERE r.rn = 1
		UNION ALL
		SELECT id, '', 0.0, anchor_embedding
		FROM face_groups
		WHERE face_count = 0 AND anchor_embedding IS NOT NULL
		ORDER BY 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []catalog.Representative
	for rows.Next() {
		var rep catalog.Representative
		var blob []byte
		if err = rows.Scan(&rep.GroupID, &rep.FaceID, &rep.Score, &blob); err != nil {
			return nil, err
		}
		if rep.Embedding, err = embedding.Decode(blob); err != nil {
			return nil, fmt.Errorf("representative of group %s: %w", rep.GroupID, err)
		}
		reps = append(reps, rep)
	}
	err = rows.Err()
	return reps, err
}

// ReassignGroup makes groupID the only group of faceID. Groups the face
// leaves are recounted; unnamed ones are deleted when they end up empty.
func (d *Database) ReassignGroup(ctx context.Context, faceID, groupID string, score float64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reassign_group", start, err) }()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) > 0 FROM face_groups WHERE id = ?`, groupID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("group %s: %w", groupID, catalog.ErrNotFound)
		}

		previous, err := queryStrings(ctx, tx,
			`SELECT group_id FROM face_group_members WHERE face_id = ? AND group_id <> ?`, faceID, groupID)
		if err != nil {
			return err
		}

		if err := keepAnchors(ctx, tx, previous); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM face_group_members WHERE face_id = ?`, faceID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_group_members (face_id, group_id, similarity_score)
			VALUES (?, ?, ?)
		`, faceID, groupID, score); err != nil {
			return err
		}

		if err := recountGroups(ctx, tx, []string{groupID}, false); err != nil {
			return err
		}
		return recountGroups(ctx, tx, previous, true)
	})
	return err
}

// CreateGroup creates an empty group and returns its id.
func (d *Database) CreateGroup(ctx context.Context, name *string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_group", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := catalog.NewSortableID()
	now := time.Now().Unix()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO face_groups (id, name, face_count, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, id, nullableString(name), now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MergeGroup moves every membership of fromID into intoID, deletes fromID
// and recounts intoID. A face already in intoID keeps its existing score.
// An unnamed intoID takes fromID's name.
func (d *Database) MergeGroup(ctx context.Context, fromID, intoID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("merge_group", start, err) }()

	if fromID == intoID {
		err = fmt.Errorf("cannot merge group %s into itself", fromID)
		return err
	}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM face_groups WHERE id IN (?, ?)`, fromID, intoID).Scan(&n); err != nil {
			return err
		}
		if n != 2 {
			return fmt.Errorf("merge %s into %s: %w", fromID, intoID, catalog.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_group_members (face_id, group_id, similarity_score)
			SELECT face_id, ?, similarity_score FROM face_group_members WHERE group_id = ?
			ON CONFLICT (face_id, group_id) DO NOTHING
		`, intoID, fromID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE face_groups
			SET name = (SELECT name FROM face_groups WHERE id = ?)
			WHERE id = ? AND name IS NULL
		`, fromID, intoID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM face_group_members WHERE group_id = ?`, fromID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM face_groups WHERE id = ?`, fromID); err != nil {
			return err
		}
		return recountGroups(ctx, tx, []string{intoID}, false)
	})
	return err
}

// ListGroups returns all groups, largest first.
func (d *Database) ListGroups(ctx context.Context) ([]catalog.FaceGroup, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_groups", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, face_count, created_at, updated_at
		FROM face_groups
		ORDER BY face_count DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []catalog.FaceGroup
	for rows.Next() {
		var g catalog.FaceGroup
		var name sql.NullString
		var created, updated int64
		if err = rows.Scan(&g.ID, &name, &g.FaceCount, &created, &updated); err != nil {
			return nil, err
		}
		if name.Valid {
			g.Name = &name.String
		}
		g.CreatedAt = fromUnix(created)
		g.UpdatedAt = fromUnix(updated)
		groups = append(groups, g)
	}
	err = rows.Err()
	return groups, err
}

// RenameGroup sets or, with a nil name, clears a group's display name.
func (d *Database) RenameGroup(ctx context.Context, id string, name *string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rename_group", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx,
		`UPDATE face_groups SET name = ?, updated_at = ? WHERE id = ?`,
		nullableString(name), time.Now().Unix(), id)
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

// ListMemberships returns every membership ordered by face id.
func (d *Database) ListMemberships(ctx context.Context) ([]catalog.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT face_id, group_id, similarity_score
		FROM face_group_members
		ORDER BY face_id, group_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Membership
	for rows.Next() {
		var m catalog.Membership
		if err := rows.Scan(&m.FaceID, &m.GroupID, &m.SimilarityScore); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// keepAnchors records the current representative embedding of each named
// group in groupIDs. Call it before removing memberships so a named group
// left empty still attracts the faces of its person.
func keepAnchors(ctx context.Context, tx *sql.Tx, groupIDs []string) error {
	for _, id := range groupIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE face_groups
			SET anchor_embedding = COALESCE((
				SELECT f.embedding
				FROM face_group_members m
				JOIN faces f ON f.id = m.face_id
				WHERE m.group_id = ?
				ORDER BY m.similarity_score DESC, m.face_id ASC
				LIMIT 1
			), anchor_embedding)
			WHERE id = ? AND name IS NOT NULL
		`, id, id); err != nil {
			return fmt.Errorf("anchor group %s: %w", id, err)
		}
	}
	return nil
}

// recountGroups recomputes face_count for the given groups. With dropEmpty
// set, unnamed groups left without members are deleted; named groups stay.
func recountGroups(ctx context.Context, tx *sql.Tx, groupIDs []string, dropEmpty bool) error {
	now := time.Now().Unix()
	for _, id := range groupIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE face_groups
			SET face_count = (SELECT COUNT(*) FROM face_group_members WHERE group_id = ?),
				updated_at = ?
			WHERE id = ?
		`, id, now, id); err != nil {
			return fmt.Errorf("recount group %s: %w", id, err)
		}
		if dropEmpty {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM face_groups WHERE id = ? AND face_count = 0 AND name IS NULL`, id); err != nil {
				return fmt.Errorf("drop empty group %s: %w", id, err)
			}
		}
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
