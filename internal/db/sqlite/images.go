package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

const imageColumns = `id, path, name, size, uploaded_at, created_at, modified_at, edited_at,
	width, height, has_hashes, hash_average, hash_difference, hash_wavelet, hash_perceptual,
	hash_color, buckets`

// SaveImages inserts or replaces records in one transaction.
func (s *Store) SaveImages(ctx context.Context, records []*image.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return &db.Error{Op: db.OpInsert, Err: err}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		rec := r.Clone()
		rec.Normalize()
		if err := deleteImage(ctx, tx, rec.ID); err != nil {
			return err
		}
		if err := insertImage(ctx, tx, rec); err != nil {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("image %s: %w", rec.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

// DeleteImages removes records and their tag, scope and score rows.
func (s *Store) DeleteImages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if err := deleteImage(ctx, tx, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// LoadImages returns the records for ids in request order, skipping unknown ids.
func (s *Store) LoadImages(ctx context.Context, ids []string) ([]*image.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inList(ids)

	byID := make(map[string]*image.Record, len(ids))
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	for rows.Next() {
		r, err := scanImage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		byID[r.ID] = r
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if err := s.loadChildren(ctx, byID, in, args); err != nil {
		return nil, err
	}

	out := make([]*image.Record, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			r.Tags = filter.NewTagSet(r.Tags...)
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) loadChildren(ctx context.Context, byID map[string]*image.Record, in string, args []any) error {
	err := s.eachPair(ctx, `SELECT image_id, tag FROM image_tags WHERE image_id IN (`+in+`)`, args,
		func(r *image.Record, v string) { r.Tags = append(r.Tags, v) }, byID)
	if err != nil {
		return err
	}
	err = s.eachPair(ctx, `SELECT image_id, scope_id FROM image_scopes WHERE image_id IN (`+in+`) ORDER BY scope_id`, args,
		func(r *image.Record, v string) { r.Scopes = append(r.Scopes, v) }, byID)
	if err != nil {
		return err
	}
	if err := s.eachScore(ctx, "image_ratings", in, args, byID, func(r *image.Record) map[string]float64 {
		if r.Ratings == nil {
			r.Ratings = make(map[string]float64)
		}
		return r.Ratings
	}); err != nil {
		return err
	}
	return s.eachScore(ctx, "image_colors", in, args, byID, func(r *image.Record) map[string]float64 {
		if r.Colors == nil {
			r.Colors = make(map[string]float64)
		}
		return r.Colors
	})
}

func (s *Store) eachPair(
	ctx context.Context, query string, args []any,
	fn func(r *image.Record, v string), byID map[string]*image.Record,
) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return &db.Error{Op: db.OpSelect, Err: err}
	}
	for rows.Next() {
		var id, v string
		if err := rows.Scan(&id, &v); err != nil {
			_ = rows.Close()
			return &db.Error{Op: db.OpSelect, Err: err}
		}
		if r, ok := byID[id]; ok {
			fn(r, v)
		}
	}
	return closeRows(rows)
}

func (s *Store) eachScore(
	ctx context.Context, table, in string, args []any,
	byID map[string]*image.Record, target func(r *image.Record) map[string]float64,
) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_id, name, value FROM `+table+` WHERE image_id IN (`+in+`)`, args...)
	if err != nil {
		return &db.Error{Op: db.OpSelect, Err: err}
	}
	for rows.Next() {
		var (
			id, name string
			value    float64
		)
		if err := rows.Scan(&id, &name, &value); err != nil {
			_ = rows.Close()
			return &db.Error{Op: db.OpSelect, Err: err}
		}
		if r, ok := byID[id]; ok {
			target(r)[name] = value
		}
	}
	return closeRows(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*image.Record, error) {
	var (
		r         image.Record
		times     [4]int64
		hasHashes int64
		h         [5]int64
		buckets   []byte
	)
	err := row.Scan(&r.ID, &r.Path, &r.Name, &r.Size, &times[0], &times[1], &times[2], &times[3],
		&r.Width, &r.Height, &hasHashes, &h[0], &h[1], &h[2], &h[3], &h[4], &buckets)
	if err != nil {
		return nil, err
	}
	r.UploadedAt = time.Unix(times[0], 0)
	r.CreatedAt = time.Unix(times[1], 0)
	r.ModifiedAt = time.Unix(times[2], 0)
	r.EditedAt = time.Unix(times[3], 0)
	if hasHashes != 0 {
		r.Hashes = &similarity.Hashes{
			Average:    fromBits(h[0]),
			Difference: fromBits(h[1]),
			Wavelet:    fromBits(h[2]),
			Perceptual: fromBits(h[3]),
			Color:      fromBits(h[4]),
		}
	}
	if len(buckets) > 0 {
		r.Buckets = buckets
	}
	return &r, nil
}

func insertImage(ctx context.Context, tx *sql.Tx, r *image.Record) error {
	var h similarity.Hashes
	hasHashes := 0
	if r.Hashes != nil {
		h = *r.Hashes
		hasHashes = 1
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`, tag_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Path, r.Name, r.Size,
		r.UploadedAt.Unix(), r.CreatedAt.Unix(), r.ModifiedAt.Unix(), r.EditedAt.Unix(),
		r.Width, r.Height, hasHashes,
		toBits(h.Average), toBits(h.Difference), toBits(h.Wavelet), toBits(h.Perceptual), toBits(h.Color),
		r.Buckets, r.TagCount(),
	)
	if err != nil {
		return err
	}

	for _, t := range r.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO image_tags (image_id, tag) VALUES (?, ?)`, r.ID, t); err != nil {
			return err
		}
	}
	for _, sc := range r.Scopes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO image_scopes (image_id, scope_id) VALUES (?, ?)`, r.ID, sc); err != nil {
			return err
		}
	}
	for name, v := range r.Ratings {
		if _, err := tx.ExecContext(ctx, `INSERT INTO image_ratings (image_id, name, value) VALUES (?, ?, ?)`, r.ID, name, v); err != nil {
			return err
		}
	}
	for name, v := range r.Colors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO image_colors (image_id, name, value) VALUES (?, ?, ?)`, r.ID, name, v); err != nil {
			return err
		}
	}
	return nil
}

// SQLite integers are signed; hashes are stored as their raw bit pattern.
func toBits(u uint64) int64 { return int64(u) } //nolint:gosec // bit pattern round trip

func fromBits(i int64) uint64 { return uint64(i) } //nolint:gosec // bit pattern round trip

func deleteImage(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"image_tags", "image_scopes", "image_ratings", "image_colors"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE image_id = ?`, id); err != nil {
			return &db.Error{Op: db.OpDelete, Err: err}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

func inList(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return &db.Error{Op: db.OpSelect, Err: err}
	}
	if err := rows.Close(); err != nil {
		return &db.Error{Op: db.OpSelect, Err: err}
	}
	return nil
}
