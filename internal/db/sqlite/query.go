package sqlite

import (
	"context"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// FindImages returns matching ids in the requested order and window.
func (s *Store) FindImages(ctx context.Context, q *db.ImageQuery) ([]string, error) {
	where, args := buildWhere(q)
	order, orderArgs := buildOrder(q)
	args = append(args, orderArgs...)

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id FROM images i WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		ids = append(ids, id)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return ids, nil
}

// CountImages returns the number of matches, ignoring the window.
func (s *Store) CountImages(ctx context.Context, q *db.ImageQuery) (int, error) {
	where, args := buildWhere(q)
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM images i WHERE `+where, args...,
	).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpSelect, Err: err}
	}
	return n, nil
}

// LoadCandidates returns the similarity fields of every match, in id order.
func (s *Store) LoadCandidates(ctx context.Context, q *db.ImageQuery) ([]similarity.Candidate, error) {
	where, args := buildWhere(q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(imageColumns)+` FROM images i WHERE `+where+` ORDER BY i.id`, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	var out []similarity.Candidate
	for rows.Next() {
		r, err := scanImage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		out = append(out, r.Candidate())
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func prefixed(columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = "i." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// --- WHERE building ---

type clause struct {
	parts []string
	args  []any
}

func (c *clause) add(sql string, args ...any) {
	c.parts = append(c.parts, sql)
	c.args = append(c.args, args...)
}

func (c *clause) and() string {
	if len(c.parts) == 0 {
		return "1"
	}
	return strings.Join(c.parts, " AND ")
}

func buildWhere(q *db.ImageQuery) (string, []any) {
	var c clause

	for _, id := range q.Scopes {
		c.add(`EXISTS (SELECT 1 FROM image_scopes s WHERE s.image_id = i.id AND s.scope_id = ?)`, id)
	}

	addBranch(&c, q.Filter.Global())
	if len(q.Filter.Branches) > 0 {
		ors := make([]string, 0, len(q.Filter.Branches))
		var args []any
		for _, b := range q.Filter.Branches {
			var bc clause
			addBranch(&bc, b)
			ors = append(ors, "("+bc.and()+")")
			args = append(args, bc.args...)
		}
		c.add("("+strings.Join(ors, " OR ")+")", args...)
	}

	for _, f := range bounds.Fields {
		b := q.Ranges.Get(f)
		if b.IsOpen() {
			continue
		}
		expr, exprArgs := rangeExpr(f, q.Ranges.RatingName)
		if b.HasMin() {
			c.add(expr+" >= ?", append(exprArgs, b.Min)...)
		}
		if b.HasMax() {
			c.add(expr+" <= ?", append(exprArgs, b.Max)...)
		}
	}

	return c.and(), c.args
}

func addBranch(c *clause, b filter.Branch) {
	for _, t := range b.All {
		c.add(hasTag("= ?"), t)
	}
	if len(b.Any) > 0 {
		in, args := inList(b.Any)
		c.add(hasTag("IN ("+in+")"), args...)
	}
	if len(b.None) > 0 {
		in, args := inList(b.None)
		c.add("NOT "+hasTag("IN ("+in+")"), args...)
	}
}

func hasTag(pred string) string {
	return `EXISTS (SELECT 1 FROM image_tags t WHERE t.image_id = i.id AND t.tag ` + pred + `)`
}

func rangeExpr(f bounds.Field, ratingName string) (string, []any) {
	switch f {
	case bounds.Time:
		return "i.uploaded_at", nil
	case bounds.Rating:
		return scoreExpr("image_ratings"), []any{ratingName}
	default:
		return "i." + string(f), nil
	}
}

// scoreExpr reads a named rating or colour score; missing scores read as -1.
func scoreExpr(table string) string {
	return `COALESCE((SELECT v.value FROM ` + table + ` v WHERE v.image_id = i.id AND v.name = ?), -1)`
}

// --- ORDER BY building ---

var orderColumns = map[sortkey.Kind]string{
	sortkey.ID:       "i.id",
	sortkey.Path:     "i.path",
	sortkey.Name:     "i.name",
	sortkey.Size:     "i.size",
	sortkey.Uploaded: "i.uploaded_at",
	sortkey.Created:  "i.created_at",
	sortkey.Modified: "i.modified_at",
	sortkey.Edited:   "i.edited_at",
	sortkey.Width:    "i.width",
	sortkey.Height:   "i.height",
	sortkey.Area:     "(i.width * i.height)",
	sortkey.TagCount: "i.tag_count",
}

// buildOrder mirrors sortkey.Compare: primary key in the requested direction, then id ascending.
func buildOrder(q *db.ImageQuery) (string, []any) {
	key, dir := q.SortOrStable()

	var (
		expr string
		args []any
	)
	switch key.Kind {
	case sortkey.Rating:
		expr, args = scoreExpr("image_ratings"), []any{key.Name}
	case sortkey.Color:
		expr, args = scoreExpr("image_colors"), []any{key.Name}
	default:
		col, ok := orderColumns[key.Kind]
		if !ok {
			col, dir = orderColumns[sortkey.ID], sortkey.Asc
		}
		expr = col
	}

	direction := "ASC"
	if dir == sortkey.Desc {
		direction = "DESC"
	}
	if expr == "i.id" {
		return "i.id " + direction, args
	}
	return expr + " " + direction + ", i.id ASC", args
}
