package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

// buildQuery renders q as a DIALECT 2 FT.SEARCH query string.
func (c *Catalog) buildQuery(q *db.ImageQuery) (string, error) {
	var parts []string
	for _, id := range q.Scopes {
		parts = append(parts, tagClause(fieldScopes, id))
	}
	parts = append(parts, conditionClauses(q.Filter.Global())...)

	if len(q.Filter.Branches) > 0 {
		alts := make([]string, 0, len(q.Filter.Branches))
		for _, b := range q.Filter.Branches {
			clauses := conditionClauses(b)
			if len(clauses) == 0 {
				// An empty branch accepts everything the globals accept.
				alts = nil
				break
			}
			alts = append(alts, "("+strings.Join(clauses, " ")+")")
		}
		switch len(alts) {
		case 0:
		case 1:
			parts = append(parts, alts[0])
		default:
			parts = append(parts, "("+strings.Join(alts, " | ")+")")
		}
	}

	ranges, err := c.rangeClauses(q.Ranges)
	if err != nil {
		return "", err
	}
	parts = append(parts, ranges...)

	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, " "), nil
}

func conditionClauses(b filter.Branch) []string {
	var out []string
	for _, t := range b.All {
		out = append(out, tagClause(fieldTags, t))
	}
	if len(b.Any) > 0 {
		out = append(out, tagClause(fieldTags, b.Any...))
	}
	if len(b.None) > 0 {
		out = append(out, "-"+tagClause(fieldTags, b.None...))
	}
	return out
}

func tagClause(field string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return "@" + field + ":{" + strings.Join(escaped, " | ") + "}"
}

func (c *Catalog) rangeClauses(rs bounds.Ranges) ([]string, error) {
	var out []string
	for _, f := range bounds.Fields {
		b := rs.Get(f)
		if b.IsOpen() {
			continue
		}
		field, err := c.rangeField(f, rs.RatingName)
		if err != nil {
			return nil, err
		}
		out = append(out, numericClause(field, b))
	}
	return out, nil
}

func (c *Catalog) rangeField(f bounds.Field, ratingName string) (string, error) {
	switch f {
	case bounds.Time:
		return fieldUploaded, nil
	case bounds.Rating:
		field := ratingField(ratingName)
		if !c.def.Has(field) {
			return "", fmt.Errorf("rating %q is not indexed: %w", ratingName, db.ErrUnsupportedQuery)
		}
		return field, nil
	default:
		return string(f), nil
	}
}

func numericClause(field string, b bounds.Bound) string {
	lo, hi := "-inf", "+inf"
	if b.HasMin() {
		lo = strconv.FormatInt(b.Min, 10)
	}
	if b.HasMax() {
		hi = strconv.FormatInt(b.Max, 10)
	}
	return "@" + field + ":[" + lo + " " + hi + "]"
}

// sortField maps the query ordering onto an indexed SORTABLE field.
// Keys without an indexed field (undeclared ratings and colours) order by id.
func (c *Catalog) sortField(q *db.ImageQuery) (string, bool) {
	key, dir := q.SortOrStable()
	field := key.Field()
	if !c.def.Has(field) {
		return fieldID, false
	}
	return field, dir == sortkey.Desc
}
