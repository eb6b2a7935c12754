package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// Compile-time check: Catalog implements db.Catalog.
var _ db.Catalog = (*Catalog)(nil)

// pageSize bounds each FT.SEARCH round-trip when a query asks for every match.
const pageSize = 1000

// CatalogConfig describes the FT index and key layout of the catalog.
type CatalogConfig struct {
	Index     string
	KeyPrefix string
	// Ratings and Colors list the score names indexed for range filters and sorting.
	Ratings []string
	Colors  []string
}

// Catalog implements db.Catalog on top of Store: images as hashes under an FT index.
type Catalog struct {
	store *Store
	cfg   CatalogConfig
	def   *db.IndexDefinition
}

// NewCatalog builds the index definition for cfg.
func NewCatalog(store *Store, cfg CatalogConfig) (*Catalog, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	def, err := indexDefinition(cfg)
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return &Catalog{store: store, cfg: cfg, def: def}, nil
}

func indexDefinition(cfg CatalogConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(cfg.Index).
		Prefix(cfg.KeyPrefix+imagePrefix).
		SortableTag(fieldID).
		SortableTag(fieldPath).
		SortableTag(fieldName).
		SortableNumeric(numericFields...).
		TagWithOpts(fieldTags, listSeparator, false).
		TagWithOpts(fieldScopes, listSeparator, true)
	for _, r := range cfg.Ratings {
		b.SortableNumeric(ratingField(r))
	}
	for _, c := range cfg.Colors {
		b.SortableNumeric(colorField(c))
	}
	return b.Build()
}

// EnsureIndex creates the FT index unless it already exists.
// A concurrent creator winning the race is not an error.
func (c *Catalog) EnsureIndex(ctx context.Context) error {
	exists, err := c.store.IndexExists(ctx, c.def.Name)
	if err != nil {
		return fmt.Errorf("probe index %s: %w", c.def.Name, err)
	}
	if exists {
		return nil
	}
	err = c.store.CreateIndex(ctx, c.def)
	if err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", c.def.Name, err)
	}
	return nil
}

// Definition returns the FT index definition.
func (c *Catalog) Definition() *db.IndexDefinition { return c.def }

// Ping checks connectivity.
func (c *Catalog) Ping(ctx context.Context) error { return c.store.Ping(ctx) }

// Close shuts down the client.
func (c *Catalog) Close() { c.store.Close() }

// FindImages returns matching ids in the requested order and window.
func (c *Catalog) FindImages(ctx context.Context, q *db.ImageQuery) ([]string, error) {
	query, err := c.buildQuery(q)
	if err != nil {
		return nil, err
	}
	sortBy, desc := c.sortField(q)

	ids := []string{}
	err = c.pages(q, func(offset, limit int) (int, error) {
		res, err := c.store.SearchList(ctx, &db.ListQuery{
			Index: c.cfg.Index, Query: query,
			Offset: offset, Limit: limit,
			SortBy: sortBy, SortDesc: desc,
			NoContent: true,
		})
		if err != nil {
			return 0, err
		}
		for _, e := range res.Entries {
			ids = append(ids, c.imageID(e.Key))
		}
		return len(res.Entries), nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountImages returns the number of matches, ignoring the window.
func (c *Catalog) CountImages(ctx context.Context, q *db.ImageQuery) (int, error) {
	query, err := c.buildQuery(q)
	if err != nil {
		return 0, err
	}
	return c.store.SearchCount(ctx, c.cfg.Index, query)
}

// LoadCandidates returns the similarity fields of every match, in id order.
func (c *Catalog) LoadCandidates(ctx context.Context, q *db.ImageQuery) ([]similarity.Candidate, error) {
	query, err := c.buildQuery(q)
	if err != nil {
		return nil, err
	}

	var out []similarity.Candidate
	all := q.Unpaged()
	err = c.pages(all, func(offset, limit int) (int, error) {
		res, err := c.store.SearchList(ctx, &db.ListQuery{
			Index: c.cfg.Index, Query: query,
			Offset: offset, Limit: limit,
			SortBy: fieldID,
			Fields: candidateFields,
		})
		if err != nil {
			return 0, err
		}
		for _, e := range res.Entries {
			cand := candidateFromHash(e.Fields)
			if cand.ID == "" {
				cand.ID = c.imageID(e.Key)
			}
			out = append(out, cand)
		}
		return len(res.Entries), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pages walks the query window in pageSize chunks until it is filled or the results run out.
func (c *Catalog) pages(q *db.ImageQuery, fetch func(offset, limit int) (int, error)) error {
	offset := max(q.Offset, 0)
	remaining := q.Limit
	for {
		limit := pageSize
		if remaining > 0 && remaining < limit {
			limit = remaining
		}
		n, err := fetch(offset, limit)
		if err != nil {
			return err
		}
		offset += n
		if remaining > 0 {
			remaining -= n
			if remaining <= 0 {
				return nil
			}
		}
		if n < limit {
			return nil
		}
	}
}

// LoadImages returns the records for ids in request order, skipping unknown ids.
func (c *Catalog) LoadImages(ctx context.Context, ids []string) ([]*image.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.imageKey(id)
	}
	hashes, err := c.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*image.Record, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		r, err := recordFromHash(ids[i], h)
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveImages replaces the hashes of records.
func (c *Catalog) SaveImages(ctx context.Context, records []*image.Record) error {
	if len(records) == 0 {
		return nil
	}
	keys := make([]string, len(records))
	items := make([]db.HashSetItem, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: err}
		}
		rec := r.Clone()
		rec.Normalize()
		keys[i] = c.imageKey(rec.ID)
		items[i] = db.HashSetItem{Key: keys[i], Fields: recordToHash(rec, c.cfg.Ratings, c.cfg.Colors)}
	}

	// Stale fields of a previous version must not survive the rewrite.
	if err := c.store.Del(ctx, keys...); err != nil {
		return err
	}
	return c.store.HSetMulti(ctx, items)
}

// DeleteImages removes image hashes.
func (c *Catalog) DeleteImages(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.imageKey(id)
	}
	return c.store.Del(ctx, keys...)
}

// LoadScope returns scope metadata, or db.ErrKeyNotFound.
func (c *Catalog) LoadScope(ctx context.Context, id string) (scope.Scope, error) {
	h, err := c.store.HGetAll(ctx, c.scopeKey(id))
	if err != nil {
		return scope.Scope{}, err
	}
	if len(h) == 0 {
		return scope.Scope{}, db.ErrKeyNotFound
	}
	return scopeFromHash(id, h), nil
}

// SaveScope stores scope metadata.
func (c *Catalog) SaveScope(ctx context.Context, sc scope.Scope) error {
	if sc.ID == "" {
		return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("scope id is required")}
	}
	return c.store.HSet(ctx, c.scopeKey(sc.ID), scopeToHash(sc))
}

func (c *Catalog) imageKey(id string) string { return c.cfg.KeyPrefix + imagePrefix + id }

func (c *Catalog) scopeKey(id string) string { return c.cfg.KeyPrefix + scopePrefix + id }

func (c *Catalog) imageID(key string) string {
	return strings.TrimPrefix(key, c.cfg.KeyPrefix+imagePrefix)
}
