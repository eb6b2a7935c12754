package catalog

import (
	"context"
	"slices"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
)

type mockRecords struct {
	records map[string]*image.Record
	getErr  error
	saveErr error
	delErr  error
	saves   int
	deletes [][]string
}

func newMockRecords(recs ...*image.Record) *mockRecords {
	m := &mockRecords{records: make(map[string]*image.Record)}
	for _, r := range recs {
		m.records[r.ID] = r
	}
	return m
}

func (m *mockRecords) Get(_ context.Context, ids []string) ([]*image.Record, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*image.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *mockRecords) Save(_ context.Context, records []*image.Record) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, r := range records {
		m.records[r.ID] = r.Clone()
	}
	return nil
}

func (m *mockRecords) Delete(_ context.Context, ids []string) error {
	m.deletes = append(m.deletes, slices.Clone(ids))
	if m.delErr != nil {
		return m.delErr
	}
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

type mockScopes struct {
	saved []scope.Scope
	err   error
}

func (m *mockScopes) Save(_ context.Context, sc scope.Scope) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, sc)
	return nil
}

type mockInvalidator struct {
	scopes [][]string
	single []string
}

func (m *mockInvalidator) InvalidateScope(id string) int {
	m.single = append(m.single, id)
	return 1
}

func (m *mockInvalidator) InvalidateWrites(scopes []string) int {
	m.scopes = append(m.scopes, slices.Clone(scopes))
	return len(scopes)
}

func record(id string, scopes ...string) *image.Record {
	return &image.Record{ID: id, Width: 10, Height: 10, Scopes: scopes}
}
