package scope

import (
	"context"

	"github.com/kailas-cloud/imgdex/internal/db"
	domscope "github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	scopes map[string]domscope.Scope
	err    error
}

func (m *mockStore) LoadScope(_ context.Context, id string) (domscope.Scope, error) {
	if m.err != nil {
		return domscope.Scope{}, m.err
	}
	sc, ok := m.scopes[id]
	if !ok {
		return domscope.Scope{}, db.ErrKeyNotFound
	}
	return sc, nil
}

func (m *mockStore) SaveScope(_ context.Context, sc domscope.Scope) error {
	if m.err != nil {
		return m.err
	}
	if m.scopes == nil {
		m.scopes = map[string]domscope.Scope{}
	}
	sc.Known = true
	m.scopes[sc.ID] = sc
	return nil
}
