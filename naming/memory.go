package naming

import (
	"context"
	"sync"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/storage"
)

type binding struct {
	id        cid.Cid
	updatedAt time.Time
}

// MemoryStore is an in-process NameLayer for tests and single-node use.
type MemoryStore struct {
	mu       sync.RWMutex
	bindings map[string]binding
}

var _ NameLayer = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: make(map[string]binding)}
}

func (m *MemoryStore) Publish(ctx context.Context, name string, id cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fxerr.New(fxerr.KindMalformed, "FX-NAME-201", "empty name")
	}
	if !id.Defined() {
		return storage.ErrInvalidCID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[name] = binding{id: id, updatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}

	m.mu.RLock()
	b, ok := m.bindings[name]
	m.mu.RUnlock()
	if !ok {
		return cid.Undef, errNotBound(name)
	}
	return b.id, nil
}

// UpdatedAt reports when the binding was last published, for diagnostics.
func (m *MemoryStore) UpdatedAt(name string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[name]
	return b.updatedAt, ok
}
