package storage

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/cidutil"
)

// MultiCAS reads from multiple stores with deterministic, ordered fallback.
//
// Fetch order is the slice order in Stores; callers supply a fixed order so
// the retrieval strategy is explicit and reproducible. Put writes only to the
// first store.
type MultiCAS struct {
	Stores []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Stores) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no stores")
	}
	return m.Stores[0].Put(bytes)
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, s := range m.Stores {
		if s == nil {
			continue
		}
		b, err := s.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, s := range m.Stores {
		if s != nil && s.Has(id) {
			return true
		}
	}
	return false
}

// NamedCAS associates a store with a stable backend name for reporting.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes the same bytes to every backend and requires all of
// them to agree on the resulting CID. Reads fall back in backend order.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll writes bytes to every backend and returns the canonical CID along
// with the per-backend CID mapping. Any disagreement is ErrCIDMismatch.
func (r ReplicatingCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.DocumentCID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, errors.New("storage: ReplicatingCAS has no backends")
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, nil, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(bytes)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(id)
		if err == nil {
			return out, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
