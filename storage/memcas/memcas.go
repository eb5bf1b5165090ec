// Package memcas is an in-memory content store, used for tests and for
// offline mock mode when no real backend is configured.
package memcas

import (
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/storage"
)

// CAS stores objects in a map guarded by an RWMutex; safe for concurrent use.
type CAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

func New() *CAS {
	return &CAS{objects: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.DocumentCID(data)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[id]; !ok {
		c.objects[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	_, ok := c.objects[id]
	c.mu.RUnlock()
	return ok
}

// Len reports the number of stored objects.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
