package resolve

import (
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/document"
)

// verifiedCache keeps verified documents keyed by CID. Cached copies have the
// signature stripped: once a document is verified, the signature's job is
// done, and nothing downstream should re-check or leak it from the cache.
type verifiedCache struct {
	mu      sync.RWMutex
	entries map[cid.Cid]*Verified
}

func newVerifiedCache() *verifiedCache {
	return &verifiedCache{entries: make(map[cid.Cid]*Verified)}
}

func (c *verifiedCache) get(id cid.Cid) (*Verified, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	out := *v
	out.FromCache = true
	return &out, true
}

func (c *verifiedCache) put(v *Verified) {
	stripped := make(document.Fields, len(v.Fields))
	for k, val := range v.Fields {
		if k == document.SignatureKey {
			continue
		}
		stripped[k] = val
	}
	entry := *v
	entry.Fields = stripped

	c.mu.Lock()
	c.entries[v.CID] = &entry
	c.mu.Unlock()
}
