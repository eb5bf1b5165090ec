package feed

import (
	"sync"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
)

// Tracker remembers, per author key, the last manifest a consumer accepted,
// and rejects updates that rewrite history. A verified manifest may only grow:
// the version must strictly increase and every previously seen entry CID must
// still be present.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]trackedManifest
}

type trackedManifest struct {
	version int64
	entries map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]trackedManifest)}
}

// Accept checks m against the tracked state for key and records it on
// success. Regression is a security error: either the publisher misbehaved or
// someone is replaying an old manifest.
func (t *Tracker) Accept(key string, m *document.Manifest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.seen[key]
	if ok {
		if m.Version <= prev.version {
			return fxerr.New(fxerr.KindSecurity, "FX-FEED-101",
				"manifest version did not increase")
		}
		current := make(map[string]bool, len(m.Entries))
		for _, e := range m.Entries {
			current[e.CID] = true
		}
		for cid := range prev.entries {
			if !current[cid] {
				return fxerr.New(fxerr.KindSecurity, "FX-FEED-102",
					"manifest dropped a previously published entry")
			}
		}
	}

	entries := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		entries[e.CID] = true
	}
	t.seen[key] = trackedManifest{version: m.Version, entries: entries}
	return nil
}

// NewEntries returns the entry CIDs of m not in the last accepted manifest
// for key. It records nothing, so call it before Accept.
func (t *Tracker) NewEntries(key string, m *document.Manifest) []string {
	t.mu.Lock()
	prev := t.seen[key]
	t.mu.Unlock()

	var out []string
	for _, e := range m.Entries {
		if prev.entries[e.CID] {
			continue
		}
		out = append(out, e.CID)
	}
	return out
}
