package feed

import (
	"sort"
	"sync"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
)

// FollowEntry is one followed identity. Uniqueness key is the pubkey:
// display names are free-form and collide, keys do not.
type FollowEntry struct {
	DisplayName string
	Pubkey      string
	ProfileName string
	LastSync    string

	// Downgraded is set when a sync hit a security failure for this
	// identity. Downgraded entries are kept but no longer trusted until the
	// user intervenes.
	Downgraded      bool
	DowngradeReason string
}

// FollowList is a mutable, key-unique set of followed identities.
type FollowList struct {
	mu      sync.Mutex
	entries []*FollowEntry
}

func NewFollowList() *FollowList {
	return &FollowList{}
}

// Add inserts a new follow. Display-name collisions with existing entries are
// detected and returned as an advisory; they never block the follow, since
// the pubkey is the identity.
func (l *FollowList) Add(displayName, pubkey, profileName string) (*identity.Collision, error) {
	if pubkey == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-FEED-201", "follow entry missing pubkey")
	}
	if profileName == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-FEED-202", "follow entry missing profile name")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.Pubkey == pubkey {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-FEED-203", "already following this key")
		}
	}

	known := make([]identity.NameEntry, 0, len(l.entries))
	for _, e := range l.entries {
		known = append(known, identity.NameEntry{DisplayName: e.DisplayName, Pubkey: e.Pubkey})
	}
	collision := identity.DetectCollision(displayName, pubkey, known)

	l.entries = append(l.entries, &FollowEntry{
		DisplayName: displayName,
		Pubkey:      pubkey,
		ProfileName: profileName,
	})
	sort.Slice(l.entries, func(i, j int) bool {
		return l.entries[i].Pubkey < l.entries[j].Pubkey
	})
	return collision, nil
}

// Remove drops the entry for pubkey, reporting whether it existed.
func (l *FollowList) Remove(pubkey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.Pubkey == pubkey {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns the entries in stable pubkey order. The pointers are live;
// sync updates them in place.
func (l *FollowList) Entries() []*FollowEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*FollowEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
