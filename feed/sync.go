package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/link"
	"github.com/mikael1979/filu-x/resolve"
)

// SyncResult is the outcome of syncing one followed identity.
type SyncResult struct {
	Entry    *FollowEntry
	NewPosts []string
	Err      error
}

// Syncer pulls new posts from followed identities.
type Syncer struct {
	Resolver *resolve.Resolver
	Tracker  *Tracker

	// Log defaults to a nop logger.
	Log *zap.Logger
}

// SyncFollowed syncs every entry in list sequentially: profile by name, then
// the profile's feed manifest verified against the followed key, then the
// manifest entries not seen before.
//
// Failures are isolated per identity. A security failure downgrades the
// entry and moves on; transient failures are reported on the result and the
// entry stays trusted.
func (s *Syncer) SyncFollowed(ctx context.Context, list *FollowList) []SyncResult {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	entries := list.Entries()
	results := make([]SyncResult, 0, len(entries))
	for _, entry := range entries {
		res := SyncResult{Entry: entry}
		res.NewPosts, res.Err = s.syncOne(ctx, entry)

		if fxerr.IsKind(res.Err, fxerr.KindSecurity) {
			entry.Downgraded = true
			entry.DowngradeReason = res.Err.Error()
			log.Warn("followed identity downgraded",
				zap.String("display_name", entry.DisplayName),
				zap.String("pubkey", entry.Pubkey),
				zap.Error(res.Err),
			)
		} else if res.Err != nil {
			log.Info("sync failed for followed identity",
				zap.String("pubkey", entry.Pubkey),
				zap.Error(res.Err),
			)
		} else {
			entry.LastSync = time.Now().UTC().Format(time.RFC3339)
		}
		results = append(results, res)
	}
	return results
}

func (s *Syncer) syncOne(ctx context.Context, entry *FollowEntry) ([]string, error) {
	followedKey, err := identity.ParsePublicKey(entry.Pubkey)
	if err != nil {
		return nil, err
	}

	v, err := s.Resolver.Resolve(ctx, link.Name(entry.ProfileName), resolve.Options{})
	if err != nil {
		return nil, err
	}
	if v.Kind != document.KindProfile {
		return nil, fxerr.New(fxerr.KindSecurity, "FX-FEED-301", "profile name resolved to a non-profile document")
	}
	profile, err := document.AsProfile(v.Fields)
	if err != nil {
		return nil, err
	}
	// The profile verified against its embedded key; that key must be the
	// one we chose to follow, or the name has been rebound to an impostor.
	if !v.Key.Equal(followedKey) {
		return nil, fxerr.New(fxerr.KindSecurity, "FX-FEED-302", "profile key does not match followed key")
	}

	mv, err := s.Resolver.Resolve(ctx, link.Name(profile.FeedName), resolve.Options{
		ExpectedKey: &followedKey,
	})
	if err != nil {
		return nil, err
	}
	if mv.Kind != document.KindManifest {
		return nil, fxerr.New(fxerr.KindSecurity, "FX-FEED-303", "feed name resolved to a non-manifest document")
	}
	manifest, err := document.AsManifest(mv.Fields)
	if err != nil {
		return nil, err
	}

	fresh := s.Tracker.NewEntries(entry.Pubkey, manifest)
	if err := s.Tracker.Accept(entry.Pubkey, manifest); err != nil {
		return nil, err
	}
	return fresh, nil
}
