package feed

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/resolve"
	"github.com/mikael1979/filu-x/storage/memcas"
)

func newKeypair(t *testing.T) identity.PrivateKey {
	t.Helper()
	priv, err := identity.GenerateEd25519(rand.Reader)
	require.NoError(t, err)
	return priv
}

// publishProfile signs and stores a profile document and binds it under
// profileName. The profile's feed_name is the key's derived name, which is
// where the Publisher republishes the manifest.
func publishProfile(t *testing.T, cas *memcas.CAS, names naming.NameLayer, priv identity.PrivateKey, author, profileName string) {
	t.Helper()
	feedName, err := naming.DeriveName(priv.Public())
	require.NoError(t, err)

	fields := document.Fields{
		"author":     author,
		"pubkey":     priv.Public().String(),
		"feed_name":  feedName,
		"created_at": "2026-01-01T00:00:00Z",
	}
	require.NoError(t, identity.SignFields(fields, priv))
	b, err := document.Encode(fields)
	require.NoError(t, err)
	id, err := cas.Put(b)
	require.NoError(t, err)
	require.NoError(t, names.Publish(context.Background(), profileName, id))
}

func TestPublisher_AppendBumpsVersionAndRepublishes(t *testing.T) {
	ctx := context.Background()
	cas := memcas.New()
	names := naming.NewMemoryStore()
	priv := newKeypair(t)

	pub := &Publisher{Store: cas, Names: names, Key: priv, Author: "alice"}
	require.NoError(t, pub.Init(ctx))
	require.Equal(t, int64(0), pub.Version())

	id1, err := pub.Append(ctx, document.ManifestEntry{
		Path: "posts/1", CID: "bafy1", Type: "post", CreatedAt: "2026-01-01T00:00:00Z",
	}, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, int64(1), pub.Version())

	id2, err := pub.Append(ctx, document.ManifestEntry{
		Path: "posts/2", CID: "bafy2", Type: "post", CreatedAt: "2026-01-02T00:00:00Z",
	}, "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, int64(2), pub.Version())
	require.NotEqual(t, id1, id2)

	// The name points at the latest manifest.
	bound, err := names.Resolve(ctx, pub.Name())
	require.NoError(t, err)
	require.Equal(t, id2, bound)

	// A fresh Publisher resumes from the published state, entries intact.
	resumed := &Publisher{Store: cas, Names: names, Key: priv, Author: "alice"}
	require.NoError(t, resumed.Init(ctx))
	require.Equal(t, int64(2), resumed.Version())
}

func TestTracker_RejectsRegression(t *testing.T) {
	tr := NewTracker()

	v1 := manifestWith(t, 1, "bafy1")
	v2 := manifestWith(t, 2, "bafy1", "bafy2")

	require.NoError(t, tr.Accept("key", v1))
	require.Equal(t, []string{"bafy2"}, tr.NewEntries("key", v2))
	require.NoError(t, tr.Accept("key", v2))

	// Replaying the older manifest is a security failure.
	err := tr.Accept("key", v1)
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)

	// A higher version that drops an entry is too.
	dropped := manifestWith(t, 3, "bafy2")
	err = tr.Accept("key", dropped)
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)
}

func manifestWith(t *testing.T, version int64, cids ...string) *document.Manifest {
	t.Helper()
	entries := make([]any, 0, len(cids))
	for _, c := range cids {
		entries = append(entries, map[string]any{"cid": c})
	}
	m, err := document.AsManifest(document.Fields{
		"author":  "alice",
		"version": version,
		"entries": entries,
	})
	require.NoError(t, err)
	return m
}

func TestFollowList_CollisionAdvisory(t *testing.T) {
	list := NewFollowList()

	c, err := list.Add("Alice", "ed25519:aa", "profile-alice")
	require.NoError(t, err)
	require.Nil(t, c)

	// Same display name, different key: advisory, not an error.
	c, err = list.Add("alice", "ed25519:bb", "profile-alice2")
	require.NoError(t, err)
	require.NotNil(t, c)

	// Same key twice is an error.
	_, err = list.Add("Someone", "ed25519:aa", "profile-x")
	require.Error(t, err)

	require.Len(t, list.Entries(), 2)
	require.True(t, list.Remove("ed25519:bb"))
	require.False(t, list.Remove("ed25519:bb"))
}

func TestSyncFollowed_CollectsNewPosts(t *testing.T) {
	ctx := context.Background()
	cas := memcas.New()
	names := naming.NewMemoryStore()
	priv := newKeypair(t)

	publishProfile(t, cas, names, priv, "alice", "profile-alice")

	pub := &Publisher{Store: cas, Names: names, Key: priv, Author: "alice"}
	require.NoError(t, pub.Init(ctx))
	_, err := pub.Append(ctx, document.ManifestEntry{
		Path: "posts/1", CID: "bafyp1", Type: "post", CreatedAt: "2026-01-01T00:00:00Z",
	}, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	list := NewFollowList()
	_, err = list.Add("alice", priv.Public().String(), "profile-alice")
	require.NoError(t, err)

	syncer := &Syncer{
		Resolver: resolve.New(cas, names),
		Tracker:  NewTracker(),
	}

	results := syncer.SyncFollowed(ctx, list)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, []string{"bafyp1"}, results[0].NewPosts)
	require.NotEmpty(t, results[0].Entry.LastSync)

	// Second sync after another append sees only the new entry.
	_, err = pub.Append(ctx, document.ManifestEntry{
		Path: "posts/2", CID: "bafyp2", Type: "post", CreatedAt: "2026-01-02T00:00:00Z",
	}, "2026-01-02T00:00:00Z")
	require.NoError(t, err)

	results = syncer.SyncFollowed(ctx, list)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, []string{"bafyp2"}, results[0].NewPosts)
}

func TestSyncFollowed_ImpostorDowngradesOnlyThatIdentity(t *testing.T) {
	ctx := context.Background()
	cas := memcas.New()
	names := naming.NewMemoryStore()

	alice := newKeypair(t)
	publishProfile(t, cas, names, alice, "alice", "profile-alice")
	alicePub := &Publisher{Store: cas, Names: names, Key: alice, Author: "alice"}
	require.NoError(t, alicePub.Init(ctx))
	_, err := alicePub.Append(ctx, document.ManifestEntry{
		Path: "posts/1", CID: "bafya1", Type: "post", CreatedAt: "2026-01-01T00:00:00Z",
	}, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	bob := newKeypair(t)
	publishProfile(t, cas, names, bob, "bob", "profile-bob")
	bobPub := &Publisher{Store: cas, Names: names, Key: bob, Author: "bob"}
	require.NoError(t, bobPub.Init(ctx))
	_, err = bobPub.Append(ctx, document.ManifestEntry{
		Path: "posts/1", CID: "bafyb1", Type: "post", CreatedAt: "2026-01-01T00:00:00Z",
	}, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	// An impostor rebinds bob's profile name to their own profile.
	impostor := newKeypair(t)
	publishProfile(t, cas, names, impostor, "bob", "profile-bob")

	list := NewFollowList()
	_, err = list.Add("alice", alice.Public().String(), "profile-alice")
	require.NoError(t, err)
	_, err = list.Add("bob", bob.Public().String(), "profile-bob")
	require.NoError(t, err)

	syncer := &Syncer{
		Resolver: resolve.New(cas, names),
		Tracker:  NewTracker(),
	}
	results := syncer.SyncFollowed(ctx, list)
	require.Len(t, results, 2)

	byName := map[string]SyncResult{}
	for _, r := range results {
		byName[r.Entry.DisplayName] = r
	}

	// Alice still syncs.
	require.NoError(t, byName["alice"].Err)
	require.Equal(t, []string{"bafya1"}, byName["alice"].NewPosts)
	require.False(t, byName["alice"].Entry.Downgraded)

	// Bob's entry is downgraded, not silently followed to the impostor.
	require.True(t, fxerr.IsKind(byName["bob"].Err, fxerr.KindSecurity), "got %v", byName["bob"].Err)
	require.True(t, byName["bob"].Entry.Downgraded)
	require.NotEmpty(t, byName["bob"].Entry.DowngradeReason)
}
