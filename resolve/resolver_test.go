package resolve

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/link"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/storage/memcas"
)

func newKeypair(t *testing.T) identity.PrivateKey {
	t.Helper()
	priv, err := identity.GenerateEd25519(rand.Reader)
	require.NoError(t, err)
	return priv
}

func storeSignedPost(t *testing.T, cas *memcas.CAS, priv identity.PrivateKey, content string) cid.Cid {
	t.Helper()
	fields := document.Fields{
		"id":           "0011223344556677",
		"type":         "text",
		"author":       "tester",
		"pubkey":       priv.Public().String(),
		"content":      content,
		"content_type": "text/plain",
		"created_at":   "2026-01-02T03:04:05Z",
	}
	require.NoError(t, identity.SignFields(fields, priv))
	b, err := document.Encode(fields)
	require.NoError(t, err)
	id, err := cas.Put(b)
	require.NoError(t, err)
	return id
}

func TestResolve_SignedPost(t *testing.T) {
	cas := memcas.New()
	priv := newKeypair(t)
	id := storeSignedPost(t, cas, priv, "hello filu")

	r := New(cas, naming.NewMemoryStore())
	v, err := r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.NoError(t, err)
	require.Equal(t, document.KindPost, v.Kind)
	require.Equal(t, id, v.CID)
	require.True(t, v.Key.Equal(priv.Public()))
	require.NotNil(t, v.Safety)
	require.False(t, v.Safety.RequiresSanitization())
}

func TestResolve_NameLinkMatchesContentLink(t *testing.T) {
	cas := memcas.New()
	names := naming.NewMemoryStore()
	priv := newKeypair(t)
	id := storeSignedPost(t, cas, priv, "same document either way")

	name, err := naming.DeriveName(priv.Public())
	require.NoError(t, err)
	require.NoError(t, names.Publish(context.Background(), name, id))

	r := New(cas, names)
	byCID, err := r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.NoError(t, err)
	byName, err := r.Resolve(context.Background(), link.Name(name), Options{})
	require.NoError(t, err)

	require.Equal(t, byCID.CID, byName.CID)
	require.Equal(t, byCID.Kind, byName.Kind)
}

func TestResolve_TamperedSignatureRejected(t *testing.T) {
	cas := memcas.New()
	priv := newKeypair(t)

	fields := document.Fields{
		"type":         "text",
		"pubkey":       priv.Public().String(),
		"content":      "original words",
		"content_type": "text/plain",
		"created_at":   "2026-01-02T03:04:05Z",
	}
	require.NoError(t, identity.SignFields(fields, priv))

	// Mutate a signed field after signing. The altered document gets its own
	// CID, so it fetches cleanly, but verification must reject it.
	fields["content"] = "altered words"
	b, err := document.Encode(fields)
	require.NoError(t, err)
	id, err := cas.Put(b)
	require.NoError(t, err)

	r := New(cas, naming.NewMemoryStore())
	_, err = r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)
}

func TestResolve_ManifestNeedsExpectedKey(t *testing.T) {
	cas := memcas.New()
	priv := newKeypair(t)

	fields := document.Fields{
		"author":     "tester",
		"version":    int64(1),
		"updated_at": "2026-01-02T03:04:05Z",
		"entries":    []any{},
	}
	require.NoError(t, identity.SignFields(fields, priv))
	b, err := document.Encode(fields)
	require.NoError(t, err)
	id, err := cas.Put(b)
	require.NoError(t, err)

	r := New(cas, naming.NewMemoryStore())
	l := link.Content(id.String())

	// No expected key: refuse, do not silently pass.
	_, err = r.Resolve(context.Background(), l, Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)

	// Wrong key: signature failure.
	wrong := newKeypair(t).Public()
	_, err = r.Resolve(context.Background(), l, Options{ExpectedKey: &wrong})
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)

	// Right key: verified as a manifest.
	pub := priv.Public()
	v, err := r.Resolve(context.Background(), l, Options{ExpectedKey: &pub})
	require.NoError(t, err)
	require.Equal(t, document.KindManifest, v.Kind)
}

func TestResolve_CacheStripsSignature(t *testing.T) {
	cas := memcas.New()
	priv := newKeypair(t)
	id := storeSignedPost(t, cas, priv, "cache me")

	r := New(cas, naming.NewMemoryStore())
	l := link.Content(id.String())

	first, err := r.Resolve(context.Background(), l, Options{AllowCache: true})
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.Contains(t, first.Fields, document.SignatureKey)

	second, err := r.Resolve(context.Background(), l, Options{AllowCache: true})
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.NotContains(t, second.Fields, document.SignatureKey)

	// Without AllowCache the pipeline runs again.
	third, err := r.Resolve(context.Background(), l, Options{})
	require.NoError(t, err)
	require.False(t, third.FromCache)
}

func TestResolve_MissingContentIsNotFound(t *testing.T) {
	cas := memcas.New()
	r := New(cas, naming.NewMemoryStore())

	// CID of bytes that were never stored.
	other := memcas.New()
	id, err := other.Put([]byte("never in the resolver's store"))
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindNotFound), "got %v", err)
	require.True(t, fxerr.Retryable(err))
}

func TestResolve_UnboundNamePropagates(t *testing.T) {
	r := New(memcas.New(), naming.NewMemoryStore())

	_, err := r.Resolve(context.Background(), link.Name("nobody-here"), Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindNameNotBound), "got %v", err)
	require.False(t, fxerr.Retryable(err))
}

func TestResolveUnverified_SkipsSignatureCheck(t *testing.T) {
	cas := memcas.New()
	priv := newKeypair(t)

	fields := document.Fields{
		"type":       "text",
		"pubkey":     priv.Public().String(),
		"content":    "unsigned claims",
		"created_at": "2026-01-02T03:04:05Z",
		"signature":  "00ff00ff",
	}
	b, err := document.Encode(fields)
	require.NoError(t, err)
	id, err := cas.Put(b)
	require.NoError(t, err)

	r := New(cas, naming.NewMemoryStore())

	// Verified path rejects it…
	_, err = r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindSecurity), "got %v", err)

	// …the explicit opt-out returns it with the skip recorded.
	u, err := r.ResolveUnverified(context.Background(), link.Content(id.String()))
	require.NoError(t, err)
	require.Equal(t, document.KindPost, u.Kind)
	require.NotEmpty(t, u.Skipped)

	// Opt-out results are never cached as verified.
	_, err = r.Resolve(context.Background(), link.Content(id.String()), Options{AllowCache: true})
	require.Error(t, err)
}

func TestResolve_GarbageBytesAreMalformed(t *testing.T) {
	cas := memcas.New()
	id, err := cas.Put([]byte("this is not json"))
	require.NoError(t, err)

	r := New(cas, naming.NewMemoryStore())
	_, err = r.Resolve(context.Background(), link.Content(id.String()), Options{})
	require.True(t, fxerr.IsKind(err, fxerr.KindMalformed), "got %v", err)
}
