// Package naming maps stable, key-derived names to the CID published most
// recently under them. Content in the store is immutable; this is the one
// mutable indirection in the system, so every store keeps the last-publish-wins
// rule and updates bindings atomically.
package naming

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
)

// NameLayer publishes and resolves mutable name bindings.
//
// Resolve of a name nobody has published returns fxerr.KindNameNotBound.
// That is a final answer, not a transient fetch failure, and callers must not
// retry it the way they would retry KindNotFound.
type NameLayer interface {
	Publish(ctx context.Context, name string, id cid.Cid) error
	Resolve(ctx context.Context, name string) (cid.Cid, error)
}

// DeriveName derives the stable name for a public key: a CIDv1 with the
// libp2p-key codec over the key bytes, rendered in base36. The same key always
// yields the same name, so a name can be minted offline before anything is
// published under it.
func DeriveName(pub identity.PublicKey) (string, error) {
	mh, err := multihash.Sum(pub.Raw, multihash.IDENTITY, -1)
	if err != nil {
		return "", fxerr.Wrap(fxerr.KindInternal, "FX-NAME-001", "derive name multihash", err)
	}
	id := cid.NewCidV1(cid.Libp2pKey, mh)
	s, err := id.StringOfBase(multibase.Base36)
	if err != nil {
		return "", fxerr.Wrap(fxerr.KindInternal, "FX-NAME-002", "derive name encoding", err)
	}
	return s, nil
}

// NotBound reports whether err is the unbound-name condition.
func NotBound(err error) bool {
	return fxerr.IsKind(err, fxerr.KindNameNotBound)
}

func errNotBound(name string) error {
	return fxerr.New(fxerr.KindNameNotBound, "FX-NAME-101", "name not bound: "+name)
}

// WaitResolve resolves name, and on an unbound answer sleeps once for wait and
// retries exactly once. One bounded retry covers publish propagation delay;
// anything longer is the caller's problem.
func WaitResolve(ctx context.Context, layer NameLayer, name string, wait time.Duration) (cid.Cid, error) {
	id, err := layer.Resolve(ctx, name)
	if err == nil || !NotBound(err) {
		return id, err
	}
	if wait <= 0 {
		return cid.Undef, err
	}

	select {
	case <-ctx.Done():
		return cid.Undef, ctx.Err()
	case <-time.After(wait):
	}
	return layer.Resolve(ctx, name)
}
