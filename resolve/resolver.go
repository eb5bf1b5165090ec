// Package resolve turns fx:// links into verified documents.
//
// The resolver is the single trust boundary of a Filu-X node: everything it
// returns as Verified has been fetched by CID, hash-checked against that CID,
// parsed, classified, signature-verified and safety-classified. Callers that
// want to skip verification must say so explicitly and get a distinct type
// back.
package resolve

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/link"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/safety"
	"github.com/mikael1979/filu-x/storage"
)

// Options controls a single resolution.
type Options struct {
	// AllowCache permits returning a previously verified copy.
	AllowCache bool

	// ExpectedKey is the trusted key for manifest verification. Manifests
	// carry no key of their own, so resolving one without an expected key is
	// a security error, never a silent pass.
	ExpectedKey *identity.PublicKey
}

// Verified is a document that passed the full verification pipeline.
type Verified struct {
	CID    cid.Cid
	Kind   document.Kind
	Fields document.Fields

	// Key is the key the signature verified against (the embedded key for
	// posts and profiles, the caller's expected key for manifests).
	Key identity.PublicKey

	// Safety is set when the document carried a content body.
	Safety *safety.Verdict

	// FromCache marks a cache hit; cached fields have the signature stripped.
	FromCache bool
}

// Unverified is the explicit verification opt-out. It is never cached and is
// deliberately not convertible to Verified.
type Unverified struct {
	CID    cid.Cid
	Kind   document.Kind
	Fields document.Fields

	// Skipped records which checks were not run.
	Skipped string
}

// Resolver resolves and verifies documents out of a content store.
// Safe for concurrent use; concurrent misses for the same CID race benignly
// on the cache.
type Resolver struct {
	store  storage.CAS
	names  naming.NameLayer
	safety safety.Classifier
	log    *zap.Logger
	cache  *verifiedCache
}

func New(store storage.CAS, names naming.NameLayer, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		names: names,
		log:   zap.NewNop(),
		cache: newVerifiedCache(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func WithSafety(c safety.Classifier) Option {
	return func(r *Resolver) { r.safety = c }
}

// Resolve runs the full pipeline for l and returns the verified document.
func (r *Resolver) Resolve(ctx context.Context, l link.Link, opts Options) (*Verified, error) {
	id, err := r.resolveCID(ctx, l)
	if err != nil {
		return nil, err
	}

	if opts.AllowCache {
		if v, ok := r.cache.get(id); ok {
			r.log.Debug("resolve cache hit", zap.String("cid", id.String()))
			return v, nil
		}
	}

	fields, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	kind, err := document.Classify(fields)
	if err != nil {
		return nil, err
	}

	key, err := r.verify(kind, fields, opts)
	if err != nil {
		r.log.Warn("resolve verification failed",
			zap.String("cid", id.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}

	verdict, err := r.checkSafety(fields)
	if err != nil {
		r.log.Warn("resolve safety check failed",
			zap.String("cid", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	v := &Verified{CID: id, Kind: kind, Fields: fields, Key: key, Safety: verdict}
	r.cache.put(v)
	return v, nil
}

// ResolveUnverified fetches, parses and classifies without verifying the
// signature or safety-classifying the content. The result is never cached.
func (r *Resolver) ResolveUnverified(ctx context.Context, l link.Link) (*Unverified, error) {
	id, err := r.resolveCID(ctx, l)
	if err != nil {
		return nil, err
	}
	fields, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	kind, err := document.Classify(fields)
	if err != nil {
		return nil, err
	}
	r.log.Debug("resolved without verification", zap.String("cid", id.String()))
	return &Unverified{
		CID:     id,
		Kind:    kind,
		Fields:  fields,
		Skipped: "signature and content safety not checked",
	}, nil
}

func (r *Resolver) resolveCID(ctx context.Context, l link.Link) (cid.Cid, error) {
	switch l.Scheme {
	case link.SchemeContent:
		id, err := cid.Decode(l.Identifier)
		if err != nil {
			return cid.Undef, fxerr.Wrap(fxerr.KindInvalidLink, "FX-RES-001", "link identifier is not a CID", err)
		}
		return id, nil
	case link.SchemeName:
		if r.names == nil {
			return cid.Undef, fxerr.New(fxerr.KindInternal, "FX-RES-002", "no name layer configured")
		}
		id, err := r.names.Resolve(ctx, l.Identifier)
		if err != nil {
			return cid.Undef, err
		}
		return id, nil
	default:
		return cid.Undef, fxerr.New(fxerr.KindInvalidLink, "FX-RES-003", "unknown link scheme")
	}
}

func (r *Resolver) fetch(ctx context.Context, id cid.Cid) (document.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := r.store.Get(id)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			return nil, fxerr.Wrap(fxerr.KindNotFound, "FX-RES-101", "content not found: "+id.String(), err)
		case errors.Is(err, storage.ErrCIDMismatch):
			return nil, fxerr.Wrap(fxerr.KindSecurity, "FX-RES-102", "stored bytes do not match CID", err)
		default:
			return nil, fxerr.Wrap(fxerr.KindInternal, "FX-RES-103", "content fetch failed", err)
		}
	}

	// Backends already verify on read, but the resolver re-checks: a lying
	// backend must never produce a Verified document.
	got, err := cidutil.DocumentCID(b)
	if err != nil {
		return nil, fxerr.Wrap(fxerr.KindInternal, "FX-RES-104", "hashing fetched bytes", err)
	}
	if got != id {
		return nil, fxerr.New(fxerr.KindSecurity, "FX-RES-102", "fetched bytes do not match CID")
	}

	return document.Parse(b)
}

func (r *Resolver) verify(kind document.Kind, fields document.Fields, opts Options) (identity.PublicKey, error) {
	switch kind {
	case document.KindManifest, document.KindThreadManifest:
		if opts.ExpectedKey == nil {
			return identity.PublicKey{}, fxerr.New(fxerr.KindSecurity, "FX-RES-201",
				"manifest verification requires an expected key")
		}
		sig, _ := fields[document.SignatureKey].(string)
		if err := identity.Verify(fields, sig, *opts.ExpectedKey); err != nil {
			return identity.PublicKey{}, err
		}
		return *opts.ExpectedKey, nil
	default:
		return identity.VerifyEmbedded(fields)
	}
}

func (r *Resolver) checkSafety(fields document.Fields) (*safety.Verdict, error) {
	content, ok := fields["content"].(string)
	if !ok || content == "" {
		return nil, nil
	}
	declared, _ := fields["content_type"].(string)
	if declared == "" {
		declared = "text/plain"
	}
	verdict, err := r.safety.Check([]byte(content), declared)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}
