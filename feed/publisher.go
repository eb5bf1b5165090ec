// Package feed covers the mutable side of an identity: publishing manifest
// updates under its name, tracking manifest versions seen from others, and
// syncing a follow list.
package feed

import (
	"context"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/storage"
)

// Publisher maintains one identity's author manifest: load, append, re-sign,
// store, republish. Entries are append-only and the version strictly
// increases; a Publisher never rewrites history.
type Publisher struct {
	Store storage.CAS
	Names naming.NameLayer
	Key   identity.PrivateKey

	// Author is the display author recorded in the manifest.
	Author string

	// Log defaults to a nop logger.
	Log *zap.Logger

	manifest *document.Manifest
	name     string
}

// Init loads the current manifest from the name layer, or starts a fresh one
// at version 0 if the owner has never published.
func (p *Publisher) Init(ctx context.Context) error {
	name, err := naming.DeriveName(p.Key.Public())
	if err != nil {
		return err
	}
	p.name = name
	if p.Log == nil {
		p.Log = zap.NewNop()
	}

	id, err := p.Names.Resolve(ctx, name)
	if naming.NotBound(err) {
		p.manifest = nil
		return nil
	}
	if err != nil {
		return err
	}

	b, err := p.Store.Get(id)
	if err != nil {
		return fxerr.Wrap(fxerr.KindNotFound, "FX-FEED-001", "manifest bytes missing for bound name", err)
	}
	fields, err := document.Parse(b)
	if err != nil {
		return err
	}
	sig, _ := fields[document.SignatureKey].(string)
	if err := identity.Verify(fields, sig, p.Key.Public()); err != nil {
		return err
	}
	m, err := document.AsManifest(fields)
	if err != nil {
		return err
	}
	p.manifest = m
	return nil
}

// Name is the manifest's derived name. Valid after Init.
func (p *Publisher) Name() string { return p.name }

// Version is the current manifest version, 0 before the first append.
func (p *Publisher) Version() int64 {
	if p.manifest == nil {
		return 0
	}
	return p.manifest.Version
}

// Append adds entry to the manifest, bumps the version, re-signs, stores the
// new manifest and republishes the name. It returns the new manifest CID.
func (p *Publisher) Append(ctx context.Context, entry document.ManifestEntry, updatedAt string) (cid.Cid, error) {
	if p.name == "" {
		return cid.Undef, fxerr.New(fxerr.KindInternal, "FX-FEED-003", "publisher not initialized")
	}
	if entry.CID == "" {
		return cid.Undef, fxerr.New(fxerr.KindMalformed, "FX-FEED-002", "manifest entry missing cid")
	}

	var entries []document.ManifestEntry
	if p.manifest != nil {
		entries = append(entries, p.manifest.Entries...)
	}
	entries = append(entries, entry)

	version := p.Version() + 1
	rendered := make([]any, 0, len(entries))
	for _, e := range entries {
		rendered = append(rendered, e.EntryFields())
	}
	fields := document.Fields{
		"author":     p.Author,
		"version":    version,
		"updated_at": updatedAt,
		"entries":    rendered,
	}
	if err := identity.SignFields(fields, p.Key); err != nil {
		return cid.Undef, err
	}

	b, err := document.Encode(fields)
	if err != nil {
		return cid.Undef, err
	}
	id, err := p.Store.Put(b)
	if err != nil {
		return cid.Undef, err
	}
	if err := p.Names.Publish(ctx, p.name, id); err != nil {
		return cid.Undef, err
	}

	m, err := document.AsManifest(fields)
	if err != nil {
		return cid.Undef, err
	}
	p.manifest = m

	p.Log.Info("manifest published",
		zap.String("name", p.name),
		zap.Int64("version", version),
		zap.String("cid", id.String()),
	)
	return id, nil
}
