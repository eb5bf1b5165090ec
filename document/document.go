// Package document defines the Filu-X signed-document model: the canonical
// serialization used as the signing scope, kind classification over parsed
// fields, and typed views of the four document kinds.
package document

import (
	"github.com/mikael1979/filu-x/fxerr"
)

// Kind is the classified document kind. Classification inspects
// required-field sets and either returns a definite variant or fails closed;
// it never guesses.
type Kind string

const (
	KindPost           Kind = "post"
	KindProfile        Kind = "profile"
	KindManifest       Kind = "manifest"
	KindThreadManifest Kind = "thread-manifest"
)

// Classify determines the kind of a parsed document from field shape.
//
// Required-field sets, checked in order:
//   - entries + author + version            -> Manifest
//   - posts + thread_id                     -> ThreadManifest
//   - pubkey + feed_name                    -> Profile
//   - pubkey + content type tag             -> Post
//
// Anything else is KindUnknownKind: a document whose kind cannot be
// determined is never rendered.
func Classify(f Fields) (Kind, error) {
	if _, ok := f["entries"].([]any); ok {
		if hasString(f, "author") && hasInt(f, "version") {
			return KindManifest, nil
		}
		return "", fxerr.New(fxerr.KindUnknownKind, "FX-DOC-101", "entries present but not a manifest shape")
	}
	if _, ok := f["posts"].([]any); ok {
		if hasString(f, "thread_id") {
			return KindThreadManifest, nil
		}
		return "", fxerr.New(fxerr.KindUnknownKind, "FX-DOC-102", "posts present but not a thread manifest shape")
	}
	if hasString(f, "pubkey") {
		if hasString(f, "feed_name") {
			return KindProfile, nil
		}
		if hasString(f, "type") {
			return KindPost, nil
		}
		return "", fxerr.New(fxerr.KindUnknownKind, "FX-DOC-103", "pubkey present but neither profile nor post shape")
	}
	return "", fxerr.New(fxerr.KindUnknownKind, "FX-DOC-104", "document kind cannot be determined")
}

// PostType is the tag carried in a post's "type" field.
type PostType string

const (
	PostText     PostType = "text"
	PostVote     PostType = "vote"
	PostReaction PostType = "reaction"
	PostRating   PostType = "rating"
	PostRepost   PostType = "repost"
)

func ValidPostType(t PostType) bool {
	switch t {
	case PostText, PostVote, PostReaction, PostRating, PostRepost:
		return true
	}
	return false
}

// Post is the typed view of a post document. Posts are immutable once
// created; corrections require a new post.
type Post struct {
	ID           string
	Type         PostType
	Author       string
	Pubkey       string
	Content      string
	ContentType  string
	Value        int64
	Tags         []string
	CreatedAt    string
	ReplyTo      string
	ThreadID     string
	Participants []string
	PrevPost     string
	Signature    string

	fields Fields
}

// Profile is the typed view of a profile document. The feed-name pointer is
// expected to stay stable across any number of posts; the profile itself is
// republished only when its pointers change.
type Profile struct {
	Author    string
	Pubkey    string
	FeedName  string
	CreatedAt string
	Signature string

	fields Fields
}

// ManifestEntry is one append-only entry in an author manifest.
type ManifestEntry struct {
	Path      string
	CID       string
	Type      string
	CreatedAt string
	Priority  int64
}

// Manifest is the typed view of an author manifest: a signed, versioned,
// append-only index of the author's documents. A manifest embeds no public
// key of its own; consumers verify it against an already-trusted key.
type Manifest struct {
	Author    string
	Version   int64
	UpdatedAt string
	Entries   []ManifestEntry
	Signature string

	fields Fields
}

// Fields returns the underlying parsed fields of a typed view.
func (p *Post) Fields() Fields     { return p.fields }
func (p *Profile) Fields() Fields  { return p.fields }
func (m *Manifest) Fields() Fields { return m.fields }

// AsPost converts parsed fields into a Post view.
func AsPost(f Fields) (*Post, error) {
	p := &Post{
		ID:          str(f, "id"),
		Type:        PostType(str(f, "type")),
		Author:      str(f, "author"),
		Pubkey:      str(f, "pubkey"),
		Content:     str(f, "content"),
		ContentType: str(f, "content_type"),
		CreatedAt:   str(f, "created_at"),
		ReplyTo:     str(f, "reply_to"),
		ThreadID:    str(f, "thread_id"),
		PrevPost:    str(f, "prev_post"),
		Signature:   str(f, SignatureKey),
		fields:      f,
	}
	if n, ok := f["value"].(int64); ok {
		p.Value = n
	}
	var err error
	if p.Tags, err = strSlice(f, "tags"); err != nil {
		return nil, err
	}
	if p.Participants, err = strSlice(f, "participants"); err != nil {
		return nil, err
	}
	if p.Pubkey == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-201", "post missing pubkey")
	}
	if !ValidPostType(p.Type) {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-202", "unknown post type "+string(p.Type))
	}
	return p, nil
}

// AsProfile converts parsed fields into a Profile view.
func AsProfile(f Fields) (*Profile, error) {
	p := &Profile{
		Author:    str(f, "author"),
		Pubkey:    str(f, "pubkey"),
		FeedName:  str(f, "feed_name"),
		CreatedAt: str(f, "created_at"),
		Signature: str(f, SignatureKey),
		fields:    f,
	}
	if p.Pubkey == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-211", "profile missing pubkey")
	}
	if p.FeedName == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-212", "profile missing feed_name")
	}
	return p, nil
}

// AsManifest converts parsed fields into a Manifest view.
func AsManifest(f Fields) (*Manifest, error) {
	m := &Manifest{
		Author:    str(f, "author"),
		UpdatedAt: str(f, "updated_at"),
		Signature: str(f, SignatureKey),
		fields:    f,
	}
	v, ok := f["version"].(int64)
	if !ok || v < 1 {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-221", "manifest version missing or not positive")
	}
	m.Version = v
	raw, _ := f["entries"].([]any)
	m.Entries = make([]ManifestEntry, 0, len(raw))
	for _, e := range raw {
		em, ok := e.(map[string]any)
		if !ok {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-222", "manifest entry is not an object")
		}
		ef := Fields(em)
		entry := ManifestEntry{
			Path:      str(ef, "path"),
			CID:       str(ef, "cid"),
			Type:      str(ef, "type"),
			CreatedAt: str(ef, "created_at"),
		}
		if n, ok := em["priority"].(int64); ok {
			entry.Priority = n
		}
		if entry.CID == "" {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-223", "manifest entry missing cid")
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

// EntryFields renders a ManifestEntry back into generic fields.
func (e ManifestEntry) EntryFields() map[string]any {
	return map[string]any{
		"path":       e.Path,
		"cid":        e.CID,
		"type":       e.Type,
		"created_at": e.CreatedAt,
		"priority":   e.Priority,
	}
}

func str(f Fields, key string) string {
	s, _ := f[key].(string)
	return s
}

func hasString(f Fields, key string) bool {
	s, ok := f[key].(string)
	return ok && s != ""
}

func hasInt(f Fields, key string) bool {
	_, ok := f[key].(int64)
	return ok
}

func strSlice(f Fields, key string) ([]string, error) {
	raw, ok := f[key].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-DOC-231", key+" contains a non-string element")
		}
		out = append(out, s)
	}
	return out, nil
}
