// Package link implements the fx:// link model.
//
// A link names either content directly (fx://<cid>) or a mutable name
// (fx://name/<token>) that resolves to content downstream. Optional
// query-style hints carry advisory metadata for early UX filtering; they are
// never trusted for security decisions. Parsing is pure and side-effect free.
package link

import (
	"net/url"
	"strings"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
)

const (
	// Protocol is the fx link protocol prefix.
	Protocol = "fx"

	namePrefix = "name/"
)

type Scheme string

const (
	// SchemeContent links immutable content by CID.
	SchemeContent Scheme = "content"
	// SchemeName links a mutable name, resolved lazily downstream.
	SchemeName Scheme = "name"
)

// Hints are advisory parameters parsed from the link's query string.
type Hints struct {
	Author string
	Type   string
}

// Link is a parsed fx:// reference.
type Link struct {
	Scheme     Scheme
	Identifier string
	Hints      Hints
}

// Parse parses an fx:// link. Content identifiers must match the store's CID
// grammar; name tokens accept any well-formed token and are validated when
// resolved. Malformed input is KindInvalidLink, a caller error never retried.
func Parse(s string) (Link, error) {
	rest, ok := strings.CutPrefix(s, Protocol+"://")
	if !ok {
		return Link{}, fxerr.New(fxerr.KindInvalidLink, "FX-LINK-001", "expected "+Protocol+":// prefix")
	}

	var query string
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
	}
	rest = strings.TrimSpace(rest)

	hints, err := parseHints(query)
	if err != nil {
		return Link{}, err
	}

	if token, ok := strings.CutPrefix(rest, namePrefix); ok {
		if !validNameToken(token) {
			return Link{}, fxerr.New(fxerr.KindInvalidLink, "FX-LINK-002", "malformed name token")
		}
		return Link{Scheme: SchemeName, Identifier: token, Hints: hints}, nil
	}

	if !ValidCID(rest) {
		return Link{}, fxerr.New(fxerr.KindInvalidLink, "FX-LINK-003", "identifier does not match CID grammar")
	}
	return Link{Scheme: SchemeContent, Identifier: rest, Hints: hints}, nil
}

// Content builds a content link for a CID string.
func Content(cid string) Link { return Link{Scheme: SchemeContent, Identifier: cid} }

// Name builds a name link for a mutable-name token.
func Name(token string) Link { return Link{Scheme: SchemeName, Identifier: token} }

// String renders the link back to fx:// form. Parse(l.String()) round-trips
// for any link Parse accepted.
func (l Link) String() string {
	var sb strings.Builder
	sb.WriteString(Protocol + "://")
	if l.Scheme == SchemeName {
		sb.WriteString(namePrefix)
	}
	sb.WriteString(l.Identifier)

	q := url.Values{}
	if l.Hints.Author != "" {
		q.Set("author", l.Hints.Author)
	}
	if l.Hints.Type != "" {
		q.Set("type", l.Hints.Type)
	}
	if len(q) > 0 {
		sb.WriteByte('?')
		sb.WriteString(q.Encode())
	}
	return sb.String()
}

// ForProfile builds a content link to a profile with display hints attached.
func ForProfile(cid string, pub identity.PublicKey) Link {
	return Link{
		Scheme:     SchemeContent,
		Identifier: cid,
		Hints:      Hints{Author: shortKey(pub), Type: "profile"},
	}
}

// ForPost builds a content link to a post with display hints attached.
func ForPost(cid string, pub identity.PublicKey) Link {
	return Link{
		Scheme:     SchemeContent,
		Identifier: cid,
		Hints:      Hints{Author: shortKey(pub), Type: "post"},
	}
}

// ValidCID reports whether s matches the external store's identifier
// grammar: base alphanumeric, at least 46 characters.
func ValidCID(s string) bool {
	if len(s) < 46 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

func validNameToken(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' {
			continue
		}
		return false
	}
	return true
}

func parseHints(query string) (Hints, error) {
	if query == "" {
		return Hints{}, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return Hints{}, fxerr.Wrap(fxerr.KindInvalidLink, "FX-LINK-004", "malformed query string", err)
	}
	return Hints{Author: values.Get("author"), Type: values.Get("type")}, nil
}

// shortKey truncates a public key for display inside link hints.
func shortKey(pub identity.PublicKey) string {
	s := pub.String()
	alg, enc, ok := strings.Cut(s, ":")
	if !ok || len(enc) < 8 {
		return s
	}
	return alg + ":" + enc[:8]
}
