package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PostIDLength is the hex length of a derived post ID: the first 128 bits of
// a sha256, enough for acceptable global-uniqueness odds while staying
// compact in links and manifests.
const PostIDLength = 32

// DerivePostID derives the deterministic identifier of a post from its
// author key, creation timestamp and content. Inputs are normalized (key
// lowercased, timestamp and content trimmed) so cosmetic differences do not
// fork identifiers.
//
// Display names never participate: a post's identifier survives the author
// renaming themselves.
func DerivePostID(pubkey, timestamp, content string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(pubkey))))
	h.Write([]byte(strings.TrimSpace(timestamp)))
	h.Write([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(h.Sum(nil))[:PostIDLength]
}

// NormalizeDisplayName reduces a display name to its collision-detection
// form: leading/trailing @ stripped, whitespace trimmed, lowercased. The
// result is used only to detect collisions, never as a uniqueness key and
// never in identifier derivation.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	name = strings.TrimSuffix(name, "@")
	return strings.ToLower(name)
}

// NameEntry is the minimal view of an already-known identity used for
// collision detection.
type NameEntry struct {
	DisplayName string
	Pubkey      string
}

// Collision describes a display-name collision: same normalized name,
// different public key. This is an advisory, not an error: decentralized
// display names are expected to collide, and identity is defined solely by
// the public key.
type Collision struct {
	Normalized     string
	ExistingName   string
	ExistingPubkey string
	NewPubkey      string
}

// DetectCollision returns a non-nil Collision iff some existing entry shares
// the normalized display name with a different public key. An entry with the
// same name and the same key is not a collision.
func DetectCollision(displayName, pubkey string, existing []NameEntry) *Collision {
	normalized := NormalizeDisplayName(displayName)
	for _, e := range existing {
		if NormalizeDisplayName(e.DisplayName) != normalized {
			continue
		}
		if e.Pubkey == pubkey {
			continue
		}
		return &Collision{
			Normalized:     normalized,
			ExistingName:   e.DisplayName,
			ExistingPubkey: e.Pubkey,
			NewPubkey:      pubkey,
		}
	}
	return nil
}
