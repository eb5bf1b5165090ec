// Package identity implements Filu-X identity primitives: key handling,
// canonical-scope signing and verification, deterministic post-ID derivation
// and display-name normalization.
//
// Identity is cryptographic, not social: a publisher is its public key, and
// display names are advisory labels with no uniqueness guarantee.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/mikael1979/filu-x/fxerr"
)

type Algorithm string

const (
	AlgEd25519    Algorithm = "ed25519"
	AlgDilithium3 Algorithm = "dilithium3"
)

// PublicKey is a parsed publisher key. Wire format is "alg:encoding",
// with hex encoding for ed25519 and base64 for dilithium3.
type PublicKey struct {
	Alg Algorithm
	Raw []byte
}

func (p PublicKey) String() string {
	switch p.Alg {
	case AlgDilithium3:
		return string(p.Alg) + ":" + base64.StdEncoding.EncodeToString(p.Raw)
	default:
		return string(p.Alg) + ":" + hex.EncodeToString(p.Raw)
	}
}

// Equal compares algorithm and raw bytes.
func (p PublicKey) Equal(o PublicKey) bool {
	return p.Alg == o.Alg && bytes.Equal(p.Raw, o.Raw)
}

// ParsePublicKey parses the "alg:encoding" wire form. Malformed keys are
// security errors: a document whose embedded key cannot be parsed cannot be
// verified and must not be trusted.
func ParsePublicKey(s string) (PublicKey, error) {
	alg, enc, ok := strings.Cut(s, ":")
	if !ok {
		return PublicKey{}, fxerr.New(fxerr.KindSecurity, "FX-KEY-001", "public key missing algorithm prefix")
	}
	switch Algorithm(alg) {
	case AlgEd25519:
		raw, err := hex.DecodeString(strings.ToLower(enc))
		if err != nil {
			return PublicKey{}, fxerr.Wrap(fxerr.KindSecurity, "FX-KEY-002", "invalid ed25519 key hex", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return PublicKey{}, fxerr.New(fxerr.KindSecurity, "FX-KEY-003", "invalid ed25519 public key length")
		}
		return PublicKey{Alg: AlgEd25519, Raw: raw}, nil
	case AlgDilithium3:
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return PublicKey{}, fxerr.Wrap(fxerr.KindSecurity, "FX-KEY-004", "invalid dilithium3 key base64", err)
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return PublicKey{}, fxerr.Wrap(fxerr.KindSecurity, "FX-KEY-005", "invalid dilithium3 public key", err)
		}
		return PublicKey{Alg: AlgDilithium3, Raw: raw}, nil
	default:
		return PublicKey{}, fxerr.New(fxerr.KindSecurity, "FX-KEY-006", "unsupported key algorithm "+alg)
	}
}

// PrivateKey wraps one of the supported signing keys.
type PrivateKey struct {
	alg Algorithm
	ed  ed25519.PrivateKey
	dil *mode3.PrivateKey
}

func (p PrivateKey) Alg() Algorithm { return p.alg }

// Public returns the matching public key.
func (p PrivateKey) Public() PublicKey {
	switch p.alg {
	case AlgEd25519:
		return PublicKey{Alg: AlgEd25519, Raw: p.ed.Public().(ed25519.PublicKey)}
	case AlgDilithium3:
		raw, _ := p.dil.Public().(*mode3.PublicKey).MarshalBinary()
		return PublicKey{Alg: AlgDilithium3, Raw: raw}
	}
	return PublicKey{}
}

// GenerateEd25519 creates a fresh ed25519 keypair from rand.
func GenerateEd25519(rand io.Reader) (PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{alg: AlgEd25519, ed: priv}, nil
}

// Ed25519FromSeed rebuilds the deterministic keypair for a 32-byte seed.
func Ed25519FromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return PrivateKey{}, errors.New("identity: ed25519 seed must be 32 bytes")
	}
	return PrivateKey{alg: AlgEd25519, ed: ed25519.NewKeyFromSeed(seed)}, nil
}

// GenerateDilithium3 creates a fresh dilithium3 keypair from rand.
func GenerateDilithium3(rand io.Reader) (PrivateKey, error) {
	_, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{alg: AlgDilithium3, dil: priv}, nil
}

// DeriveSeed deterministically derives a per-stream ed25519 seed from a root
// seed. Same root and stream always yield the same seed, so a publisher can
// recreate a stream identity (profile, manifest, per-thread) without
// persisted state. The cost is the flip side: there is no rotation for a
// stream short of a new root key.
func DeriveSeed(root []byte, stream string) ([]byte, error) {
	if len(root) != ed25519.SeedSize {
		return nil, errors.New("identity: root seed must be 32 bytes")
	}
	if stream == "" {
		return nil, errors.New("identity: stream label is required")
	}
	h := sha256.New()
	h.Write(root)
	h.Write([]byte{0})
	h.Write([]byte("filu-x-stream-v1"))
	h.Write([]byte{0})
	h.Write([]byte(stream))
	sum := h.Sum(nil)
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}
