package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
)

// HashField is the optional document field naming the digest algorithm used
// for its signature. Absent means sha256.
const HashField = "sig_hash"

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "", "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fxerr.New(fxerr.KindSecurity, "FX-SEC-201", "unsupported sig_hash "+hashAlg)
	}
}

// Sign computes the hex signature over digest(CanonicalBytes(fields)).
// The signature field itself is excluded from the scope by CanonicalBytes,
// so signing a document that already carries a stale signature is safe.
func Sign(fields document.Fields, priv PrivateKey) (string, error) {
	scope, err := document.CanonicalBytes(fields)
	if err != nil {
		return "", err
	}
	hashAlg, _ := fields[HashField].(string)
	digest, err := digestFor(hashAlg, scope)
	if err != nil {
		return "", err
	}
	switch priv.alg {
	case AlgEd25519:
		return hex.EncodeToString(ed25519.Sign(priv.ed, digest)), nil
	case AlgDilithium3:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(priv.dil, digest, sig)
		return hex.EncodeToString(sig), nil
	default:
		return "", fxerr.New(fxerr.KindInternal, "FX-SEC-202", "private key has no algorithm")
	}
}

// SignFields signs fields in place, storing the signature under the
// document's signature key.
func SignFields(fields document.Fields, priv PrivateKey) error {
	sig, err := Sign(fields, priv)
	if err != nil {
		return err
	}
	fields[document.SignatureKey] = sig
	return nil
}

// Verify recomputes the exact canonical scope the signer used and checks the
// signature against pub. Every failure mode is a security error, distinct
// from resolution failures and never downgraded.
func Verify(fields document.Fields, sigHex string, pub PublicKey) error {
	if sigHex == "" {
		return fxerr.New(fxerr.KindSecurity, "FX-SEC-101", "missing signature")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fxerr.Wrap(fxerr.KindSecurity, "FX-SEC-102", "invalid signature hex", err)
	}
	scope, err := document.CanonicalBytes(fields)
	if err != nil {
		return err
	}
	hashAlg, _ := fields[HashField].(string)
	digest, err := digestFor(hashAlg, scope)
	if err != nil {
		return err
	}
	switch pub.Alg {
	case AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return fxerr.New(fxerr.KindSecurity, "FX-SEC-103", "invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub.Raw), digest, sig) {
			return fxerr.New(fxerr.KindSecurity, "FX-SEC-401", "signature invalid")
		}
		return nil
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return fxerr.New(fxerr.KindSecurity, "FX-SEC-104", "invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub.Raw); err != nil {
			return fxerr.Wrap(fxerr.KindSecurity, "FX-SEC-105", "invalid dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return fxerr.New(fxerr.KindSecurity, "FX-SEC-401", "signature invalid")
		}
		return nil
	default:
		return fxerr.New(fxerr.KindSecurity, "FX-SEC-106", "unsupported key algorithm")
	}
}

// VerifyEmbedded verifies a document against its own embedded pubkey field.
func VerifyEmbedded(fields document.Fields) (PublicKey, error) {
	raw, _ := fields["pubkey"].(string)
	if raw == "" {
		return PublicKey{}, fxerr.New(fxerr.KindSecurity, "FX-SEC-107", "document has no embedded pubkey")
	}
	pub, err := ParsePublicKey(raw)
	if err != nil {
		return PublicKey{}, err
	}
	sig, _ := fields[document.SignatureKey].(string)
	if err := Verify(fields, sig, pub); err != nil {
		return PublicKey{}, err
	}
	return pub, nil
}
