package identity

import (
	"crypto/rand"
	"testing"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
)

func TestSignVerify_Ed25519RoundTrip(t *testing.T) {
	priv, err := GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}

	fields := document.Fields{
		"type":       "text",
		"pubkey":     priv.Public().String(),
		"content":    "signed words",
		"created_at": "2026-01-01T00:00:00Z",
	}
	if err := SignFields(fields, priv); err != nil {
		t.Fatalf("SignFields: %v", err)
	}

	pub, err := VerifyEmbedded(fields)
	if err != nil {
		t.Fatalf("VerifyEmbedded: %v", err)
	}
	if !pub.Equal(priv.Public()) {
		t.Fatalf("VerifyEmbedded returned the wrong key")
	}

	// Any mutation of a signed field invalidates the signature.
	fields["content"] = "different words"
	if _, err := VerifyEmbedded(fields); !fxerr.IsKind(err, fxerr.KindSecurity) {
		t.Fatalf("tampered: got %v want KindSecurity", err)
	}
}

func TestSignVerify_Dilithium3RoundTrip(t *testing.T) {
	priv, err := GenerateDilithium3(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateDilithium3: %v", err)
	}

	fields := document.Fields{
		"type":       "text",
		"pubkey":     priv.Public().String(),
		"content":    "post-quantum words",
		"created_at": "2026-01-01T00:00:00Z",
	}
	if err := SignFields(fields, priv); err != nil {
		t.Fatalf("SignFields: %v", err)
	}
	if _, err := VerifyEmbedded(fields); err != nil {
		t.Fatalf("VerifyEmbedded: %v", err)
	}
}

func TestSignVerify_HashAlgorithms(t *testing.T) {
	priv, err := GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}

	for _, alg := range []string{"sha256", "sha512", "sha3-256"} {
		fields := document.Fields{
			"type":       "text",
			"pubkey":     priv.Public().String(),
			"content":    "digest " + alg,
			"created_at": "2026-01-01T00:00:00Z",
			HashField:    alg,
		}
		if err := SignFields(fields, priv); err != nil {
			t.Fatalf("SignFields(%s): %v", alg, err)
		}
		if _, err := VerifyEmbedded(fields); err != nil {
			t.Fatalf("VerifyEmbedded(%s): %v", alg, err)
		}
	}

	fields := document.Fields{"pubkey": priv.Public().String(), HashField: "md5"}
	if _, err := Sign(fields, priv); !fxerr.IsKind(err, fxerr.KindSecurity) {
		t.Fatalf("md5: got %v want KindSecurity", err)
	}
}

func TestVerify_MissingOrBrokenSignature(t *testing.T) {
	priv, err := GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	pub := priv.Public()
	fields := document.Fields{"a": int64(1)}

	if err := Verify(fields, "", pub); !fxerr.IsKind(err, fxerr.KindSecurity) {
		t.Fatalf("empty signature: got %v want KindSecurity", err)
	}
	if err := Verify(fields, "not-hex", pub); !fxerr.IsKind(err, fxerr.KindSecurity) {
		t.Fatalf("bad hex: got %v want KindSecurity", err)
	}
	if err := Verify(fields, "00ff", pub); !fxerr.IsKind(err, fxerr.KindSecurity) {
		t.Fatalf("wrong length: got %v want KindSecurity", err)
	}
}

func TestParsePublicKey(t *testing.T) {
	priv, err := GenerateEd25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	wire := priv.Public().String()

	parsed, err := ParsePublicKey(wire)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if !parsed.Equal(priv.Public()) {
		t.Fatalf("ParsePublicKey round trip lost the key")
	}
	if parsed.String() != wire {
		t.Fatalf("String round trip: got %s want %s", parsed.String(), wire)
	}

	for _, bad := range []string{
		"",
		"ed25519:",
		"ed25519:zzzz",
		"ed25519:00ff",
		"rsa:00ff",
		"no-colon-at-all",
	} {
		if _, err := ParsePublicKey(bad); !fxerr.IsKind(err, fxerr.KindSecurity) {
			t.Fatalf("ParsePublicKey(%q): got %v want KindSecurity", bad, err)
		}
	}
}

func TestDeriveSeed_DeterministicPerStream(t *testing.T) {
	root := []byte("0123456789abcdef0123456789abcdef")

	a1, err := DeriveSeed(root, "posts")
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}
	a2, err := DeriveSeed(root, "posts")
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}
	b, err := DeriveSeed(root, "profile")
	if err != nil {
		t.Fatalf("DeriveSeed: %v", err)
	}

	if string(a1) != string(a2) {
		t.Fatalf("same stream must derive the same seed")
	}
	if string(a1) == string(b) {
		t.Fatalf("different streams must derive different seeds")
	}

	// Seeds are usable as ed25519 seeds.
	k1, err := Ed25519FromSeed(a1)
	if err != nil {
		t.Fatalf("Ed25519FromSeed: %v", err)
	}
	k2, err := Ed25519FromSeed(a2)
	if err != nil {
		t.Fatalf("Ed25519FromSeed: %v", err)
	}
	if !k1.Public().Equal(k2.Public()) {
		t.Fatalf("deterministic seeds must derive the same keypair")
	}
}

func TestDerivePostID(t *testing.T) {
	id := DerivePostID("ed25519:AABB", "2026-01-01T00:00:00Z", "hello")
	if len(id) != PostIDLength {
		t.Fatalf("id length: got %d want %d", len(id), PostIDLength)
	}

	// Normalization: key case and surrounding whitespace are cosmetic.
	same := DerivePostID("ED25519:aabb", " 2026-01-01T00:00:00Z ", "hello ")
	if id != same {
		t.Fatalf("normalized inputs must derive the same id: %s vs %s", id, same)
	}

	// Any real change forks the id.
	if id == DerivePostID("ed25519:AABB", "2026-01-01T00:00:00Z", "hello!") {
		t.Fatalf("different content must derive a different id")
	}
	if id == DerivePostID("ed25519:AABC", "2026-01-01T00:00:00Z", "hello") {
		t.Fatalf("different key must derive a different id")
	}
}

func TestDetectCollision(t *testing.T) {
	existing := []NameEntry{
		{DisplayName: "@Alice", Pubkey: "ed25519:aa"},
		{DisplayName: "bob", Pubkey: "ed25519:bb"},
	}

	// Same normalized name, different key: collision.
	c := DetectCollision("alice", "ed25519:cc", existing)
	if c == nil {
		t.Fatalf("expected collision for alice")
	}
	if c.ExistingPubkey != "ed25519:aa" || c.Normalized != "alice" {
		t.Fatalf("unexpected collision %+v", c)
	}

	// Same name, same key: not a collision.
	if c := DetectCollision("@Alice", "ed25519:aa", existing); c != nil {
		t.Fatalf("same key must not collide, got %+v", c)
	}

	// Fresh name: no collision.
	if c := DetectCollision("carol", "ed25519:cc", existing); c != nil {
		t.Fatalf("fresh name must not collide, got %+v", c)
	}
}
