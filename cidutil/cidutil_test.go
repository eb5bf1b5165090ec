package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestDocumentCID_KnownVector(t *testing.T) {
	got := DocumentCIDString([]byte("hello world"))
	want := "bafkreifzjut3te2nhyekklss27nh3k72ysco7y32koao5eei66wof36n5e"
	if got != want {
		t.Fatalf("DocumentCIDString: got %s want %s", got, want)
	}
}

func TestDocumentCID_Shape(t *testing.T) {
	id, err := DocumentCID([]byte("some document bytes"))
	if err != nil {
		t.Fatalf("DocumentCID: %v", err)
	}
	if id.Version() != 1 {
		t.Fatalf("version: got %d want 1", id.Version())
	}
	if id.Type() != cid.Raw {
		t.Fatalf("codec: got %d want raw", id.Type())
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		t.Fatalf("decode multihash: %v", err)
	}
	if dec.Code != multihash.SHA2_256 {
		t.Fatalf("hash func: got %d want sha2-256", dec.Code)
	}

	// Deterministic, and sensitive to every byte.
	again, err := DocumentCID([]byte("some document bytes"))
	if err != nil {
		t.Fatalf("DocumentCID: %v", err)
	}
	if id != again {
		t.Fatalf("same bytes must derive the same CID")
	}
	other, err := DocumentCID([]byte("some document bytes!"))
	if err != nil {
		t.Fatalf("DocumentCID: %v", err)
	}
	if id == other {
		t.Fatalf("different bytes must derive different CIDs")
	}
}
