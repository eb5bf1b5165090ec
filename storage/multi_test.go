package storage_test

import (
	"testing"

	"github.com/mikael1979/filu-x/storage"
	"github.com/mikael1979/filu-x/storage/memcas"
)

func TestMultiCAS_OrderedFallback(t *testing.T) {
	primary := memcas.New()
	secondary := memcas.New()

	// Object only present in the secondary store.
	id, err := secondary.Put([]byte("only on the fallback"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	multi := storage.MultiCAS{Stores: []storage.CAS{primary, secondary}}

	if !multi.Has(id) {
		t.Fatalf("Has: expected true via fallback")
	}
	got, err := multi.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "only on the fallback" {
		t.Fatalf("payload mismatch")
	}

	// Put goes to the first store only.
	id2, err := multi.Put([]byte("written through multi"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !primary.Has(id2) {
		t.Fatalf("primary should hold the new object")
	}
	if secondary.Has(id2) {
		t.Fatalf("secondary should not hold the new object")
	}
}

func TestReplicatingCAS_PutAll(t *testing.T) {
	a := memcas.New()
	b := memcas.New()

	repl := storage.ReplicatingCAS{Backends: []storage.NamedCAS{
		{Name: "a", CAS: a},
		{Name: "b", CAS: b},
	}}

	payload := []byte("replicated everywhere")
	id, perBackend, err := repl.PutAll(payload)
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(perBackend) != 2 {
		t.Fatalf("per-backend map: got %d entries want 2", len(perBackend))
	}
	for name, got := range perBackend {
		if got != id {
			t.Fatalf("backend %q disagreed: got %s want %s", name, got, id)
		}
	}
	if !a.Has(id) || !b.Has(id) {
		t.Fatalf("both backends should hold the object")
	}

	got, err := repl.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}
