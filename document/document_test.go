package document

import (
	"testing"

	"github.com/mikael1979/filu-x/fxerr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		fields Fields
		want   Kind
	}{
		{
			name: "manifest",
			fields: Fields{
				"entries": []any{},
				"author":  "alice",
				"version": int64(3),
			},
			want: KindManifest,
		},
		{
			name: "thread manifest",
			fields: Fields{
				"posts":     []any{},
				"thread_id": "t-1",
			},
			want: KindThreadManifest,
		},
		{
			name: "profile",
			fields: Fields{
				"pubkey":    "ed25519:aa",
				"feed_name": "kfeed",
			},
			want: KindProfile,
		},
		{
			name: "post",
			fields: Fields{
				"pubkey": "ed25519:aa",
				"type":   "text",
			},
			want: KindPost,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.fields)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Classify: got %s want %s", got, tc.want)
			}
		})
	}
}

func TestClassify_FailsClosed(t *testing.T) {
	cases := []struct {
		name   string
		fields Fields
	}{
		{"empty", Fields{}},
		{"entries without author", Fields{"entries": []any{}, "version": int64(1)}},
		{"entries without version", Fields{"entries": []any{}, "author": "a"}},
		{"posts without thread id", Fields{"posts": []any{}}},
		{"pubkey alone", Fields{"pubkey": "ed25519:aa"}},
		{"content without pubkey", Fields{"content": "hi", "type": "text"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify(tc.fields)
			if !fxerr.IsKind(err, fxerr.KindUnknownKind) {
				t.Fatalf("Classify: got %v want KindUnknownKind", err)
			}
		})
	}
}

func TestAsPost_Validation(t *testing.T) {
	base := func() Fields {
		return Fields{
			"id":         "aabb",
			"type":       "text",
			"pubkey":     "ed25519:aa",
			"content":    "hello",
			"created_at": "2026-01-01T00:00:00Z",
			"tags":       []any{"a", "b"},
		}
	}

	p, err := AsPost(base())
	if err != nil {
		t.Fatalf("AsPost: %v", err)
	}
	if p.Type != PostText || len(p.Tags) != 2 {
		t.Fatalf("AsPost: unexpected view %+v", p)
	}

	f := base()
	f["type"] = "shout"
	if _, err := AsPost(f); !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("unknown type: got %v want KindMalformed", err)
	}

	f = base()
	delete(f, "pubkey")
	if _, err := AsPost(f); !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("missing pubkey: got %v want KindMalformed", err)
	}

	f = base()
	f["tags"] = []any{"ok", int64(3)}
	if _, err := AsPost(f); !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("non-string tag: got %v want KindMalformed", err)
	}
}

func TestAsManifest_Validation(t *testing.T) {
	m, err := AsManifest(Fields{
		"author":  "alice",
		"version": int64(2),
		"entries": []any{
			map[string]any{"path": "posts/1", "cid": "bafy1", "priority": int64(5)},
		},
	})
	if err != nil {
		t.Fatalf("AsManifest: %v", err)
	}
	if m.Version != 2 || len(m.Entries) != 1 || m.Entries[0].Priority != 5 {
		t.Fatalf("AsManifest: unexpected view %+v", m)
	}

	// Version zero or missing is malformed.
	_, err = AsManifest(Fields{"author": "alice", "version": int64(0), "entries": []any{}})
	if !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("version 0: got %v want KindMalformed", err)
	}

	// Entries without a cid are malformed.
	_, err = AsManifest(Fields{
		"author":  "alice",
		"version": int64(1),
		"entries": []any{map[string]any{"path": "posts/1"}},
	})
	if !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("entry without cid: got %v want KindMalformed", err)
	}
}

func TestAsProfile_Validation(t *testing.T) {
	if _, err := AsProfile(Fields{"pubkey": "ed25519:aa"}); !fxerr.IsKind(err, fxerr.KindMalformed) {
		t.Fatalf("missing feed_name: got %v want KindMalformed", err)
	}
	p, err := AsProfile(Fields{"pubkey": "ed25519:aa", "feed_name": "kfeed", "author": "alice"})
	if err != nil {
		t.Fatalf("AsProfile: %v", err)
	}
	if p.FeedName != "kfeed" {
		t.Fatalf("AsProfile: unexpected view %+v", p)
	}
}
