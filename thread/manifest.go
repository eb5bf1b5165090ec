// Package thread models thread manifests and rebuilds reply forests from
// resolved posts.
package thread

import (
	"sort"

	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/fxerr"
)

// PostRef is one post reference inside a thread manifest.
type PostRef struct {
	CID       string
	Author    string
	CreatedAt string
}

// Manifest is a thread manifest: the thread's identity plus an ordered,
// duplicate-free set of post references. Ordering is always (created_at, cid)
// so two nodes that saw the same posts render the same thread.
type Manifest struct {
	ThreadID    string
	Title       string
	Description string
	Creator     string
	CreatedAt   string
	UpdatedAt   string

	Posts        []PostRef
	Participants []string
}

func NewManifest(threadID, title, creator, createdAt string) *Manifest {
	m := &Manifest{
		ThreadID:  threadID,
		Title:     title,
		Creator:   creator,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if creator != "" {
		m.Participants = []string{creator}
	}
	return m
}

// AddPost inserts ref, keeping posts sorted and participants a sorted set.
// Adding a CID already present is a no-op; it reports whether the manifest
// changed.
func (m *Manifest) AddPost(ref PostRef) bool {
	for _, p := range m.Posts {
		if p.CID == ref.CID {
			return false
		}
	}
	m.Posts = append(m.Posts, ref)
	sort.Slice(m.Posts, func(i, j int) bool {
		a, b := m.Posts[i], m.Posts[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.CID < b.CID
	})
	if ref.Author != "" {
		m.addParticipant(ref.Author)
	}
	if ref.CreatedAt > m.UpdatedAt {
		m.UpdatedAt = ref.CreatedAt
	}
	return true
}

func (m *Manifest) addParticipant(author string) {
	for _, p := range m.Participants {
		if p == author {
			return
		}
	}
	m.Participants = append(m.Participants, author)
	sort.Strings(m.Participants)
}

// ParticipantCount is the size of the participant set.
func (m *Manifest) ParticipantCount() int { return len(m.Participants) }

// Fields renders the manifest into generic document fields for signing and
// publication.
func (m *Manifest) Fields() document.Fields {
	posts := make([]any, 0, len(m.Posts))
	for _, p := range m.Posts {
		posts = append(posts, map[string]any{
			"cid":        p.CID,
			"author":     p.Author,
			"created_at": p.CreatedAt,
		})
	}
	participants := make([]any, 0, len(m.Participants))
	for _, p := range m.Participants {
		participants = append(participants, p)
	}
	return document.Fields{
		"thread_id":         m.ThreadID,
		"title":             m.Title,
		"description":       m.Description,
		"creator":           m.Creator,
		"created_at":        m.CreatedAt,
		"updated_at":        m.UpdatedAt,
		"posts":             posts,
		"participants":      participants,
		"participant_count": int64(len(m.Participants)),
	}
}

// FromFields rebuilds a Manifest from parsed document fields.
func FromFields(f document.Fields) (*Manifest, error) {
	m := &Manifest{
		ThreadID:    stringField(f, "thread_id"),
		Title:       stringField(f, "title"),
		Description: stringField(f, "description"),
		Creator:     stringField(f, "creator"),
		CreatedAt:   stringField(f, "created_at"),
		UpdatedAt:   stringField(f, "updated_at"),
	}
	if m.ThreadID == "" {
		return nil, fxerr.New(fxerr.KindMalformed, "FX-THREAD-001", "thread manifest missing thread_id")
	}

	raw, _ := f["posts"].([]any)
	for _, e := range raw {
		em, ok := e.(map[string]any)
		if !ok {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-THREAD-002", "thread post ref is not an object")
		}
		ef := document.Fields(em)
		ref := PostRef{
			CID:       stringField(ef, "cid"),
			Author:    stringField(ef, "author"),
			CreatedAt: stringField(ef, "created_at"),
		}
		if ref.CID == "" {
			return nil, fxerr.New(fxerr.KindMalformed, "FX-THREAD-003", "thread post ref missing cid")
		}
		m.AddPost(ref)
	}

	if parts, ok := f["participants"].([]any); ok {
		for _, p := range parts {
			s, ok := p.(string)
			if !ok {
				return nil, fxerr.New(fxerr.KindMalformed, "FX-THREAD-004", "participants contains a non-string element")
			}
			m.addParticipant(s)
		}
	}
	return m, nil
}

func stringField(f document.Fields, key string) string {
	s, _ := f[key].(string)
	return s
}
