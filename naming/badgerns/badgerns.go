// Package badgerns is a Badger-backed name store for nodes that keep many
// bindings locally and need them to survive restarts.
package badgerns

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/storage"
)

type Store struct {
	db *badger.DB
}

var _ naming.NameLayer = (*Store)(nil)

type record struct {
	CID       string `json:"cid"`
	UpdatedAt string `json:"updated_at"`
}

// Open opens (or creates) a Badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing Badger handle; the caller owns its lifecycle.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Publish(ctx context.Context, name string, id cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fxerr.New(fxerr.KindMalformed, "FX-NAME-201", "empty name")
	}
	if !id.Defined() {
		return storage.ErrInvalidCID
	}

	val, err := json.Marshal(record{
		CID:       id.String(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), val)
	})
}

func (s *Store) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return cid.Undef, fxerr.New(fxerr.KindNameNotBound, "FX-NAME-101", "name not bound: "+name)
		}
		return cid.Undef, err
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return cid.Undef, fxerr.Wrap(fxerr.KindInternal, "FX-NAME-301", "corrupt name binding: "+name, err)
	}
	id, err := cid.Decode(rec.CID)
	if err != nil {
		return cid.Undef, fxerr.Wrap(fxerr.KindInternal, "FX-NAME-302", "corrupt name binding: "+name, err)
	}
	return id, nil
}
