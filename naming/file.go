package naming

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/storage"
)

// FileStore keeps one file per name under a root directory. Publishes write a
// temp file, fsync it, then rename over the old binding, so a reader sees
// either the previous binding or the new one, never a torn record.
type FileStore struct {
	root string
}

var _ NameLayer = (*FileStore)(nil)

type fileBinding struct {
	CID       string `json:"cid"`
	UpdatedAt string `json:"updated_at"`
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("naming: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) Publish(ctx context.Context, name string, id cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFor(name)
	if err != nil {
		return err
	}
	if !id.Defined() {
		return storage.ErrInvalidCID
	}

	rec, err := json.Marshal(fileBinding{
		CID:       id.String(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".publish-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(rec); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileStore) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	path, err := f.pathFor(name)
	if err != nil {
		return cid.Undef, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cid.Undef, errNotBound(name)
		}
		return cid.Undef, err
	}

	var rec fileBinding
	if err := json.Unmarshal(b, &rec); err != nil {
		return cid.Undef, fxerr.Wrap(fxerr.KindInternal, "FX-NAME-301", "corrupt name binding: "+name, err)
	}
	id, err := cid.Decode(rec.CID)
	if err != nil {
		return cid.Undef, fxerr.Wrap(fxerr.KindInternal, "FX-NAME-302", "corrupt name binding: "+name, err)
	}
	return id, nil
}

func (f *FileStore) pathFor(name string) (string, error) {
	if name == "" {
		return "", fxerr.New(fxerr.KindMalformed, "FX-NAME-201", "empty name")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fxerr.New(fxerr.KindMalformed, "FX-NAME-202", "name is not a valid binding key")
	}
	return filepath.Join(f.root, name), nil
}
