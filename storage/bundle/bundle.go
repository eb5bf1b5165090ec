// Package bundle moves documents between stores without a network.
//
// A bundle is a deterministic TAR archive of CAS blocks, suitable for
// copying onto removable media and importing on another node. Export
// validates every block against its CID before writing; Import re-validates
// against both the entry name and the computed CID, so a tampered bundle
// never reaches the destination store. The optional index.json records the
// block list and any name bindings the sender chose to include; bindings are
// advisory and are published only if the importing side decides to.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls what goes into a bundle beyond the blocks.
type ExportOptions struct {
	// Names carries name bindings (fx name token to CID) to the receiving
	// node. Non-authoritative: the importer decides whether to publish them.
	Names map[string]cid.Cid
	// IncludeIndex controls whether index.json is written.
	IncludeIndex bool
}

// Export writes a bundle containing the blocks for the given CIDs.
//
// The output bytes are deterministic for a given input set: duplicate CIDs
// collapse, entries are ordered lexicographically and TAR headers are
// normalized. Every block is read back from cas and checked against its CID.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	ordered := make([]string, 0, len(uniq))
	for s := range uniq {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	tw := tar.NewWriter(w)

	blocks := make([]indexBlock, 0, len(ordered))
	for _, s := range ordered {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		got, err := cidutil.DocumentCID(b)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if !got.Equals(id) {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeEntry(tw, "blocks/"+s, b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := index{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
		}
		if len(opts.Names) > 0 {
			keys := make([]string, 0, len(opts.Names))
			for k := range opts.Names {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if k == "" {
					_ = tw.Close()
					return fmt.Errorf("bundle: empty name token")
				}
				v := opts.Names[k]
				if !v.Defined() {
					_ = tw.Close()
					return storage.ErrInvalidCID
				}
				idx.Names = append(idx.Names, indexName{Name: k, CID: v.String()})
			}
		}

		b, err := json.Marshal(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeEntry(tw, "index.json", append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown allows entries outside the bundle layout instead of
	// failing closed on them.
	IgnoreUnknown bool
}

// Summary reports what an import found.
type Summary struct {
	// Blocks is the number of blocks stored.
	Blocks int
	// Names holds the advisory name bindings from index.json, if any.
	// Nothing is published; the caller decides what to do with them.
	Names map[string]cid.Cid
}

// Import reads a bundle from r and stores all blocks into cas.
//
// Default behavior is fail-closed: entries outside the bundle layout cause
// an error. Each block must match both its entry-name CID and the CID
// recomputed from its bytes.
func Import(r io.Reader, cas storage.CAS) (*Summary, error) {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions is Import with explicit options.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) (*Summary, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	sum := &Summary{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return sum, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == "index.json" {
			b, rerr := io.ReadAll(tr)
			if rerr != nil {
				return nil, rerr
			}
			names, derr := decodeIndexNames(b)
			if derr != nil {
				return nil, derr
			}
			if len(names) > 0 {
				sum.Names = names
			}
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, rerr
		}
		got, herr := cidutil.DocumentCID(payload)
		if herr != nil {
			return nil, herr
		}
		if !got.Equals(id) {
			return nil, storage.ErrCIDMismatch
		}

		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		putID, perr := cas.Put(payload)
		if perr != nil {
			return nil, perr
		}
		if !putID.Equals(id) {
			return nil, storage.ErrCIDMismatch
		}
		sum.Blocks++
	}
}

type index struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Names     []indexName  `json:"names,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexName struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func decodeIndexNames(b []byte) (map[string]cid.Cid, error) {
	var idx index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("bundle: malformed index.json: %w", err)
	}
	if len(idx.Names) == 0 {
		return nil, nil
	}
	names := make(map[string]cid.Cid, len(idx.Names))
	for _, n := range idx.Names {
		if n.Name == "" {
			return nil, fmt.Errorf("bundle: empty name token in index.json")
		}
		id, err := cid.Decode(n.CID)
		if err != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		names[n.Name] = id
	}
	return names, nil
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
