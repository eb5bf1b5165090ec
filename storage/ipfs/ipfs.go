// Package ipfs is a content store backed by the local Kubo "ipfs" CLI.
//
// It stores documents as raw blocks with explicit hash parameters so the
// resulting CIDs match the Filu-X CID contract (CIDv1 raw + sha2-256), and it
// validates returned bytes against the requested CID: transport reachability
// is never treated as validity.
//
// The adapter shells out to an external "ipfs" binary and works against the
// local repo; it does not require a running daemon.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/storage"
)

type CAS struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the path to the ipfs binary; empty means "ipfs" on PATH.
	Bin string
	// Env overrides the command environment (e.g. to set IPFS_PATH).
	// Nil means the process environment.
	Env []string
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, env: opts.Env}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	want, err := cidutil.DocumentCID(data)
	if err != nil {
		return cid.Undef, err
	}
	if !want.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	out, err := c.run(data,
		"block", "put",
		"--quiet",
		"--format=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return cid.Undef, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if got != want {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}

	out, err := c.run(nil, "block", "get", id.String())
	if err != nil {
		if isLikelyNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	got, err := cidutil.DocumentCID(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(nil, "block", "stat", id.String())
	return err == nil
}

func (c *CAS) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(string(ee.Stderr)); s != "" {
			return nil, fmt.Errorf("ipfs: %s", s)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isLikelyNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "block not found")
}
