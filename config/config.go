// Package config loads a node's backend selection from a JSON file: which
// content-store backends to use (and how writes fan out across them), and
// which name-layer backend holds the mutable bindings.
//
// Example:
//
//	{
//	  "store": {
//	    "write_policy": "all",
//	    "backends": [
//	      {"name": "localfs", "config": {"dir": "/var/lib/filu-x/cas"}},
//	      {"name": "grpc", "config": {"target": "cas.example.org:7411"}}
//	    ]
//	  },
//	  "names": {"backend": "badger", "config": {"dir": "/var/lib/filu-x/names"}}
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/naming/badgerns"
	"github.com/mikael1979/filu-x/naming/grpcns"
	"github.com/mikael1979/filu-x/storage"
	"github.com/mikael1979/filu-x/storage/grpccas"
	"github.com/mikael1979/filu-x/storage/ipfs"
	"github.com/mikael1979/filu-x/storage/localfs"
	"github.com/mikael1979/filu-x/storage/memcas"
)

// Config is the node configuration document.
type Config struct {
	Store StoreConfig `json:"store"`
	Names NameConfig  `json:"names"`
}

// StoreConfig selects content-store backends.
//
// WritePolicy values:
//   - "first" (default): write only to the first backend; reads fall back in
//     slice order
//   - "all": write to all backends and require CID agreement
type StoreConfig struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

// BackendConfig names one backend plus its backend-specific settings.
type BackendConfig struct {
	// Name selects the backend implementation: "memory", "localfs", "ipfs"
	// or "grpc".
	Name string `json:"name"`
	// ID is an optional stable alias used in per-backend reporting; Name is
	// used when empty.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

// NameConfig selects the name-layer backend: "memory", "file", "badger" or
// "grpc".
type NameConfig struct {
	Backend string            `json:"backend"`
	Config  map[string]string `json:"config,omitempty"`
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Store.Backends) == 0 {
		return errors.New("config: at least one store backend is required")
	}
	seen := make(map[string]struct{}, len(c.Store.Backends))
	for _, b := range c.Store.Backends {
		if b.Name == "" {
			return errors.New("config: store backend name is required")
		}
		id := b.Name
		if b.ID != "" {
			id = b.ID
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("config: duplicate store backend id %q", id)
		}
		seen[id] = struct{}{}
	}
	switch c.Store.WritePolicy {
	case "", "first", "all":
	default:
		return fmt.Errorf("config: invalid write_policy %q", c.Store.WritePolicy)
	}
	if c.Names.Backend == "" {
		return errors.New("config: name backend is required")
	}
	return nil
}

// OpenStore opens the configured content store and returns it with a close
// function releasing every opened backend.
func (c Config) OpenStore() (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedCAS, 0, len(c.Store.Backends))
	closers := make([]func() error, 0, len(c.Store.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Store.Backends {
		cas, closeFn, err := openStoreBackend(b)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		name := b.Name
		if b.ID != "" {
			name = b.ID
		}
		named = append(named, storage.NamedCAS{Name: name, CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.Store.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	stores := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.CAS)
	}
	return storage.MultiCAS{Stores: stores}, closeAll, nil
}

func openStoreBackend(b BackendConfig) (storage.CAS, func() error, error) {
	switch b.Name {
	case "memory":
		return memcas.New(), nil, nil
	case "localfs":
		dir := b.Config["dir"]
		if dir == "" {
			return nil, nil, errors.New("config: localfs backend requires config.dir")
		}
		cas, err := localfs.New(dir)
		if err != nil {
			return nil, nil, err
		}
		return cas, nil, nil
	case "ipfs":
		var env []string
		if p := b.Config["ipfs-path"]; p != "" {
			env = append(os.Environ(), "IPFS_PATH="+p)
		}
		return ipfs.New(ipfs.Options{Bin: b.Config["bin"], Env: env}), nil, nil
	case "grpc":
		target := b.Config["target"]
		if target == "" {
			return nil, nil, errors.New("config: grpc backend requires config.target")
		}
		client, err := grpccas.Dial(target, grpccas.DialOptions{
			Timeout:     durationSetting(b.Config, "timeout", 10*time.Second),
			MaxMsgBytes: intSetting(b.Config, "max-msg-bytes", 0),
		})
		if err != nil {
			return nil, nil, err
		}
		client.Timeout = durationSetting(b.Config, "timeout", 10*time.Second)
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown store backend %q", b.Name)
	}
}

// OpenNames opens the configured name layer and returns it with a close
// function.
func (c Config) OpenNames() (naming.NameLayer, func() error, error) {
	noop := func() error { return nil }
	switch c.Names.Backend {
	case "memory":
		return naming.NewMemoryStore(), noop, nil
	case "file":
		dir := c.Names.Config["dir"]
		if dir == "" {
			return nil, nil, errors.New("config: file name backend requires config.dir")
		}
		store, err := naming.NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case "badger":
		dir := c.Names.Config["dir"]
		if dir == "" {
			return nil, nil, errors.New("config: badger name backend requires config.dir")
		}
		store, err := badgerns.Open(dir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "grpc":
		target := c.Names.Config["target"]
		if target == "" {
			return nil, nil, errors.New("config: grpc name backend requires config.target")
		}
		client, err := grpcns.Dial(target, durationSetting(c.Names.Config, "timeout", 10*time.Second))
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown name backend %q", c.Names.Backend)
	}
}

func durationSetting(m map[string]string, key string, def time.Duration) time.Duration {
	if v, ok := m[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func intSetting(m map[string]string, key string, def int) int {
	if v, ok := m[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
