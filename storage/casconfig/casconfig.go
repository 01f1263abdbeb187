package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
)

// Config selects the CAS backends feedback documents are pinned to.
//
// WritePolicy values:
// - "first" (default): pin to the first backend; reads fall back in order
// - "all": pin to every backend and require equal CIDs (storage.ReplicatingCAS)
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name":"localfs", "config":{"dir":"/var/lib/pfb/cas"}},
//	    {"name":"ipfs", "config":{"ipfs-path":"/var/lib/ipfs", "pin":"true"}},
//	    {"name":"gateway", "id":"public", "config":{"url":"https://ipfs.io"}}
//	  ]
//	}
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the casregistry backend name.
	Name string `json:"name"`
	// ID is an optional alias, used when the same backend appears twice.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Single returns a config with one backend.
func Single(name string, cfg map[string]string) Config {
	return Config{Backends: []BackendConfig{{Name: name, Config: cfg}}}
}

func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them per WritePolicy.
//
// If preferred is non-empty, the backend with that name or id is moved to the
// front so that it receives writes under the "first" policy.
func (c Config) Open(usage casregistry.Usage, preferred string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		b := ordered[idx]
		copy(ordered[1:idx+1], ordered[:idx])
		ordered[0] = b
	}

	var closers []func() error
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	named := make([]storage.NamedCAS, 0, len(ordered))
	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: open %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		adapters = append(adapters, n.CAS)
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}
