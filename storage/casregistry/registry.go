package casregistry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/privfeedback/pfb/storage"
)

// Backend is a build-time plugin that opens a storage.CAS implementation
// from string options.
//
// Backends register themselves in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// The binary must import the backend package for registration to occur.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// Options documents the keys Open understands, for --list-backends output.
	Options []Option

	// Open constructs the CAS. It returns an optional close function.
	Open func(cfg map[string]string) (storage.CAS, func() error, error)
}

// Option describes one backend configuration key.
type Option struct {
	Key         string
	Description string
	Required    bool
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// OpenWithConfig opens the named backend if it exists and matches usage.
// Required options missing from cfg are reported before Open is called.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("casregistry: unknown backend %q (known: %s)", name, strings.Join(Names(usage), ", "))
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("casregistry: backend %q not supported in this binary", name)
	}
	for _, opt := range b.Options {
		if opt.Required && strings.TrimSpace(cfg[opt.Key]) == "" {
			return nil, nil, fmt.Errorf("casregistry: backend %q requires option %q", name, opt.Key)
		}
	}
	if cfg == nil {
		cfg = map[string]string{}
	}
	return b.Open(cfg)
}

// ParseOptions turns "key=value" pairs (as given on a command line) into a
// backend config map.
func ParseOptions(kvs []string) (map[string]string, error) {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("casregistry: option %q must be key=value", kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
