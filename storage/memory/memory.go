// Package memory is an in-process CAS used by tests and single-process tools.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "memory",
		Description: "In-process CAS (contents are lost on exit)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Open: func(map[string]string) (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}

type CAS struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ storage.CAS = (*CAS)(nil)

func New() *CAS {
	return &CAS{objects: make(map[string][]byte)}
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := id.KeyString()
	if existing, ok := c.objects[key]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.objects[key] = bytes.Clone(data)
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id.KeyString()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := storage.Verify(id, b); err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[id.KeyString()]
	return ok
}

// Len reports the number of stored objects.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
