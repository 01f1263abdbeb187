package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"github.com/privfeedback/pfb/cidutil"
)

// maxParallelPins bounds concurrent writes in ReplicatingCAS.
const maxParallelPins = 4

// readThrough returns the first copy of id found in backends, in order. A
// backend error other than ErrNotFound stops the search.
func readThrough(ctx context.Context, backends []CAS, id cid.Cid) ([]byte, error) {
	for _, cas := range backends {
		if cas == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := cas.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func hasAny(ctx context.Context, backends []CAS, id cid.Cid) bool {
	for _, cas := range backends {
		if cas != nil && cas.Has(ctx, id) {
			return true
		}
	}
	return false
}

// MultiCAS pins to its first adapter and reads through all of them in order.
type MultiCAS struct {
	Adapters []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(ctx, data)
}

func (m MultiCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return readThrough(ctx, m.Adapters, id)
}

func (m MultiCAS) Has(ctx context.Context, id cid.Cid) bool {
	return hasAny(ctx, m.Adapters, id)
}

// NamedCAS associates a CAS with a stable backend name.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS pins every document to all backends.
//
// Every backend is attempted even when another fails; errors are joined in
// backend order. Every returned CID must equal the locally computed one,
// otherwise ErrCIDMismatch.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll writes data to every backend and returns the canonical CID together
// with the CID each successful backend reported.
func (r ReplicatingCAS) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, errors.New("storage: ReplicatingCAS has no backends")
	}

	var (
		mu   sync.Mutex
		got  = make(map[string]cid.Cid, len(r.Backends))
		errs = make([]error, len(r.Backends))
		g    errgroup.Group
	)
	g.SetLimit(maxParallelPins)
	for i, b := range r.Backends {
		g.Go(func() error {
			if b.CAS == nil {
				errs[i] = fmt.Errorf("storage: nil CAS for backend %q", b.Name)
				return nil
			}
			id, err := b.CAS.Put(ctx, data)
			if err != nil {
				errs[i] = fmt.Errorf("storage: backend %q: %w", b.Name, err)
				return nil
			}
			mu.Lock()
			got[b.Name] = id
			mu.Unlock()
			if !id.Equals(want) {
				errs[i] = fmt.Errorf("storage: backend %q: %w", b.Name, ErrCIDMismatch)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return cid.Undef, got, err
	}
	return want, got, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, data)
	return id, err
}

func (r ReplicatingCAS) backends() []CAS {
	out := make([]CAS, len(r.Backends))
	for i, b := range r.Backends {
		out[i] = b.CAS
	}
	return out
}

func (r ReplicatingCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return readThrough(ctx, r.backends(), id)
}

func (r ReplicatingCAS) Has(ctx context.Context, id cid.Cid) bool {
	return hasAny(ctx, r.backends(), id)
}
