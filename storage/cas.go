package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is the content-addressable storage gateway feedback documents are
// pinned to.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written.
// - Get MUST verify returned bytes against the requested CID.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}
