package storage

import (
	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidutil"
)

// Verify checks that data hashes to id. Any CID version and multihash type
// understood by go-cid is accepted, so blocks pinned elsewhere (CIDv0) can
// still be fetched and checked.
func Verify(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	ok, err := cidutil.Verify(id, data)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCIDMismatch
	}
	return nil
}
