package ipfs

import (
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidutil"
)

func mustCID(t *testing.T, s string) cid.Cid {
	t.Helper()
	id, err := cidutil.CIDv1RawSHA256CID([]byte(s))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	return id
}
