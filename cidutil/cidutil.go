package cidutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrNotCanonical = errors.New("cidutil: cid is not in canonical string form")

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s and requires it to be the canonical rendering of the CID
// (CIDv0 base58btc or CIDv1 base32 lowercase), so that the string stored
// for a CID is unique.
func Parse(s string) (cid.Cid, error) {
	s = strings.TrimSpace(s)
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: %w", err)
	}
	if id.String() != s {
		return cid.Undef, fmt.Errorf("%w: %q (canonical %q)", ErrNotCanonical, s, id.String())
	}
	return id, nil
}

// Verify reports whether data hashes to id using id's own multihash type.
func Verify(id cid.Cid, data []byte) (bool, error) {
	if !id.Defined() {
		return false, errors.New("cidutil: undefined cid")
	}
	got, err := id.Prefix().Sum(data)
	if err != nil {
		return false, err
	}
	return got.Equals(id), nil
}

// maxWordPairLen is the longest identifier two 32-byte ledger words carry.
const maxWordPairLen = 62

// FitsWordPair reports whether the canonical string of id is short enough to
// be stored in a pair of ledger words.
func FitsWordPair(id cid.Cid) bool {
	return id.Defined() && len(id.String()) <= maxWordPairLen
}
