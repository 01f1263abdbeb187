package cidutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestCIDv1RawSHA256_Stable(t *testing.T) {
	a := CIDv1RawSHA256([]byte("hello"))
	b := CIDv1RawSHA256([]byte("hello"))
	if a == "" || a != b {
		t.Fatalf("expected stable non-empty CID, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "bafkrei") {
		t.Fatalf("expected raw sha2-256 CIDv1, got %q", a)
	}
}

func TestParse(t *testing.T) {
	want := CIDv1RawSHA256([]byte("service metadata"))
	id, err := Parse(" " + want + "\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id.String() != want {
		t.Fatalf("got %s want %s", id, want)
	}

	if _, err := Parse("not-a-cid"); err == nil {
		t.Fatalf("Parse should reject garbage")
	}

	upper := strings.ToUpper(want)
	if _, err := Parse(upper); !errors.Is(err, ErrNotCanonical) {
		t.Fatalf("Parse(upper): got %v want ErrNotCanonical", err)
	}
}

func TestVerify(t *testing.T) {
	data := []byte("payload")
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	ok, err := Verify(id, data)
	if err != nil || !ok {
		t.Fatalf("Verify(match) = %v, %v", ok, err)
	}
	ok, err = Verify(id, []byte("other"))
	if err != nil || ok {
		t.Fatalf("Verify(mismatch) = %v, %v", ok, err)
	}

	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	ok, err = Verify(cid.NewCidV0(sum), data)
	if err != nil || !ok {
		t.Fatalf("Verify(v0) = %v, %v", ok, err)
	}

	if _, err := Verify(cid.Undef, data); err == nil {
		t.Fatalf("Verify(Undef) should fail")
	}
}

func TestFitsWordPair(t *testing.T) {
	v1, err := CIDv1RawSHA256CID([]byte("x"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if !FitsWordPair(v1) {
		t.Fatalf("raw sha2-256 CIDv1 (%d chars) should fit", len(v1.String()))
	}

	sum, err := multihash.Sum([]byte("x"), multihash.SHA2_512, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	wide := cid.NewCidV1(cid.Raw, sum)
	if FitsWordPair(wide) {
		t.Fatalf("sha2-512 CIDv1 (%d chars) should not fit", len(wide.String()))
	}
	if FitsWordPair(cid.Undef) {
		t.Fatalf("Undef should not fit")
	}
}
