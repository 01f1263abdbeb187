// Package cidword packs short ASCII content identifiers into two fixed-width
// 32-byte ledger words and unpacks them again.
//
// Layout:
//
//	Word1[0]     identifier length (0..62)
//	Word1[1:32]  identifier bytes 0..30
//	Word2[0:32]  identifier bytes 31..61
//
// Unused bytes are zero. Each word is read as a big-endian unsigned integer.
// Encode and Decode are pure and may be called from any goroutine.
package cidword

import (
	"fmt"
	"math/big"

	"github.com/ipfs/go-cid"
)

// MaxLen is the longest identifier two words can carry.
const MaxLen = 2*WordSize - 2

// Pair is an identifier encoded as two ledger words.
type Pair struct {
	Word1 Word `json:"word1"`
	Word2 Word `json:"word2"`
}

func (p Pair) String() string {
	return p.Word1.Hex() + "," + p.Word2.Hex()
}

// Encode packs s into a Pair. s must be ASCII and at most MaxLen bytes.
func Encode(s string) (Pair, error) {
	if len(s) > MaxLen {
		return Pair{}, newError(KindInputTooLong, fmt.Sprintf("identifier is %d bytes, max %d", len(s), MaxLen))
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return Pair{}, newError(KindNonASCII, fmt.Sprintf("non-ASCII byte 0x%02x at offset %d", s[i], i))
		}
	}

	var p Pair
	p.Word1[0] = byte(len(s))
	n := copy(p.Word1[1:], s)
	copy(p.Word2[:], s[n:])
	return p, nil
}

// Decode unpacks a Pair produced by Encode.
//
// A length byte above MaxLen, a non-zero byte past the identifier, or a
// non-ASCII byte inside it yields ErrMalformedEncoding.
func Decode(p Pair) (string, error) {
	n := int(p.Word1[0])
	if n > MaxLen {
		return "", newError(KindMalformedEncoding, fmt.Sprintf("length byte %d exceeds %d", n, MaxLen))
	}

	var buf [2*WordSize - 1]byte
	copy(buf[:], p.Word1[1:])
	copy(buf[WordSize-1:], p.Word2[:])

	for i, b := range buf[n:] {
		if b != 0 {
			return "", newError(KindMalformedEncoding, fmt.Sprintf("non-zero padding at offset %d", n+i))
		}
	}
	for i, b := range buf[:n] {
		if b > 0x7f {
			return "", newError(KindMalformedEncoding, fmt.Sprintf("non-ASCII byte 0x%02x at offset %d", b, i))
		}
	}
	return string(buf[:n]), nil
}

// EncodeInts is Encode returning the words as unsigned integers.
func EncodeInts(s string) (*big.Int, *big.Int, error) {
	p, err := Encode(s)
	if err != nil {
		return nil, nil, err
	}
	return p.Word1.Int(), p.Word2.Int(), nil
}

// DecodeInts is Decode over words supplied as unsigned integers.
func DecodeInts(w1, w2 *big.Int) (string, error) {
	a, err := WordFromInt(w1)
	if err != nil {
		return "", err
	}
	b, err := WordFromInt(w2)
	if err != nil {
		return "", err
	}
	return Decode(Pair{Word1: a, Word2: b})
}

// EncodeCID packs the canonical string form of id.
func EncodeCID(id cid.Cid) (Pair, error) {
	if !id.Defined() {
		return Pair{}, newError(KindUndefinedCID, "undefined cid")
	}
	return Encode(id.String())
}

// DecodeCID unpacks p and parses the identifier as a CID.
func DecodeCID(p Pair) (cid.Cid, error) {
	s, err := Decode(p)
	if err != nil {
		return cid.Undef, err
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidword: decoded identifier %q is not a cid: %w", s, err)
	}
	return id, nil
}
