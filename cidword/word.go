package cidword

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// WordSize is the width of one ledger word in bytes.
const WordSize = 32

// Word is a 32-byte ledger word. Its integer value is the big-endian
// interpretation of the bytes.
type Word [WordSize]byte

// Hex renders w as "0x" followed by 64 lowercase hex digits.
func (w Word) Hex() string {
	return "0x" + hex.EncodeToString(w[:])
}

func (w Word) String() string { return w.Hex() }

func (w Word) IsZero() bool { return w == Word{} }

// Int returns the unsigned 256-bit value of w.
func (w Word) Int() *big.Int {
	return new(big.Int).SetBytes(w[:])
}

// WordFromInt converts an unsigned integer of at most 256 bits into a Word.
func WordFromInt(x *big.Int) (Word, error) {
	var w Word
	if x == nil {
		return w, newError(KindMalformedEncoding, "nil word")
	}
	if x.Sign() < 0 {
		return w, newError(KindMalformedEncoding, "negative word")
	}
	if x.BitLen() > WordSize*8 {
		return w, newError(KindMalformedEncoding, fmt.Sprintf("word is %d bits wide", x.BitLen()))
	}
	x.FillBytes(w[:])
	return w, nil
}

// ParseWord parses a word rendered either as 0x-prefixed hex (up to 64
// digits, left zero padded) or as an unsigned decimal integer.
func ParseWord(s string) (Word, error) {
	var w Word
	s = strings.TrimSpace(s)
	if s == "" {
		return w, newError(KindMalformedEncoding, "empty word")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits) == 0 || len(digits) > 2*WordSize {
			return w, newError(KindMalformedEncoding, fmt.Sprintf("word has %d hex digits", len(digits)))
		}
		padded := strings.Repeat("0", 2*WordSize-len(digits)) + digits
		if _, err := hex.Decode(w[:], []byte(padded)); err != nil {
			return Word{}, newError(KindMalformedEncoding, "invalid hex word: "+err.Error())
		}
		return w, nil
	}
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return w, newError(KindMalformedEncoding, fmt.Sprintf("invalid word %q", s))
	}
	return WordFromInt(x)
}

func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.Hex()), nil
}

func (w *Word) UnmarshalText(b []byte) error {
	parsed, err := ParseWord(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
