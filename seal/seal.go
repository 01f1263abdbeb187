// Package seal encrypts feedback to a service owner's box key with HPKE
// (X25519, HKDF-SHA256, ChaCha20-Poly1305) in base mode.
package seal

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

const Version = 1

var (
	ErrVersion  = errors.New("seal: unsupported envelope version")
	ErrOpen     = errors.New("seal: envelope cannot be opened")
	ErrEnvelope = errors.New("seal: malformed envelope")
)

var suite = hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)

var info = []byte("pfb feedback v1")

// Envelope is the stored form of a sealed message. Enc is the encapsulated
// ephemeral key. Byte slices marshal as base64.
type Envelope struct {
	V   int    `json:"v"`
	Enc []byte `json:"enc"`
	CT  []byte `json:"ct"`
}

// Seal encrypts plaintext to pub. aad is authenticated but not stored.
func Seal(pub kem.PublicKey, plaintext, aad []byte) (Envelope, error) {
	if pub == nil {
		return Envelope{}, errors.New("seal: nil public key")
	}
	sender, err := suite.NewSender(pub, info)
	if err != nil {
		return Envelope{}, fmt.Errorf("seal: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("seal: %w", err)
	}
	ct, err := sealer.Seal(plaintext, aad)
	if err != nil {
		return Envelope{}, fmt.Errorf("seal: %w", err)
	}
	return Envelope{V: Version, Enc: enc, CT: ct}, nil
}

// Open decrypts env with priv. The same aad given to Seal must be supplied.
func Open(priv kem.PrivateKey, env Envelope, aad []byte) ([]byte, error) {
	if env.V != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, env.V)
	}
	if priv == nil {
		return nil, errors.New("seal: nil private key")
	}
	receiver, err := suite.NewReceiver(priv, info)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	opener, err := receiver.Setup(env.Enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	pt, err := opener.Open(env.CT, aad)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if env.V != Version {
		return Envelope{}, fmt.Errorf("%w: %d", ErrVersion, env.V)
	}
	if len(env.Enc) == 0 || len(env.CT) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing enc or ct", ErrEnvelope)
	}
	return env, nil
}
