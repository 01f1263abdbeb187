package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
	"golang.org/x/crypto/hkdf"
)

// BoxScheme is the KEM feedback envelopes are sealed with.
var BoxScheme = hpke.KEM_X25519_HKDF_SHA256.Scheme()

// BoxKeyPair derives the X25519 box key pair belonging to seed. The KEM seed
// is expanded from the Ed25519 seed so the two keys never share material.
func BoxKeyPair(seed []byte) (kem.PublicKey, kem.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	ikm := make([]byte, BoxScheme.SeedSize())
	r := hkdf.New(sha256.New, seed, []byte(roleSalt), []byte("box"))
	if _, err := io.ReadFull(r, ikm); err != nil {
		return nil, nil, fmt.Errorf("derive box seed: %w", err)
	}
	pub, priv := BoxScheme.DeriveKeyPair(ikm)
	return pub, priv, nil
}

// EncodeBoxPublicKey renders a box public key as base64.
func EncodeBoxPublicKey(pub kem.PublicKey) (string, error) {
	raw, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func ParseBoxPublicKey(s string) (kem.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("box public key: %w", err)
	}
	pub, err := BoxScheme.UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("box public key: %w", err)
	}
	return pub, nil
}
