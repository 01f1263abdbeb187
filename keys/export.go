package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const issuerKeyPrefix = "ed25519:"

var ErrInvalidIssuerKey = errors.New("keys: invalid issuer key")

// GenerateIssuerKeyFromSeed returns the issuer key string for an Ed25519 seed.
func GenerateIssuerKeyFromSeed(seed []byte) string {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return issuerKeyPrefix + base64.StdEncoding.EncodeToString(pub)
}

// IssuerKeyFromPublicKey encodes an Ed25519 public key into an issuer key string.
func IssuerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return issuerKeyPrefix + base64.StdEncoding.EncodeToString(pub), nil
}

// ParseIssuerKey is the inverse of IssuerKeyFromPublicKey.
func ParseIssuerKey(issuerKey string) (ed25519.PublicKey, error) {
	b64, ok := strings.CutPrefix(strings.TrimSpace(issuerKey), issuerKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidIssuerKey, issuerKeyPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIssuerKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d byte public key", ErrInvalidIssuerKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
