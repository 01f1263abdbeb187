package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var ErrBadSignature = errors.New("keys: signature does not verify")

// SignEd25519SHA256 returns a base64 signature over sha256(message).
func SignEd25519SHA256(message []byte, privateKey ed25519.PrivateKey) string {
	digest := sha256.Sum256(message)
	sig := ed25519.Sign(privateKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig)
}

// VerifyEd25519SHA256 checks a signature made by SignEd25519SHA256 against
// an issuer key string.
func VerifyEd25519SHA256(message []byte, issuerKey, signature string) error {
	pub, err := ParseIssuerKey(issuerKey)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	digest := sha256.Sum256(message)
	if !ed25519.Verify(pub, digest[:], sig) {
		return ErrBadSignature
	}
	return nil
}

// Signer holds a private key and the issuer key that identifies it.
type Signer struct {
	IssuerKey string
	key       ed25519.PrivateKey
}

func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("keys: seed must be 32 bytes")
	}
	return &Signer{
		IssuerKey: GenerateIssuerKeyFromSeed(seed),
		key:       ed25519.NewKeyFromSeed(seed),
	}, nil
}

func (s *Signer) Sign(message []byte) string {
	return SignEd25519SHA256(message, s.key)
}
