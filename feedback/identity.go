package feedback

import (
	"github.com/cloudflare/circl/kem"

	"github.com/privfeedback/pfb/keys"
)

// Identity is everything one seed gives a participant: a signer for the
// ledger and a box key pair for sealed responses.
type Identity struct {
	Signer     *keys.Signer
	BoxPublic  kem.PublicKey
	BoxPrivate kem.PrivateKey
}

func NewIdentity(seed []byte) (*Identity, error) {
	signer, err := keys.NewSigner(seed)
	if err != nil {
		return nil, err
	}
	pub, priv, err := keys.BoxKeyPair(seed)
	if err != nil {
		return nil, err
	}
	return &Identity{Signer: signer, BoxPublic: pub, BoxPrivate: priv}, nil
}

func (id *Identity) IssuerKey() string { return id.Signer.IssuerKey }
