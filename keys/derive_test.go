package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testSeed(b byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := testSeed(0)

	a, err := DeriveRoleSeed(root, "owner")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	b, err := DeriveRoleSeed(root, "owner")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected deterministic derivation")
	}

	c, err := DeriveRoleSeed(root, "reviewer")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("expected different roles to derive different seeds")
	}
	if bytes.Equal(a, root) {
		t.Fatalf("role seed must differ from root")
	}

	if _, err := DeriveRoleSeed(root[:5], "owner"); err == nil {
		t.Fatalf("short root seed should fail")
	}
	if _, err := DeriveRoleSeed(root, "bad role"); err == nil {
		t.Fatalf("invalid role should fail")
	}
}

func TestIssuerKeyFormatAndParse(t *testing.T) {
	seed := testSeed(0x42)
	issuerKey := GenerateIssuerKeyFromSeed(seed)
	if !strings.HasPrefix(issuerKey, "ed25519:") {
		t.Fatalf("expected ed25519 prefix, got %q", issuerKey)
	}
	pubBytes, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(issuerKey, "ed25519:"))
	if err != nil {
		t.Fatalf("expected valid base64: %v", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		t.Fatalf("expected %d pubkey bytes, got %d", ed25519.PublicKeySize, len(pubBytes))
	}

	pub, err := ParseIssuerKey(issuerKey)
	if err != nil {
		t.Fatalf("ParseIssuerKey: %v", err)
	}
	again, err := IssuerKeyFromPublicKey(pub)
	if err != nil || again != issuerKey {
		t.Fatalf("IssuerKeyFromPublicKey = %q, %v", again, err)
	}

	for _, bad := range []string{"", "ed25519:", "rsa:AAAA", "ed25519:!!!", "ed25519:" + base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := ParseIssuerKey(bad); !errors.Is(err, ErrInvalidIssuerKey) {
			t.Fatalf("ParseIssuerKey(%q): got %v", bad, err)
		}
	}
}

func TestBoxKeyPairDeterministic(t *testing.T) {
	pub1, priv1, err := BoxKeyPair(testSeed(1))
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	pub2, _, err := BoxKeyPair(testSeed(1))
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	if !pub1.Equal(pub2) {
		t.Fatalf("expected deterministic box key")
	}
	if !priv1.Public().Equal(pub1) {
		t.Fatalf("private key does not match public key")
	}
	other, _, err := BoxKeyPair(testSeed(2))
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	if pub1.Equal(other) {
		t.Fatalf("different seeds produced the same box key")
	}

	s, err := EncodeBoxPublicKey(pub1)
	if err != nil {
		t.Fatalf("EncodeBoxPublicKey: %v", err)
	}
	back, err := ParseBoxPublicKey(s)
	if err != nil {
		t.Fatalf("ParseBoxPublicKey: %v", err)
	}
	if !back.Equal(pub1) {
		t.Fatalf("box key round trip mismatch")
	}
	if _, err := ParseBoxPublicKey("AAAA"); err == nil {
		t.Fatalf("short box key should fail")
	}
}
