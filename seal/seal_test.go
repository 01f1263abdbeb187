package seal

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/privfeedback/pfb/keys"
)

func TestSealOpenRoundTrip(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, 32)
	pub, priv, err := keys.BoxKeyPair(seed)
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	aad := []byte("service:1")
	msg := []byte(`{"overall":5}`)

	env, err := Seal(pub, msg, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(env.CT, msg) {
		t.Fatalf("ciphertext contains plaintext")
	}

	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(raw), `{"v":1,"enc":"`) {
		t.Fatalf("unexpected envelope JSON %s", raw)
	}
	back, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := Open(priv, back, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %q want %q", got, msg)
	}

	again, err := Seal(pub, msg, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(again.Enc, env.Enc) {
		t.Fatalf("expected a fresh ephemeral key per envelope")
	}
}

func TestOpenFailures(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, 32)
	pub, priv, err := keys.BoxKeyPair(seed)
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	_, otherPriv, err := keys.BoxKeyPair(bytes.Repeat([]byte{2}, 32))
	if err != nil {
		t.Fatalf("BoxKeyPair: %v", err)
	}
	env, err := Seal(pub, []byte("secret"), []byte("a"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := Open(otherPriv, env, []byte("a")); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong key: got %v", err)
	}
	if _, err := Open(priv, env, []byte("b")); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong aad: got %v", err)
	}
	tampered := env
	tampered.CT = append([]byte(nil), env.CT...)
	tampered.CT[0] ^= 1
	if _, err := Open(priv, tampered, []byte("a")); !errors.Is(err, ErrOpen) {
		t.Fatalf("tampered ct: got %v", err)
	}
	future := env
	future.V = 2
	if _, err := Open(priv, future, []byte("a")); !errors.Is(err, ErrVersion) {
		t.Fatalf("version: got %v", err)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	cases := map[string]struct {
		in   string
		want error
	}{
		"not json":    {`nope`, ErrEnvelope},
		"version":     {`{"v":9,"enc":"AA==","ct":"AA=="}`, ErrVersion},
		"missing enc": {`{"v":1,"ct":"AA=="}`, ErrEnvelope},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tc.in)); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}
