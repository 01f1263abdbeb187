package ledger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/keys"
)

func TestInteractionSigningBytes(t *testing.T) {
	i := Interaction{User: "ed25519:AAAA", ServiceID: 7, State: StateFeedbackFilling}
	got := string(i.SigningBytes())
	want := `{"domain":{"name":"PrivateFeedback","version":"1"},"primaryType":"Interaction","message":{"user":"ed25519:AAAA","serviceId":"7","state":2}}`
	if got != want {
		t.Fatalf("SigningBytes:\n got %s\nwant %s", got, want)
	}
	other := i
	other.State = StateInvited
	if bytes.Equal(other.SigningBytes(), i.SigningBytes()) {
		t.Fatalf("state must be part of the signed message")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateNone:            "none",
		StateInvited:         "invited",
		StateFeedbackFilling: "feedback_filling",
		StateSubmitted:       "submitted",
		State(9):             "state(9)",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q want %q", s, got, want)
		}
	}
}

func TestParseServiceID(t *testing.T) {
	id, err := ParseServiceID("12")
	if err != nil || id != 12 {
		t.Fatalf("ParseServiceID(12) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "x"} {
		if _, err := ParseServiceID(bad); err == nil {
			t.Fatalf("ParseServiceID(%q) should fail", bad)
		}
	}
}

func TestVerifySubmission(t *testing.T) {
	signer, err := keys.NewSigner(bytes.Repeat([]byte{5}, 32))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	fb, err := cidword.Encode("bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	sub := NewSubmission(signer, 3, fb)
	if sub.User != signer.IssuerKey || !strings.HasPrefix(sub.User, "ed25519:") {
		t.Fatalf("unexpected user %q", sub.User)
	}
	if err := VerifySubmission(sub); err != nil {
		t.Fatalf("VerifySubmission: %v", err)
	}

	moved := sub
	moved.ServiceID = 4
	if err := VerifySubmission(moved); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("moved submission: got %v", err)
	}
	badUser := sub
	badUser.User = "nobody"
	if err := VerifySubmission(badUser); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("bad user: got %v", err)
	}

	bad := sub
	bad.Feedback.Word1[0] = 200
	err = VerifySubmission(bad)
	if !errors.Is(err, ErrInvalidArgument) || !errors.Is(err, cidword.ErrMalformedEncoding) {
		t.Fatalf("malformed feedback: got %v", err)
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StateInvited); err != nil {
		t.Fatalf("invited: %v", err)
	}
	if err := CheckTransition(StateNone); !errors.Is(err, ErrNotInvited) {
		t.Fatalf("none: got %v", err)
	}
	if err := CheckTransition(StateSubmitted); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("submitted: got %v", err)
	}
}
