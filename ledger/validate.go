package ledger

import (
	"errors"
	"fmt"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/keys"
)

// ValidateIdentity checks that s is a well-formed issuer key.
func ValidateIdentity(role, s string) error {
	if _, err := keys.ParseIssuerKey(s); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, role, err)
	}
	return nil
}

// ValidateMetadata checks that p decodes to an identifier.
func ValidateMetadata(p cidword.Pair) error {
	if _, err := cidword.Decode(p); err != nil {
		return fmt.Errorf("%w: metadata: %w", ErrInvalidArgument, err)
	}
	return nil
}

// VerifySubmission checks the signature and the feedback words of sub. It
// does not look at ledger state.
func VerifySubmission(sub Submission) error {
	msg := Interaction{User: sub.User, ServiceID: sub.ServiceID, State: StateFeedbackFilling}
	if err := keys.VerifyEd25519SHA256(msg.SigningBytes(), sub.User, sub.Signature); err != nil {
		if errors.Is(err, keys.ErrBadSignature) || errors.Is(err, keys.ErrInvalidIssuerKey) {
			return ErrBadSignature
		}
		return err
	}
	if _, err := cidword.Decode(sub.Feedback); err != nil {
		return fmt.Errorf("%w: feedback: %w", ErrInvalidArgument, err)
	}
	return nil
}

// CheckTransition reports whether a user in state s may submit.
func CheckTransition(s State) error {
	switch s {
	case StateInvited:
		return nil
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotInvited
	}
}
