// Package ledger defines the fixed-width-word ledger that records services,
// invitations and feedback submissions.
//
// The ledger stores content identifiers only as cidword.Pair values, two
// 32-byte words each. Documents themselves live in a storage.CAS.
//
// Implementations are explicitly constructed clients; there is no package
// level handle. All implementations must pass ledgertest.RunConformance.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/keys"
)

// ServiceID identifies a registered service. The first service is 1.
type ServiceID uint64

func (id ServiceID) String() string { return strconv.FormatUint(uint64(id), 10) }

func ParseServiceID(s string) (ServiceID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("ledger: invalid service id %q", s)
	}
	return ServiceID(n), nil
}

// State is the position of a user in a service's feedback flow.
type State uint8

const (
	StateNone State = iota
	StateInvited
	StateFeedbackFilling
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInvited:
		return "invited"
	case StateFeedbackFilling:
		return "feedback_filling"
	case StateSubmitted:
		return "submitted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Service is a registered service. Owner is the owner's issuer key and
// Metadata the encoded CID of the service metadata document.
type Service struct {
	ID       ServiceID
	Owner    string
	Metadata cidword.Pair
}

// Interaction is the message a user signs to submit feedback.
type Interaction struct {
	User      string
	ServiceID ServiceID
	State     State
}

const (
	SigningDomain  = "PrivateFeedback"
	SigningVersion = "1"
)

type signingDomain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type signingMessage struct {
	User      string `json:"user"`
	ServiceID string `json:"serviceId"`
	State     uint8  `json:"state"`
}

type signingDocument struct {
	Domain  signingDomain  `json:"domain"`
	Type    string         `json:"primaryType"`
	Message signingMessage `json:"message"`
}

// SigningBytes returns the canonical bytes a user signs for i.
func (i Interaction) SigningBytes() []byte {
	b, _ := json.Marshal(signingDocument{
		Domain: signingDomain{Name: SigningDomain, Version: SigningVersion},
		Type:   "Interaction",
		Message: signingMessage{
			User:      i.User,
			ServiceID: i.ServiceID.String(),
			State:     uint8(i.State),
		},
	})
	return b
}

// Submission is a signed feedback submission.
type Submission struct {
	ServiceID ServiceID
	User      string
	Signature string
	Feedback  cidword.Pair
}

// NewSubmission signs the feedback-filling interaction for signer.
func NewSubmission(signer *keys.Signer, id ServiceID, feedback cidword.Pair) Submission {
	msg := Interaction{User: signer.IssuerKey, ServiceID: id, State: StateFeedbackFilling}
	return Submission{
		ServiceID: id,
		User:      signer.IssuerKey,
		Signature: signer.Sign(msg.SigningBytes()),
		Feedback:  feedback,
	}
}

// Entry is one accepted submission. Index is its position in the service's
// feedback list.
type Entry struct {
	Index     int
	ServiceID ServiceID
	User      string
	Feedback  cidword.Pair
}

// Ledger is the interface every ledger backend implements.
//
// Contract:
//   - Service ids are assigned sequentially from 1.
//   - Only the owner may invite. Re-inviting an invited user is a no-op.
//   - A user submits at most once per service and only after an invitation.
//   - Feedback returns entries in submission order.
type Ledger interface {
	RegisterService(ctx context.Context, owner string, metadata cidword.Pair) (ServiceID, error)
	Service(ctx context.Context, id ServiceID) (Service, error)
	Services(ctx context.Context, owner string) ([]Service, error)
	Invite(ctx context.Context, id ServiceID, owner, user string) error
	InteractionState(ctx context.Context, id ServiceID, user string) (State, error)
	Interactions(ctx context.Context, id ServiceID) ([]Interaction, error)
	SubmitFeedback(ctx context.Context, sub Submission) (Entry, error)
	Feedback(ctx context.Context, id ServiceID) ([]Entry, error)
}
