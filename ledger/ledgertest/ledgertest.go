// Package ledgertest holds the conformance suite shared by ledger.Ledger
// implementations.
package ledgertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/keys"
	"github.com/privfeedback/pfb/ledger"
)

// NewLedger constructs a fresh, empty ledger for a test.
type NewLedger func(t *testing.T) ledger.Ledger

// Signer returns a deterministic signer for b.
func Signer(t *testing.T, b byte) *keys.Signer {
	t.Helper()
	s, err := keys.NewSigner(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

// Pair encodes the CID of data.
func Pair(t *testing.T, data string) cidword.Pair {
	t.Helper()
	p, err := cidword.Encode(cidutil.CIDv1RawSHA256([]byte(data)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return p
}

func RunConformance(t *testing.T, newLedger NewLedger) {
	t.Helper()
	ctx := context.Background()

	owner := Signer(t, 1)
	alice := Signer(t, 2)
	bob := Signer(t, 3)

	register := func(t *testing.T, l ledger.Ledger, meta string) ledger.ServiceID {
		t.Helper()
		id, err := l.RegisterService(ctx, owner.IssuerKey, Pair(t, meta))
		if err != nil {
			t.Fatalf("RegisterService: %v", err)
		}
		return id
	}

	t.Run("RegisterSequentialIDs", func(t *testing.T) {
		l := newLedger(t)
		first := register(t, l, "first")
		second := register(t, l, "second")
		if first != 1 || second != 2 {
			t.Fatalf("ids = %d, %d want 1, 2", first, second)
		}
		svc, err := l.Service(ctx, second)
		if err != nil {
			t.Fatalf("Service: %v", err)
		}
		want := ledger.Service{ID: 2, Owner: owner.IssuerKey, Metadata: Pair(t, "second")}
		if svc != want {
			t.Fatalf("Service = %+v want %+v", svc, want)
		}
		for _, id := range []ledger.ServiceID{0, 3, 1 << 63, ^ledger.ServiceID(0)} {
			if _, err := l.Service(ctx, id); !errors.Is(err, ledger.ErrUnknownService) {
				t.Fatalf("Service(%d): got %v want ErrUnknownService", id, err)
			}
		}
	})

	t.Run("RegisterRejectsInvalidInput", func(t *testing.T) {
		l := newLedger(t)
		if _, err := l.RegisterService(ctx, "not-a-key", Pair(t, "x")); !errors.Is(err, ledger.ErrInvalidArgument) {
			t.Fatalf("bad owner: got %v", err)
		}
		var bad cidword.Pair
		bad.Word1[0] = 63
		if _, err := l.RegisterService(ctx, owner.IssuerKey, bad); !errors.Is(err, ledger.ErrInvalidArgument) {
			t.Fatalf("bad metadata: got %v", err)
		}
		if got, err := l.Services(ctx, ""); err != nil || len(got) != 0 {
			t.Fatalf("rejected registrations must not create services: %v, %v", got, err)
		}
	})

	t.Run("ServicesFilterByOwner", func(t *testing.T) {
		l := newLedger(t)
		register(t, l, "a")
		if _, err := l.RegisterService(ctx, alice.IssuerKey, Pair(t, "b")); err != nil {
			t.Fatalf("RegisterService: %v", err)
		}
		register(t, l, "c")

		all, err := l.Services(ctx, "")
		if err != nil || len(all) != 3 {
			t.Fatalf("Services(all) = %v, %v", all, err)
		}
		mine, err := l.Services(ctx, owner.IssuerKey)
		if err != nil {
			t.Fatalf("Services(owner): %v", err)
		}
		if len(mine) != 2 || mine[0].ID != 1 || mine[1].ID != 3 {
			t.Fatalf("Services(owner) = %+v", mine)
		}
	})

	t.Run("InviteRules", func(t *testing.T) {
		l := newLedger(t)
		id := register(t, l, "svc")

		if err := l.Invite(ctx, id, alice.IssuerKey, bob.IssuerKey); !errors.Is(err, ledger.ErrNotOwner) {
			t.Fatalf("non-owner invite: got %v", err)
		}
		if err := l.Invite(ctx, 42, owner.IssuerKey, bob.IssuerKey); !errors.Is(err, ledger.ErrUnknownService) {
			t.Fatalf("unknown service: got %v", err)
		}
		if err := l.Invite(ctx, id, owner.IssuerKey, "bob"); !errors.Is(err, ledger.ErrInvalidArgument) {
			t.Fatalf("bad user: got %v", err)
		}

		if st, err := l.InteractionState(ctx, id, bob.IssuerKey); err != nil || st != ledger.StateNone {
			t.Fatalf("state before invite = %v, %v", st, err)
		}
		for i := 0; i < 2; i++ {
			if err := l.Invite(ctx, id, owner.IssuerKey, bob.IssuerKey); err != nil {
				t.Fatalf("Invite(%d): %v", i, err)
			}
		}
		if st, err := l.InteractionState(ctx, id, bob.IssuerKey); err != nil || st != ledger.StateInvited {
			t.Fatalf("state after invite = %v, %v", st, err)
		}
		list, err := l.Interactions(ctx, id)
		if err != nil {
			t.Fatalf("Interactions: %v", err)
		}
		if len(list) != 1 || list[0].User != bob.IssuerKey || list[0].State != ledger.StateInvited {
			t.Fatalf("Interactions = %+v", list)
		}
		if _, err := l.InteractionState(ctx, 42, bob.IssuerKey); !errors.Is(err, ledger.ErrUnknownService) {
			t.Fatalf("InteractionState(unknown): got %v", err)
		}
	})

	t.Run("SubmitFeedback", func(t *testing.T) {
		l := newLedger(t)
		id := register(t, l, "svc")
		fb := Pair(t, "feedback-alice")

		if _, err := l.SubmitFeedback(ctx, ledger.NewSubmission(alice, id, fb)); !errors.Is(err, ledger.ErrNotInvited) {
			t.Fatalf("uninvited submit: got %v", err)
		}
		if _, err := l.SubmitFeedback(ctx, ledger.NewSubmission(alice, 9, fb)); !errors.Is(err, ledger.ErrUnknownService) {
			t.Fatalf("unknown service submit: got %v", err)
		}
		if err := l.Invite(ctx, id, owner.IssuerKey, alice.IssuerKey); err != nil {
			t.Fatalf("Invite: %v", err)
		}

		forged := ledger.NewSubmission(bob, id, fb)
		forged.User = alice.IssuerKey
		if _, err := l.SubmitFeedback(ctx, forged); !errors.Is(err, ledger.ErrBadSignature) {
			t.Fatalf("forged signature: got %v", err)
		}
		otherService := ledger.NewSubmission(alice, id+1, fb)
		otherService.ServiceID = id
		if _, err := l.SubmitFeedback(ctx, otherService); !errors.Is(err, ledger.ErrBadSignature) {
			t.Fatalf("replayed signature: got %v", err)
		}
		var malformed cidword.Pair
		malformed.Word1[0] = 1
		malformed.Word2[31] = 1
		if _, err := l.SubmitFeedback(ctx, ledger.NewSubmission(alice, id, malformed)); !errors.Is(err, ledger.ErrInvalidArgument) {
			t.Fatalf("malformed feedback: got %v", err)
		}
		if st, _ := l.InteractionState(ctx, id, alice.IssuerKey); st != ledger.StateInvited {
			t.Fatalf("rejected submissions must not change state, got %v", st)
		}

		entry, err := l.SubmitFeedback(ctx, ledger.NewSubmission(alice, id, fb))
		if err != nil {
			t.Fatalf("SubmitFeedback: %v", err)
		}
		want := ledger.Entry{Index: 0, ServiceID: id, User: alice.IssuerKey, Feedback: fb}
		if entry != want {
			t.Fatalf("entry = %+v want %+v", entry, want)
		}
		if st, _ := l.InteractionState(ctx, id, alice.IssuerKey); st != ledger.StateSubmitted {
			t.Fatalf("state after submit = %v", st)
		}
		if _, err := l.SubmitFeedback(ctx, ledger.NewSubmission(alice, id, Pair(t, "again"))); !errors.Is(err, ledger.ErrAlreadySubmitted) {
			t.Fatalf("second submit: got %v", err)
		}
		if err := l.Invite(ctx, id, owner.IssuerKey, alice.IssuerKey); !errors.Is(err, ledger.ErrAlreadySubmitted) {
			t.Fatalf("invite after submit: got %v", err)
		}

		got, err := l.Feedback(ctx, id)
		if err != nil {
			t.Fatalf("Feedback: %v", err)
		}
		if len(got) != 1 || got[0] != want {
			t.Fatalf("Feedback = %+v", got)
		}
		if _, err := l.Feedback(ctx, 77); !errors.Is(err, ledger.ErrUnknownService) {
			t.Fatalf("Feedback(unknown): got %v", err)
		}
	})

	t.Run("FeedbackOrder", func(t *testing.T) {
		l := newLedger(t)
		id := register(t, l, "svc")
		other := register(t, l, "other")
		users := []*keys.Signer{Signer(t, 10), Signer(t, 11), Signer(t, 12)}
		for _, u := range users {
			if err := l.Invite(ctx, id, owner.IssuerKey, u.IssuerKey); err != nil {
				t.Fatalf("Invite: %v", err)
			}
		}
		for _, i := range []int{2, 0, 1} {
			fb := Pair(t, fmt.Sprintf("fb-%d", i))
			if _, err := l.SubmitFeedback(ctx, ledger.NewSubmission(users[i], id, fb)); err != nil {
				t.Fatalf("SubmitFeedback(%d): %v", i, err)
			}
		}
		got, err := l.Feedback(ctx, id)
		if err != nil {
			t.Fatalf("Feedback: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(got))
		}
		for idx, i := range []int{2, 0, 1} {
			if got[idx].Index != idx || got[idx].User != users[i].IssuerKey || got[idx].Feedback != Pair(t, fmt.Sprintf("fb-%d", i)) {
				t.Fatalf("entry %d = %+v", idx, got[idx])
			}
		}
		if rest, err := l.Feedback(ctx, other); err != nil || len(rest) != 0 {
			t.Fatalf("other service feedback = %v, %v", rest, err)
		}
	})

	t.Run("ConcurrentSubmissions", func(t *testing.T) {
		l := newLedger(t)
		id := register(t, l, "svc")
		const n = 8
		users := make([]*keys.Signer, n)
		subs := make([]ledger.Submission, n)
		for i := range users {
			users[i] = Signer(t, byte(100+i))
			subs[i] = ledger.NewSubmission(users[i], id, Pair(t, fmt.Sprintf("c-%d", i)))
			if err := l.Invite(ctx, id, owner.IssuerKey, users[i].IssuerKey); err != nil {
				t.Fatalf("Invite: %v", err)
			}
		}

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for _, sub := range subs {
			wg.Add(1)
			go func(sub ledger.Submission) {
				defer wg.Done()
				_, err := l.SubmitFeedback(ctx, sub)
				errs <- err
			}(sub)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("SubmitFeedback: %v", err)
			}
		}

		got, err := l.Feedback(ctx, id)
		if err != nil {
			t.Fatalf("Feedback: %v", err)
		}
		if len(got) != n {
			t.Fatalf("expected %d entries, got %d", n, len(got))
		}
		for i, e := range got {
			if e.Index != i {
				t.Fatalf("entry %d has index %d", i, e.Index)
			}
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		l := newLedger(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := l.RegisterService(cctx, owner.IssuerKey, Pair(t, "x")); err == nil {
			t.Fatalf("RegisterService with canceled context should fail")
		}
	})
}
