// Package memory is an in-process ledger.Ledger for tests and local use.
package memory

import (
	"context"
	"sync"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/ledger"
)

type participantKey struct {
	service ledger.ServiceID
	user    string
}

type Ledger struct {
	mu       sync.RWMutex
	services []ledger.Service
	states   map[participantKey]ledger.State
	invited  map[ledger.ServiceID][]string
	entries  map[ledger.ServiceID][]ledger.Entry
}

var _ ledger.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		states:  make(map[participantKey]ledger.State),
		invited: make(map[ledger.ServiceID][]string),
		entries: make(map[ledger.ServiceID][]ledger.Entry),
	}
}

func (l *Ledger) RegisterService(ctx context.Context, owner string, metadata cidword.Pair) (ledger.ServiceID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ledger.ValidateIdentity("owner", owner); err != nil {
		return 0, err
	}
	if err := ledger.ValidateMetadata(metadata); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := ledger.ServiceID(len(l.services) + 1)
	l.services = append(l.services, ledger.Service{ID: id, Owner: owner, Metadata: metadata})
	return id, nil
}

func (l *Ledger) service(id ledger.ServiceID) (ledger.Service, error) {
	if id == 0 || id > ledger.ServiceID(len(l.services)) {
		return ledger.Service{}, ledger.ErrUnknownService
	}
	return l.services[id-1], nil
}

func (l *Ledger) Service(ctx context.Context, id ledger.ServiceID) (ledger.Service, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Service{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.service(id)
}

func (l *Ledger) Services(ctx context.Context, owner string) ([]ledger.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ledger.Service
	for _, s := range l.services {
		if owner == "" || s.Owner == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *Ledger) Invite(ctx context.Context, id ledger.ServiceID, owner, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.ValidateIdentity("user", user); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, err := l.service(id)
	if err != nil {
		return err
	}
	if svc.Owner != owner {
		return ledger.ErrNotOwner
	}
	key := participantKey{id, user}
	switch l.states[key] {
	case ledger.StateInvited:
		return nil
	case ledger.StateSubmitted:
		return ledger.ErrAlreadySubmitted
	}
	l.states[key] = ledger.StateInvited
	l.invited[id] = append(l.invited[id], user)
	return nil
}

func (l *Ledger) InteractionState(ctx context.Context, id ledger.ServiceID, user string) (ledger.State, error) {
	if err := ctx.Err(); err != nil {
		return ledger.StateNone, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.service(id); err != nil {
		return ledger.StateNone, err
	}
	return l.states[participantKey{id, user}], nil
}

func (l *Ledger) Interactions(ctx context.Context, id ledger.ServiceID) ([]ledger.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.service(id); err != nil {
		return nil, err
	}
	users := l.invited[id]
	out := make([]ledger.Interaction, 0, len(users))
	for _, u := range users {
		out = append(out, ledger.Interaction{User: u, ServiceID: id, State: l.states[participantKey{id, u}]})
	}
	return out, nil
}

func (l *Ledger) SubmitFeedback(ctx context.Context, sub ledger.Submission) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.service(sub.ServiceID); err != nil {
		return ledger.Entry{}, err
	}
	key := participantKey{sub.ServiceID, sub.User}
	if err := ledger.CheckTransition(l.states[key]); err != nil {
		return ledger.Entry{}, err
	}
	if err := ledger.VerifySubmission(sub); err != nil {
		return ledger.Entry{}, err
	}
	entry := ledger.Entry{
		Index:     len(l.entries[sub.ServiceID]),
		ServiceID: sub.ServiceID,
		User:      sub.User,
		Feedback:  sub.Feedback,
	}
	l.entries[sub.ServiceID] = append(l.entries[sub.ServiceID], entry)
	l.states[key] = ledger.StateSubmitted
	return entry, nil
}

func (l *Ledger) Feedback(ctx context.Context, id ledger.ServiceID) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.service(id); err != nil {
		return nil, err
	}
	return append([]ledger.Entry(nil), l.entries[id]...), nil
}
