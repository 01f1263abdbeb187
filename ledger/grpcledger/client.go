// Package grpcledger serves a ledger.Ledger over gRPC and provides the
// matching client. Messages are google.protobuf.Struct values so the
// service needs no generated code.
package grpcledger

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/ledger"
)

// Client implements ledger.Ledger over the ledger gRPC service.
type Client struct {
	cc *grpc.ClientConn

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ ledger.Ledger = (*Client)(nil)

func Dial(ctx context.Context, target string, opts rpc.DialOptions) (*Client, error) {
	cc, err := rpc.Dial(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection. Close closes cc.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) call(ctx context.Context, name string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("grpcledger: %w", err)
	}
	ctx, cancel := rpc.CallContext(ctx, c.Timeout)
	defer cancel()
	out, err := invoke(ctx, c.cc, name, in)
	if err != nil {
		return nil, mapRPC(err)
	}
	return out, nil
}

func malformed(err error) error {
	return fmt.Errorf("grpcledger: malformed reply: %w", err)
}

func (c *Client) RegisterService(ctx context.Context, owner string, metadata cidword.Pair) (ledger.ServiceID, error) {
	out, err := c.call(ctx, "RegisterService", map[string]any{
		"owner":    owner,
		"metadata": pairValue(metadata),
	})
	if err != nil {
		return 0, err
	}
	id, err := idField(out)
	if err != nil {
		return 0, malformed(err)
	}
	return id, nil
}

func (c *Client) Service(ctx context.Context, id ledger.ServiceID) (ledger.Service, error) {
	if id == 0 {
		return ledger.Service{}, ledger.ErrUnknownService
	}
	out, err := c.call(ctx, "GetService", map[string]any{"service_id": id.String()})
	if err != nil {
		return ledger.Service{}, err
	}
	svc, err := serviceFrom(out)
	if err != nil {
		return ledger.Service{}, malformed(err)
	}
	return svc, nil
}

func (c *Client) Services(ctx context.Context, owner string) ([]ledger.Service, error) {
	out, err := c.call(ctx, "ListServices", map[string]any{"owner": owner})
	if err != nil {
		return nil, err
	}
	var list []ledger.Service
	for _, s := range listField(out, "services") {
		svc, err := serviceFrom(s)
		if err != nil {
			return nil, malformed(err)
		}
		list = append(list, svc)
	}
	return list, nil
}

func (c *Client) Invite(ctx context.Context, id ledger.ServiceID, owner, user string) error {
	if id == 0 {
		return ledger.ErrUnknownService
	}
	_, err := c.call(ctx, "Invite", map[string]any{
		"service_id": id.String(),
		"owner":      owner,
		"user":       user,
	})
	return err
}

func (c *Client) InteractionState(ctx context.Context, id ledger.ServiceID, user string) (ledger.State, error) {
	if id == 0 {
		return ledger.StateNone, ledger.ErrUnknownService
	}
	out, err := c.call(ctx, "InteractionState", map[string]any{"service_id": id.String(), "user": user})
	if err != nil {
		return ledger.StateNone, err
	}
	i, err := interactionFrom(out)
	if err != nil {
		return ledger.StateNone, malformed(err)
	}
	return i.State, nil
}

func (c *Client) Interactions(ctx context.Context, id ledger.ServiceID) ([]ledger.Interaction, error) {
	if id == 0 {
		return nil, ledger.ErrUnknownService
	}
	out, err := c.call(ctx, "ListInteractions", map[string]any{"service_id": id.String()})
	if err != nil {
		return nil, err
	}
	list := []ledger.Interaction{}
	for _, s := range listField(out, "interactions") {
		i, err := interactionFrom(s)
		if err != nil {
			return nil, malformed(err)
		}
		list = append(list, i)
	}
	return list, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, sub ledger.Submission) (ledger.Entry, error) {
	if sub.ServiceID == 0 {
		return ledger.Entry{}, ledger.ErrUnknownService
	}
	out, err := c.call(ctx, "SubmitFeedback", map[string]any{
		"service_id": sub.ServiceID.String(),
		"user":       sub.User,
		"signature":  sub.Signature,
		"feedback":   pairValue(sub.Feedback),
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	e, err := entryFrom(out)
	if err != nil {
		return ledger.Entry{}, malformed(err)
	}
	return e, nil
}

func (c *Client) Feedback(ctx context.Context, id ledger.ServiceID) ([]ledger.Entry, error) {
	if id == 0 {
		return nil, ledger.ErrUnknownService
	}
	out, err := c.call(ctx, "ListFeedback", map[string]any{"service_id": id.String()})
	if err != nil {
		return nil, err
	}
	var list []ledger.Entry
	for _, s := range listField(out, "entries") {
		e, err := entryFrom(s)
		if err != nil {
			return nil, malformed(err)
		}
		list = append(list, e)
	}
	return list, nil
}
