package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/storage"
)

// Client implements storage.CAS against a pfbd CAS service. Every reply is
// checked against the CID it claims.
type Client struct {
	cc *grpc.ClientConn

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

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

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := rpc.CallContext(ctx, c.Timeout)
	defer cancel()

	var reply wrapperspb.StringValue
	if err := invoke(ctx, c.cc, "Put", wrapperspb.Bytes(data), &reply); err != nil {
		return cid.Undef, mapRPC(err)
	}
	id, err := cidutil.Parse(reply.GetValue())
	if err != nil {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !id.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := rpc.CallContext(ctx, c.Timeout)
	defer cancel()

	var reply wrapperspb.BytesValue
	if err := invoke(ctx, c.cc, "Get", wrapperspb.String(id.String()), &reply); err != nil {
		return nil, mapRPC(err)
	}
	if err := storage.Verify(id, reply.GetValue()); err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}

// Has reports false on any transport error.
func (c *Client) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ctx, cancel := rpc.CallContext(ctx, c.Timeout)
	defer cancel()

	var reply wrapperspb.BoolValue
	if err := invoke(ctx, c.cc, "Has", wrapperspb.String(id.String()), &reply); err != nil {
		return false
	}
	return reply.GetValue()
}
