package grpccas

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/privfeedback/pfb/storage"
)

// Server exposes a storage.CAS over the CAS gRPC service.
type Server struct {
	CAS storage.CAS
	// MaxBytes rejects larger Put payloads when non-zero.
	MaxBytes int
}

var _ CASServer = (*Server)(nil)

func (s *Server) ready() error {
	if s == nil || s.CAS == nil {
		return status.Error(codes.FailedPrecondition, "missing CAS")
	}
	return nil
}

func parseCID(in *wrapperspb.StringValue) (cid.Cid, error) {
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return id, nil
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	data := in.GetValue()
	if s.MaxBytes > 0 && len(data) > s.MaxBytes {
		return nil, mapErr(fmt.Errorf("%w: %d bytes, max %d", storage.ErrTooLarge, len(data), s.MaxBytes))
	}
	id, err := s.CAS.Put(ctx, data)
	if err != nil {
		return nil, mapErr(err)
	}
	// The backend's CID must match the bytes it was given.
	if err := storage.Verify(id, data); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := parseCID(in)
	if err != nil {
		return nil, err
	}
	b, err := s.CAS.Get(ctx, id)
	if err == nil {
		err = storage.Verify(id, b)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := parseCID(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(s.CAS.Has(ctx, id)), nil
}
