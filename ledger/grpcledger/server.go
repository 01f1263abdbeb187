package grpcledger

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/privfeedback/pfb/ledger"
)

// Server exposes a ledger.Ledger over the ledger gRPC service.
type Server struct {
	Ledger ledger.Ledger
}

var _ LedgerServer = (*Server)(nil)

func (s *Server) ready() error {
	if s == nil || s.Ledger == nil {
		return status.Error(codes.FailedPrecondition, "missing ledger")
	}
	return nil
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) RegisterService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	meta, err := pairField(in, "metadata")
	if err != nil {
		return nil, invalid("%v", err)
	}
	id, err := s.Ledger.RegisterService(ctx, stringField(in, "owner"), meta)
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(map[string]any{"service_id": id.String()})
}

func (s *Server) GetService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	svc, err := s.Ledger.Service(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(serviceValue(svc))
}

func (s *Server) ListServices(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	list, err := s.Ledger.Services(ctx, stringField(in, "owner"))
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(map[string]any{"services": listValue(list, serviceValue)})
}

func (s *Server) Invite(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.Ledger.Invite(ctx, id, stringField(in, "owner"), stringField(in, "user")); err != nil {
		return nil, mapErr(err)
	}
	return reply(nil)
}

func (s *Server) InteractionState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	user := stringField(in, "user")
	st, err := s.Ledger.InteractionState(ctx, id, user)
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(interactionValue(ledger.Interaction{User: user, ServiceID: id, State: st}))
}

func (s *Server) ListInteractions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	list, err := s.Ledger.Interactions(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(map[string]any{"interactions": listValue(list, interactionValue)})
}

func (s *Server) SubmitFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	fb, err := pairField(in, "feedback")
	if err != nil {
		return nil, invalid("%v", err)
	}
	entry, err := s.Ledger.SubmitFeedback(ctx, ledger.Submission{
		ServiceID: id,
		User:      stringField(in, "user"),
		Signature: stringField(in, "signature"),
		Feedback:  fb,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(entryValue(entry))
}

func (s *Server) ListFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := idField(in)
	if err != nil {
		return nil, invalid("%v", err)
	}
	list, err := s.Ledger.Feedback(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return reply(map[string]any{"entries": listValue(list, entryValue)})
}
