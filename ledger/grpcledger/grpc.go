package grpcledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "pfb.ledger.v1.Ledger"

// LedgerServer is the server API for the ledger gRPC service. Every method
// takes and returns a google.protobuf.Struct; field names are documented on
// the codec helpers.
type LedgerServer interface {
	RegisterService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListServices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Invite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InteractionState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInteractions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = map[string]method{
	"RegisterService":  LedgerServer.RegisterService,
	"GetService":       LedgerServer.GetService,
	"ListServices":     LedgerServer.ListServices,
	"Invite":           LedgerServer.Invite,
	"InteractionState": LedgerServer.InteractionState,
	"ListInteractions": LedgerServer.ListInteractions,
	"SubmitFeedback":   LedgerServer.SubmitFeedback,
	"ListFeedback":     LedgerServer.ListFeedback,
}

func handler(name string, call method) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		})
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the ledger service.
var Ledger_ServiceDesc = func() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*LedgerServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "pfb/ledger/v1/ledger.proto",
	}
	for _, name := range []string{
		"RegisterService", "GetService", "ListServices", "Invite",
		"InteractionState", "ListInteractions", "SubmitFeedback", "ListFeedback",
	} {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: name, Handler: handler(name, methods[name])})
	}
	return desc
}()

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
