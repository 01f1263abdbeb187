package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "pfb.storage.v1.CAS"

// CASServer is the server API for the CAS gRPC service.
//
// Messages are protobuf well-known wrapper types, so no generated code is
// needed:
//
//	service CAS {
//	  rpc Put(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Get(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	  rpc Has(google.protobuf.StringValue) returns (google.protobuf.BoolValue);
//	}
type CASServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// unary adapts one CASServer method to a grpc.MethodHandler.
func unary[Req proto.Message](name string, newReq func() Req, call func(CASServer, context.Context, Req) (any, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CASServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CASServer), ctx, req.(Req))
			})
		},
	}
}

// CAS_ServiceDesc is the grpc.ServiceDesc for the CAS service.
var CAS_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CASServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Put", func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) },
			func(s CASServer, ctx context.Context, in *wrapperspb.BytesValue) (any, error) { return s.Put(ctx, in) }),
		unary("Get", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s CASServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) { return s.Get(ctx, in) }),
		unary("Has", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s CASServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) { return s.Has(ctx, in) }),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pfb/storage/v1/cas.proto",
}

func RegisterCASServer(s grpc.ServiceRegistrar, srv CASServer) {
	s.RegisterService(&CAS_ServiceDesc, srv)
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, name string, in, out proto.Message) error {
	return cc.Invoke(ctx, "/"+serviceName+"/"+name, in, out)
}
