// Package rpc holds the gRPC client and server plumbing shared by the CAS
// and ledger services.
package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
	// Extra is appended to the default options (tests pass a bufconn dialer here).
	Extra []grpc.DialOption
}

// ClientOptions returns the dial options every client uses: plaintext
// transport and an OpenTelemetry stats handler that propagates trace context
// when a TracerProvider is registered.
func ClientOptions(opts DialOptions) []grpc.DialOption {
	out := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if opts.MaxMsgBytes > 0 {
		out = append(out, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	return append(out, opts.Extra...)
}

// Dial connects to target. With a non-zero Timeout the dial blocks until the
// connection is ready or the timeout expires.
func Dial(ctx context.Context, target string, opts DialOptions) (*grpc.ClientConn, error) {
	dialOpts := ClientOptions(opts)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		dialOpts = append(dialOpts, grpc.WithBlock())
	}
	return grpc.DialContext(ctx, target, dialOpts...)
}

// CallContext derives the context for one RPC, bounded by timeout when set.
func CallContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// NewServer builds a gRPC server with tracing and request logging.
func NewServer(logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(logger)),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// LoggingInterceptor logs each unary call with its status code and latency.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
