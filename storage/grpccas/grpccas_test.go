package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/gateway"
	"github.com/privfeedback/pfb/storage/localfs"
	"github.com/privfeedback/pfb/storage/memory"
	"github.com/privfeedback/pfb/storage/testkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func serve(t *testing.T, backend storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := rpc.NewServer(zap.NewNop())
	RegisterCASServer(srv, &Server{CAS: backend})
	go func() {
		_ = srv.Serve(lis)
	}()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial(context.Background(), "passthrough:///bufnet", rpc.DialOptions{
		Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
	})
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serve(t, cas)
	})
}

func TestGRPCCAS_ReadOnlyBackend(t *testing.T) {
	ro, err := gateway.New(gateway.Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	client := serve(t, ro)
	if _, err := client.Put(context.Background(), []byte("x")); !errors.Is(err, storage.ErrReadOnly) {
		t.Fatalf("Put through read-only backend: got %v want ErrReadOnly", err)
	}
}

func TestGRPCCAS_GetMissing(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, cas)
	id, err := cidutil.CIDv1RawSHA256CID([]byte("absent"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if _, err := client.Get(context.Background(), id); !storage.IsNotFound(err) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestGRPCCAS_SizeLimit(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := rpc.NewServer(zap.NewNop())
	RegisterCASServer(srv, &Server{CAS: memory.New(), MaxBytes: 8})
	go func() {
		_ = srv.Serve(lis)
	}()
	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial(context.Background(), "passthrough:///bufnet", rpc.DialOptions{
		Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() {
		_ = client.Close()
		srv.Stop()
	}()

	if _, err := client.Put(context.Background(), []byte("12345678")); err != nil {
		t.Fatalf("Put at limit: %v", err)
	}
	if _, err := client.Put(context.Background(), []byte("123456789")); !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("Put over limit: got %v want ErrTooLarge", err)
	}
}

func TestServer_RejectsBadCID(t *testing.T) {
	s := &Server{CAS: memory.New()}
	if _, err := s.Get(context.Background(), wrapperspb.String("nope")); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Get(bad cid): got %v want InvalidArgument", err)
	}
	var nilServer *Server
	if _, err := nilServer.Has(context.Background(), wrapperspb.String("nope")); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("nil server: got %v want FailedPrecondition", err)
	}
}
