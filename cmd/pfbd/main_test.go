package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/privfeedback/pfb/cidword"
	"github.com/privfeedback/pfb/internal/config"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/keys"
	"github.com/privfeedback/pfb/ledger/grpcledger"
	"github.com/privfeedback/pfb/storage/grpccas"
)

func TestServe_LedgerCASAndHealth(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Daemon{
		LedgerPath:      filepath.Join(dir, "ledger.db"),
		CASDir:          filepath.Join(dir, "cas"),
		MaxMsgBytes:     1 << 20,
		ShutdownTimeout: 5 * time.Second,
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zaptest.NewLogger(t), lis) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	cc, err := rpc.Dial(dialCtx, lis.Addr().String(), rpc.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}

	cas := grpccas.NewClient(cc)
	id, err := cas.Put(dialCtx, []byte("metadata"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	words, err := cidword.EncodeCID(id)
	if err != nil {
		t.Fatalf("EncodeCID: %v", err)
	}

	owner, err := keys.NewSigner(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	l := grpcledger.NewClient(cc)
	sid, err := l.RegisterService(dialCtx, owner.IssuerKey, words)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	got, err := l.Service(dialCtx, sid)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if got.Metadata != words {
		t.Fatalf("metadata words changed over the wire")
	}

	resp, err := grpc_health_v1.NewHealthClient(cc).Check(dialCtx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status %v", resp.GetStatus())
	}
	_ = cc.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
