package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := LoggingInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/pfb.ledger.v1.Ledger/Service"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("interceptor changed error: %v", err)
	}
	if _, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "rpc failed" || entries[0].ContextMap()["code"] != "NotFound" {
		t.Fatalf("unexpected failure entry: %+v", entries[0])
	}
	if entries[1].Message != "rpc" || entries[1].ContextMap()["method"] != info.FullMethod {
		t.Fatalf("unexpected success entry: %+v", entries[1])
	}
}

func TestCallContext(t *testing.T) {
	ctx, cancel := CallContext(context.Background(), 0)
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero timeout should not set a deadline")
	}
	cancel()
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatalf("cancel did not cancel: %v", ctx.Err())
	}

	ctx, cancel = CallContext(context.Background(), time.Minute)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("timeout should set a deadline")
	}
}
