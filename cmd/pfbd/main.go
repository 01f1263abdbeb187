// Command pfbd serves the ledger and the CAS over gRPC on one listener.
//
// Configuration comes from PFB_* environment variables; see
// internal/config.Daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/privfeedback/pfb/internal/config"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/ledger/grpcledger"
	"github.com/privfeedback/pfb/ledger/sqlite"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casconfig"
	"github.com/privfeedback/pfb/storage/casregistry"
	"github.com/privfeedback/pfb/storage/grpccas"

	_ "github.com/privfeedback/pfb/storage/gateway"
	_ "github.com/privfeedback/pfb/storage/ipfs"
	_ "github.com/privfeedback/pfb/storage/localfs"
	_ "github.com/privfeedback/pfb/storage/memory"
)

func main() {
	fs := flag.NewFlagSet("pfbd", flag.ExitOnError)
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	cfg, err := config.LoadDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := config.NewLogger(cfg.LogLevel, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error("listen", zap.String("addr", cfg.Listen), zap.Error(err))
		os.Exit(1)
	}
	if err := serve(ctx, cfg, logger, lis); err != nil {
		logger.Error("pfbd stopped", zap.Error(err))
		os.Exit(1)
	}
}

func openCAS(cfg config.Daemon) (storage.CAS, func() error, error) {
	var cc casconfig.Config
	if cfg.CASConfig != "" {
		var err error
		if cc, err = casconfig.LoadFile(cfg.CASConfig); err != nil {
			return nil, nil, err
		}
	} else {
		cc = casconfig.Single("localfs", map[string]string{"dir": cfg.CASDir})
	}
	return cc.Open(casregistry.UsageDaemon, "")
}

// serve runs the daemon on lis until ctx is done, then drains in-flight
// calls for at most cfg.ShutdownTimeout.
func serve(ctx context.Context, cfg config.Daemon, logger *zap.Logger, lis net.Listener) error {
	store, err := sqlite.Open(ctx, cfg.LedgerPath)
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer func() { _ = store.Close() }()

	cas, closeCAS, err := openCAS(cfg)
	if err != nil {
		_ = lis.Close()
		return fmt.Errorf("open cas: %w", err)
	}
	if closeCAS != nil {
		defer func() { _ = closeCAS() }()
	}

	var opts []grpc.ServerOption
	if cfg.MaxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxMsgBytes), grpc.MaxSendMsgSize(cfg.MaxMsgBytes))
	}
	srv := rpc.NewServer(logger, opts...)
	grpccas.RegisterCASServer(srv, &grpccas.Server{CAS: cas, MaxBytes: cfg.MaxDocBytes})
	grpcledger.RegisterLedgerServer(srv, &grpcledger.Server{Ledger: store})
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("pfbd listening",
			zap.String("addr", lis.Addr().String()),
			zap.String("ledger", cfg.LedgerPath),
		)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSrv.Shutdown()
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.ShutdownTimeout):
			logger.Warn("shutdown timeout, closing open calls", zap.Duration("timeout", cfg.ShutdownTimeout))
			srv.Stop()
		}
		logger.Info("pfbd stopped")
		return nil
	})
	return g.Wait()
}
