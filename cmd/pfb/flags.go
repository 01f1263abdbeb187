package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privfeedback/pfb/feedback"
	"github.com/privfeedback/pfb/internal/config"
	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/keys"
	"github.com/privfeedback/pfb/ledger"
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

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type intList []int

func (l *intList) String() string { return fmt.Sprint([]int(*l)) }
func (l *intList) Set(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("not a number: %q", v)
	}
	*l = append(*l, n)
	return nil
}

// storeFlags selects the ledger and CAS a command works against.
type storeFlags struct {
	keysDir   string
	ledger    string
	casDir    string
	casConfig string
	remote    string
	timeout   time.Duration
	verbose   bool
}

func addStoreFlags(fs *flag.FlagSet) *storeFlags {
	s := &storeFlags{}
	fs.StringVar(&s.keysDir, "keys-dir", "", "Key store directory (default ~/.pfb/keys)")
	fs.StringVar(&s.ledger, "ledger", "pfb-ledger.db", "SQLite ledger path")
	fs.StringVar(&s.casDir, "cas-dir", "pfb-cas", "Local CAS directory")
	fs.StringVar(&s.casConfig, "cas-config", "", "CAS backend config (JSON)")
	fs.StringVar(&s.remote, "remote", "", "pfbd address (host:port)")
	fs.DurationVar(&s.timeout, "timeout", 30*time.Second, "Per-call timeout for --remote")
	fs.BoolVar(&s.verbose, "verbose", false, "Debug logging")
	return s
}

func (s *storeFlags) logger(errOut io.Writer) *zap.Logger {
	level := "warn"
	if s.verbose {
		level = "debug"
	}
	logger, err := config.NewLogger(level, errOut)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (s *storeFlags) keyStore() (*keys.KeyStore, error) {
	return keys.Open(s.keysDir)
}

func (s *storeFlags) casBackends() (casconfig.Config, error) {
	if s.casConfig != "" {
		return casconfig.LoadFile(s.casConfig)
	}
	if strings.TrimSpace(s.casDir) == "" {
		return casconfig.Config{}, errors.New("one of --cas-dir or --cas-config is required")
	}
	return casconfig.Single("localfs", map[string]string{"dir": s.casDir}), nil
}

func (s *storeFlags) isRemote() bool { return strings.TrimSpace(s.remote) != "" }

func (s *storeFlags) dialOptions() rpc.DialOptions {
	return rpc.DialOptions{Timeout: 5 * time.Second}
}

// openCAS opens only the CAS.
func (s *storeFlags) openCAS(ctx context.Context) (storage.CAS, func() error, error) {
	if s.isRemote() {
		c, err := grpccas.Dial(ctx, s.remote, s.dialOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", s.remote, err)
		}
		c.Timeout = s.timeout
		return c, c.Close, nil
	}
	cfg, err := s.casBackends()
	if err != nil {
		return nil, nil, err
	}
	return cfg.Open(casregistry.UsageCLI, "")
}

// open returns the ledger and CAS. In remote mode both share one connection.
func (s *storeFlags) open(ctx context.Context) (ledger.Ledger, storage.CAS, func() error, error) {
	if s.isRemote() {
		cc, err := rpc.Dial(ctx, s.remote, s.dialOptions())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("dial %s: %w", s.remote, err)
		}
		l := grpcledger.NewClient(cc)
		l.Timeout = s.timeout
		c := grpccas.NewClient(cc)
		c.Timeout = s.timeout
		return l, c, cc.Close, nil
	}

	cas, closeCAS, err := s.openCAS(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := sqlite.Open(ctx, s.ledger)
	if err != nil {
		if closeCAS != nil {
			_ = closeCAS()
		}
		return nil, nil, nil, err
	}
	closeAll := func() error {
		err := store.Close()
		if closeCAS != nil {
			if cerr := closeCAS(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return store, cas, closeAll, nil
}

// service builds the feedback service over the selected stores.
func (s *storeFlags) service(ctx context.Context, errOut io.Writer) (*feedback.Service, ledger.Ledger, func(), error) {
	l, cas, closeFn, err := s.open(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := s.logger(errOut)
	svc, err := feedback.New(feedback.Deps{CAS: cas, Ledger: l, Logger: logger})
	if err != nil {
		_ = closeFn()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = logger.Sync()
		_ = closeFn()
	}
	return svc, l, cleanup, nil
}

// identityFlags resolves a participant's seed.
type identityFlags struct {
	who     string
	name    string
	role    string
	keyFile string
	seedHex string
}

func addIdentityFlags(fs *flag.FlagSet, who string) *identityFlags {
	f := &identityFlags{who: who}
	fs.StringVar(&f.name, who, "", "Key name of the "+who)
	fs.StringVar(&f.role, who+"-role", "", "Role key of the "+who)
	fs.StringVar(&f.keyFile, who+"-key-file", "", "Seed file of the "+who)
	fs.StringVar(&f.seedHex, who+"-seed-hex", "", "Seed of the "+who+" as 64 hex chars")
	return f
}

func (f *identityFlags) load(ks *keys.KeyStore) (*feedback.Identity, error) {
	seed, err := ks.LoadSeed(f.seedHex, f.name, f.role, f.keyFile)
	if err != nil {
		if errors.Is(err, keys.ErrNoSigner) {
			return nil, fmt.Errorf("missing --%s", f.who)
		}
		return nil, fmt.Errorf("%s key: %w", f.who, err)
	}
	return feedback.NewIdentity(seed)
}

func parseID(s string) (ledger.ServiceID, error) {
	if s == "" {
		return 0, errors.New("missing --id")
	}
	return ledger.ParseServiceID(s)
}
