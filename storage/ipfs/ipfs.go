package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/cidutil"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo via the ipfs CLI",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Options: []casregistry.Option{
			{Key: "bin", Description: "path to the ipfs binary (default: ipfs)"},
			{Key: "ipfs-path", Description: "IPFS_PATH for the repo (default: process environment)"},
			{Key: "pin", Description: "pin blocks on put (default: true)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			opts := Options{Bin: cfg["bin"], Pin: true}
			if p := cfg["ipfs-path"]; p != "" {
				opts.Env = append(os.Environ(), "IPFS_PATH="+p)
			}
			if v := cfg["pin"]; v != "" {
				pin, err := strconv.ParseBool(v)
				if err != nil {
					return nil, nil, fmt.Errorf("ipfs: invalid pin %q", v)
				}
				opts.Pin = pin
			}
			return New(opts), nil, nil
		},
	})
}

// CAS pins feedback documents to a local Kubo repo by shelling out to the
// "ipfs" CLI. It does not need a running daemon.
//
// Blocks are stored raw with a sha2-256 multihash so the CID Kubo reports is
// the CID cidutil computes. Bytes read back are verified against the CID.
type CAS struct {
	bin string
	env []string
	pin bool
}

var _ storage.CAS = (*CAS)(nil)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// Env optionally overrides the command environment (e.g. to set IPFS_PATH).
	Env []string
	// Pin pins each block so repo garbage collection keeps it.
	Pin bool
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, env: opts.Env, pin: opts.Pin}
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	args := []string{"block", "put", "--quiet", "--cid-codec=raw", "--mhtype=sha2-256", "--mhlen=32"}
	if c.pin {
		args = append(args, "--pin")
	}
	out, err := c.run(ctx, data, append(args, "/dev/stdin")...)
	if err != nil {
		return cid.Undef, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(id) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		if isLikelyNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := storage.Verify(id, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(ctx, nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		s := strings.TrimSpace(string(ee.Stderr))
		if s == "" {
			return nil, fmt.Errorf("ipfs: %v", err)
		}
		return nil, fmt.Errorf("ipfs: %s", s)
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isLikelyNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
