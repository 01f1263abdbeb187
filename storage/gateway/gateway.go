// Package gateway reads blocks from an IPFS HTTP gateway.
//
// The gateway is untrusted: every block is requested in raw form
// (application/vnd.ipld.raw) and verified against its CID before it is
// returned. Writes are not supported; pin through another backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
)

const rawBlockType = "application/vnd.ipld.raw"

// DefaultMaxBytes caps a single block read.
const DefaultMaxBytes = 2 << 20

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "gateway",
		Description: "Read-only IPFS HTTP gateway (verified raw blocks)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Options: []casregistry.Option{
			{Key: "url", Description: "gateway base URL, e.g. https://ipfs.io", Required: true},
			{Key: "timeout", Description: "per-request timeout (default 30s)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			opts := Options{BaseURL: cfg["url"]}
			if v := cfg["timeout"]; v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, nil, fmt.Errorf("gateway: invalid timeout %q", v)
				}
				opts.Timeout = d
			}
			cas, err := New(opts)
			return cas, nil, err
		},
	})
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// MaxBytes bounds the response body; 0 means DefaultMaxBytes.
	MaxBytes int64
	// Client overrides the HTTP client.
	Client *http.Client
}

type CAS struct {
	base     *url.URL
	client   *http.Client
	maxBytes int64
}

var _ storage.CAS = (*CAS)(nil)

func New(opts Options) (*CAS, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", opts.BaseURL)
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &CAS{base: base, client: client, maxBytes: maxBytes}, nil
}

// URL is the resolvable locator for id on this gateway.
func (c *CAS) URL(id cid.Cid) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/ipfs/" + id.String()
	return u.String()
}

func (c *CAS) Put(context.Context, []byte) (cid.Cid, error) {
	return cid.Undef, storage.ErrReadOnly
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	resp, err := c.do(ctx, http.MethodGet, id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("gateway: block is %d bytes, limit %d", resp.ContentLength, c.maxBytes)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("gateway: read body: %w", err)
	}
	if int64(len(b)) > c.maxBytes {
		return nil, fmt.Errorf("gateway: block exceeds %d bytes", c.maxBytes)
	}
	if err := storage.Verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	resp, err := c.do(ctx, http.MethodHead, id)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *CAS) do(ctx context.Context, method string, id cid.Cid) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(id)+"?format=raw", nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	req.Header.Set("Accept", rawBlockType)
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("gateway: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return storage.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return storage.ErrInvalidCID
	default:
		return errors.New("gateway: unexpected status " + strconv.Itoa(resp.StatusCode))
	}
}
