package grpccas

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/privfeedback/pfb/internal/rpc"
	"github.com/privfeedback/pfb/storage"
	"github.com/privfeedback/pfb/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC CAS client (talks to pfbd)",
		Usage:       casregistry.UsageCLI,
		Options: []casregistry.Option{
			{Key: "target", Description: "pfbd host:port", Required: true},
			{Key: "dial-timeout", Description: "dial timeout (default 5s)"},
			{Key: "timeout", Description: "per-RPC timeout (default none)"},
			{Key: "max-msg-bytes", Description: "max gRPC message size; 0 uses grpc defaults"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			opts := rpc.DialOptions{Timeout: 5 * time.Second}
			var callTimeout time.Duration
			var err error
			if v := cfg["dial-timeout"]; v != "" {
				if opts.Timeout, err = time.ParseDuration(v); err != nil {
					return nil, nil, fmt.Errorf("grpccas: invalid dial-timeout %q", v)
				}
			}
			if v := cfg["timeout"]; v != "" {
				if callTimeout, err = time.ParseDuration(v); err != nil {
					return nil, nil, fmt.Errorf("grpccas: invalid timeout %q", v)
				}
			}
			if v := cfg["max-msg-bytes"]; v != "" {
				if opts.MaxMsgBytes, err = strconv.Atoi(v); err != nil {
					return nil, nil, fmt.Errorf("grpccas: invalid max-msg-bytes %q", v)
				}
			}
			client, err := Dial(context.Background(), strings.TrimSpace(cfg["target"]), opts)
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = callTimeout
			return client, client.Close, nil
		},
	})
}
