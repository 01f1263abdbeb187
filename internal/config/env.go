// Package config loads daemon settings from PFB_* environment variables and
// builds loggers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Daemon configures pfbd.
type Daemon struct {
	Listen          string        `env:"PFB_LISTEN"           envDefault:"127.0.0.1:7420"`
	LedgerPath      string        `env:"PFB_LEDGER"           envDefault:"pfb-ledger.db"`
	CASConfig       string        `env:"PFB_CAS_CONFIG"`
	CASDir          string        `env:"PFB_CAS_DIR"          envDefault:"pfb-cas"`
	LogLevel        string        `env:"PFB_LOG_LEVEL"        envDefault:"info"`
	MaxMsgBytes     int           `env:"PFB_MAX_MSG_BYTES"    envDefault:"4194304"`
	MaxDocBytes     int           `env:"PFB_MAX_DOC_BYTES"    envDefault:"1048576"`
	ShutdownTimeout time.Duration `env:"PFB_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadDaemon parses Daemon from the environment and validates it.
func LoadDaemon() (Daemon, error) {
	var d Daemon
	if err := ParseEnv(&d); err != nil {
		return Daemon{}, err
	}
	d.Listen = strings.TrimSpace(d.Listen)
	d.LedgerPath = strings.TrimSpace(d.LedgerPath)
	switch {
	case d.Listen == "":
		return Daemon{}, fmt.Errorf("PFB_LISTEN is required")
	case d.LedgerPath == "":
		return Daemon{}, fmt.Errorf("PFB_LEDGER is required")
	case d.CASConfig == "" && strings.TrimSpace(d.CASDir) == "":
		return Daemon{}, fmt.Errorf("one of PFB_CAS_CONFIG or PFB_CAS_DIR is required")
	case d.MaxMsgBytes < 0:
		return Daemon{}, fmt.Errorf("PFB_MAX_MSG_BYTES must not be negative")
	case d.MaxDocBytes < 0:
		return Daemon{}, fmt.Errorf("PFB_MAX_DOC_BYTES must not be negative")
	case d.ShutdownTimeout <= 0:
		return Daemon{}, fmt.Errorf("PFB_SHUTDOWN_TIMEOUT must be positive")
	}
	return d, nil
}
