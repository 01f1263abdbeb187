package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"PFB_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PFB_TEST_PORT", "not-an-int")
	err := ParseEnv(&cfg)
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestLoadDaemon(t *testing.T) {
	d, err := LoadDaemon()
	if err != nil {
		t.Fatalf("LoadDaemon: %v", err)
	}
	if d.Listen != "127.0.0.1:7420" || d.CASDir != "pfb-cas" || d.MaxDocBytes != 1<<20 || d.ShutdownTimeout != 10*time.Second {
		t.Fatalf("defaults = %+v", d)
	}

	t.Setenv("PFB_LISTEN", ":9000")
	t.Setenv("PFB_LEDGER", "/var/lib/pfb/ledger.db")
	t.Setenv("PFB_CAS_CONFIG", "/etc/pfb/cas.json")
	d, err = LoadDaemon()
	if err != nil {
		t.Fatalf("LoadDaemon: %v", err)
	}
	if d.Listen != ":9000" || d.LedgerPath != "/var/lib/pfb/ledger.db" || d.CASConfig != "/etc/pfb/cas.json" {
		t.Fatalf("overrides = %+v", d)
	}

	t.Setenv("PFB_SHUTDOWN_TIMEOUT", "0s")
	if _, err := LoadDaemon(); err == nil {
		t.Fatalf("zero shutdown timeout should fail")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if _, err := NewLogger("loud", &buf); err == nil {
		t.Fatalf("unknown level should fail")
	}
}
