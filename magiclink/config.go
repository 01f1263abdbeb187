package magiclink

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config describes how links are issued and verified.
type Config struct {
	Issuer   string        `env:"PFB_LINK_ISSUER"   envDefault:"pfb"`
	Audience string        `env:"PFB_LINK_AUDIENCE" envDefault:"pfb-feedback"`
	BaseURL  string        `env:"PFB_LINK_BASE_URL" envDefault:"http://localhost:8080/feedback"`
	TTL      time.Duration `env:"PFB_LINK_TTL"      envDefault:"168h"`

	// Now overrides the clock in tests.
	Now func() time.Time
}

// LoadConfigFromEnv reads link configuration from the environment.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse magic link env: %w", err)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Issuer == "":
		return fmt.Errorf("%w: issuer is required", ErrNotEnabled)
	case c.Audience == "":
		return fmt.Errorf("%w: audience is required", ErrNotEnabled)
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrNotEnabled)
	case c.TTL <= 0:
		return fmt.Errorf("%w: ttl must be positive", ErrNotEnabled)
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
