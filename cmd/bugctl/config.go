package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"

	"github.com/99minutos/bug-tracker/internal/client/session"
)

type config struct {
	APIURL    string        `env:"BUGCTL_API_URL,    default=http://localhost:5000"`
	StateFile string        `env:"BUGCTL_STATE_FILE"`
	Timeout   time.Duration `env:"BUGCTL_TIMEOUT,    default=15s"`
	Output    string        `env:"BUGCTL_OUTPUT,     default=table"`
	LogLevel  string        `env:"BUGCTL_LOG_LEVEL,  default=warn"`
}

func loadConfig(ctx context.Context, l envconfig.Lookuper) (*config, error) {
	var cfg config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.StateFile == "" {
		cfg.StateFile = session.DefaultStatePath()
	}
	return &cfg, nil
}

// bindFlags lets global flags override the environment.
func (c *config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.APIURL, "api-url", c.APIURL, "bug tracker API base URL")
	fs.StringVar(&c.StateFile, "state-file", c.StateFile, "where the session is kept")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-request timeout")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "output format: table, json or yaml")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level for diagnostics on stderr")
}

func (c *config) validate() error {
	switch c.Output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
