package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"proxyprobe/internal/model"
)

// CLIConfig is the parsed form of the §6 CLI surface.
type CLIConfig struct {
	Countries     []string
	MaxConnections int
	Timeout       int
	LogLevel      string
	Format        string
	Limit         int
	OutputFile    string
	Types         []string
	File          string
	MaxAttempts   int

	RuntimeConfigPath string
}

// ParsedTypes parses CLIConfig.Types via model.ParseProtocolSpecs, surfacing
// the spec's "invalid spec -> exit nonzero" contract as an error.
func (c *CLIConfig) ParsedTypes() ([]model.Protocol, error) {
	if len(c.Types) == 0 {
		return nil, nil
	}
	protos, err := model.ParseProtocolSpecs(c.Types)
	if err != nil {
		return nil, fmt.Errorf("invalid --types value: %w", err)
	}
	return protos, nil
}

// ParseFlags parses argv (typically os.Args[1:]) into a CLIConfig, applying
// the §6 defaults. It does not itself exit the process; callers decide how
// to react to a returned error (spec: "exit nonzero on fatal config error").
func ParseFlags(argv []string) (*CLIConfig, error) {
	fs := pflag.NewFlagSet("proxyprobe", pflag.ContinueOnError)

	cfg := &CLIConfig{}
	fs.StringSliceVarP(&cfg.Countries, "countries", "c", nil, "filter by ISO country codes")
	fs.IntVarP(&cfg.MaxConnections, "max-connections", "m", 500, "validator concurrency")
	fs.IntVar(&cfg.Timeout, "timeout", 3, "per-request timeout in seconds")
	fs.StringVar(&cfg.LogLevel, "log", "off", "log level: off|error|warn|info|debug|trace")
	fs.StringVarP(&cfg.Format, "format", "f", "default", "output format: default|text|json")
	fs.IntVarP(&cfg.Limit, "limit", "l", 0, "cap emitted proxies (0 = unlimited)")
	fs.StringVarP(&cfg.OutputFile, "output-file", "o", "", "output sink (stdout if empty)")
	fs.StringSliceVarP(&cfg.Types, "types", "t", nil, "protocol spec(s) to validate, enables validation")
	fs.StringVar(&cfg.File, "file", "", "read proxies from this file instead of crawling providers (requires --types)")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", 1, "judge retry count (requires --types)")
	fs.StringVar(&cfg.RuntimeConfigPath, "runtime-config", "", "path to the optional runtime-tuning YAML file")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *CLIConfig) validate() error {
	if c.MaxConnections < 1 {
		return fmt.Errorf("--max-connections must be >= 1, got %d", c.MaxConnections)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("--timeout must be >= 1, got %d", c.Timeout)
	}
	if _, ok := parseLogLevelName(c.LogLevel); !ok {
		return fmt.Errorf("--log must be one of off|error|warn|info|debug|trace, got %q", c.LogLevel)
	}
	switch c.Format {
	case "default", "text", "json":
	default:
		return fmt.Errorf("--format must be one of default|text|json, got %q", c.Format)
	}
	if c.File != "" && len(c.Types) == 0 {
		return fmt.Errorf("--file requires --types")
	}
	if c.MaxAttempts != 1 && len(c.Types) == 0 {
		return fmt.Errorf("--max-attempts requires --types")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("--max-attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if _, err := c.ParsedTypes(); err != nil {
		return err
	}
	return nil
}

// parseLogLevelName avoids importing internal/logging here to keep this
// package's dependency graph shallow; the set is duplicated intentionally
// small and stable (six literal values).
func parseLogLevelName(s string) (string, bool) {
	switch s {
	case "off", "error", "warn", "info", "debug", "trace":
		return s, true
	default:
		return "", false
	}
}
