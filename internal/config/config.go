// Package config loads the service tunables. Secrets and process wiring
// live in the settings package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	ConfigFileName    = "tanuki.yaml"
	ConfigFileNameAlt = "tanuki.yml"
	EnvPrefix         = "TANUKI_"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Retry     RetryConfig     `koanf:"retry"`
	Model     ModelConfig     `koanf:"model"`
	GitHub    GitHubConfig    `koanf:"github"`
	Ticket    TicketConfig    `koanf:"ticket"`
	Review    ReviewConfig    `koanf:"review"`
	Retention RetentionConfig `koanf:"retention"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	AllowOrigins    []string      `koanf:"allow_origins"`
	RateLimit       float64       `koanf:"rate_limit"`
	RateBurst       int           `koanf:"rate_burst"`
	BodyLimit       string        `koanf:"body_limit"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
}

// Policy converts the section to an executor policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
	}
}

type ModelConfig struct {
	// CatalogFile replaces the built-in model list when set.
	CatalogFile      string        `koanf:"catalog_file"`
	Default          string        `koanf:"default"`
	DefaultMaxTokens int           `koanf:"default_max_tokens"`
	Temperature      float64       `koanf:"temperature"`
	Timeout          time.Duration `koanf:"timeout"`
}

type GitHubConfig struct {
	BaseURL     string `koanf:"base_url"`
	IgnoreFile  string `koanf:"ignore_file"`
	WatchIgnore bool   `koanf:"watch_ignore"`
}

type TicketConfig struct {
	KeyPattern string `koanf:"key_pattern"`
}

type ReviewConfig struct {
	DuplicateWindow       time.Duration `koanf:"duplicate_window"`
	DropOutOfDiffComments bool          `koanf:"drop_out_of_diff_comments"`
}

type RetentionConfig struct {
	// MaxAge of zero keeps runs forever.
	MaxAge   time.Duration `koanf:"max_age"`
	Schedule string        `koanf:"schedule"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.allow_origins":    []string{"*"},
		"server.rate_limit":       5.0,
		"server.rate_burst":       20,
		"server.body_limit":       "2M",
		"server.request_timeout":  "0s",
		"server.shutdown_timeout": "30s",

		"retry.max_attempts": retry.DefaultMaxAttempts,
		"retry.base_delay":   retry.DefaultBaseDelay.String(),
		"retry.max_delay":    retry.DefaultMaxDelay.String(),

		"model.catalog_file":       "",
		"model.default":            "claude-sonnet-4-5",
		"model.default_max_tokens": 8192,
		"model.temperature":        0.3,
		"model.timeout":            "5m",

		"github.base_url":     "",
		"github.ignore_file":  ".aiignore",
		"github.watch_ignore": true,

		"ticket.key_pattern": `[A-Z]+-\d+`,

		"review.duplicate_window":          "0s",
		"review.drop_out_of_diff_comments": true,

		"retention.max_age":  "0s",
		"retention.schedule": "0 3 * * *",

		"log.level":  "info",
		"log.format": "json",
	}
}

// Load layers the configuration. Precedence, highest first: flags that were
// set, TANUKI_ env vars (double underscore separates sections), the config
// file, defaults. An empty cfgFile looks for tanuki.yaml in the working
// directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}

	// TANUKI_REVIEW__DUPLICATE_WINDOW -> review.duplicate_window
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps CLI flags onto config keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"model":            "model.default",
	"ignore-file":      "github.ignore_file",
	"duplicate-window": "review.duplicate_window",
	"drop-out-of-diff": "review.drop_out_of_diff_comments",
	"retention":        "retention.max_age",
	"rate-limit":       "server.rate_limit",
}

// envKey maps an environment variable onto a config key. Variables with no
// section separator are process settings and are skipped.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if !strings.Contains(s, "__") {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// listKeys are split on commas when set from the environment.
var listKeys = map[string]bool{
	"server.allow_origins": true,
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if listKeys[key] {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if c.Review.DuplicateWindow < 0 {
		errs = append(errs, errors.New("review.duplicate_window must not be negative"))
	}
	if c.Retention.MaxAge < 0 {
		errs = append(errs, errors.New("retention.max_age must not be negative"))
	}
	if c.Retention.MaxAge > 0 && strings.TrimSpace(c.Retention.Schedule) == "" {
		errs = append(errs, errors.New("retention.schedule is required when retention.max_age is set"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Model.DefaultMaxTokens < 0 {
		errs = append(errs, errors.New("model.default_max_tokens must not be negative"))
	}
	return errors.Join(errs...)
}
